package saves

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/server/blob"
	"github.com/openmined/gamebox/internal/server/handlers/api"
	"github.com/openmined/gamebox/internal/server/middlewares"
)

const HeaderDeviceID = "X-GameBox-Device-Id"

type SavesHandler struct {
	store *blob.SaveStore
}

func New(store *blob.SaveStore) *SavesHandler {
	return &SavesHandler{store: store}
}

// UploadRequest is the multipart form of a save upload.
type UploadRequest struct {
	Name         string `form:"file_name" binding:"required"`
	Path         string `form:"file_path" binding:"required"`
	Size         int64  `form:"size" binding:"min=0"`
	LastModified string `form:"last_modified" binding:"required"`
}

func (h *SavesHandler) key(ctx *gin.Context, rel string) (blob.SaveKey, bool) {
	id, ok := middlewares.GetIdentity(ctx)
	if !ok {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errors.New("no identity"))
		return blob.SaveKey{}, false
	}
	return blob.SaveKey{
		User:   id.Name,
		Game:   ctx.Param("game"),
		Folder: ctx.Param("folder"),
		Path:   strings.TrimPrefix(rel, "/"),
	}, true
}

// List returns the records of one sync folder of the bound identity.
func (h *SavesHandler) List(ctx *gin.Context) {
	k, ok := h.key(ctx, "")
	if !ok {
		return
	}

	files, err := h.store.List(k.User, k.Game, k.Folder)
	if errors.Is(err, blob.ErrInvalidKey) {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	ctx.PureJSON(http.StatusOK, manifest.SaveList{Files: files})
}

// Get streams a save body. Last-Modified carries the client file time.
func (h *SavesHandler) Get(ctx *gin.Context) {
	k, ok := h.key(ctx, ctx.Param("path"))
	if !ok {
		return
	}

	rec, err := h.store.Stat(k)
	if err != nil {
		abortStoreError(ctx, err)
		return
	}

	if ims, err := http.ParseTime(ctx.GetHeader("If-Modified-Since")); err == nil {
		if !rec.LastModified.After(ims) {
			ctx.Header("Last-Modified", rec.LastModified.UTC().Format(http.TimeFormat))
			ctx.Status(http.StatusNotModified)
			return
		}
	}

	obj, err := h.store.Open(ctx.Request.Context(), k)
	if err != nil {
		abortStoreError(ctx, err)
		return
	}
	defer obj.Body.Close()

	ctx.Header("Last-Modified", rec.LastModified.UTC().Format(http.TimeFormat))
	ctx.DataFromReader(http.StatusOK, obj.Size, "application/octet-stream", obj.Body, nil)
}

// Upload stores one save file sent as multipart form data.
func (h *SavesHandler) Upload(ctx *gin.Context) {
	var req UploadRequest
	if err := ctx.ShouldBind(&req); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("bind form: %w", err))
		return
	}

	lastModified, err := time.Parse(time.RFC3339, req.LastModified)
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("last_modified: %w", err))
		return
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid file: %w", err))
		return
	}
	if file.Size != req.Size {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest,
			fmt.Errorf("size mismatch: declared %d, got %d", req.Size, file.Size))
		return
	}

	k, ok := h.key(ctx, req.Path)
	if !ok {
		return
	}
	if err := k.Validate(); err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
		return
	}

	fd, err := file.Open()
	if err != nil {
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, fmt.Errorf("invalid file: %w", err))
		return
	}
	defer fd.Close()

	rec, err := h.store.Put(ctx.Request.Context(), &blob.PutSaveParams{
		Key:          k,
		Size:         file.Size,
		LastModified: lastModified,
		Body:         fd,
		Device:       ctx.GetHeader(HeaderDeviceID),
	})
	if err != nil {
		abortStoreError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, rec)
}

func abortStoreError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, blob.ErrInvalidKey):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	case errors.Is(err, blob.ErrObjectNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNotFound, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
	}
}
