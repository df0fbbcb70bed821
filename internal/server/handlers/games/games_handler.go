package games

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/server/handlers/api"
	"github.com/openmined/gamebox/internal/server/library"
	"github.com/openmined/gamebox/internal/server/middlewares"
)

type GamesHandler struct {
	lib *library.Library
}

func New(lib *library.Library) *GamesHandler {
	return &GamesHandler{lib: lib}
}

// List returns the games visible to the bound identity.
func (h *GamesHandler) List(ctx *gin.Context) {
	id, ok := middlewares.GetIdentity(ctx)
	if !ok {
		api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, errors.New("no identity"))
		return
	}

	all, err := h.lib.Games()
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	visible := make([]manifest.GameInfo, 0, len(all))
	for _, g := range all {
		if id.CanAccess(g.Name) {
			visible = append(visible, g)
		}
	}
	ctx.PureJSON(http.StatusOK, manifest.GameList{Games: visible})
}

// Manifest serves manifest.csv with Last-Modified set from the file.
func (h *GamesHandler) Manifest(ctx *gin.Context) {
	p, err := h.lib.ManifestPath(ctx.Param("game"))
	if err != nil {
		abortLibraryError(ctx, err)
		return
	}
	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	serveFile(ctx, p)
}

func (h *GamesHandler) Metadata(ctx *gin.Context) {
	meta, err := h.lib.Metadata(ctx.Param("game"))
	if err != nil {
		abortLibraryError(ctx, err)
		return
	}
	ctx.PureJSON(http.StatusOK, meta)
}

// File serves one installation file.
func (h *GamesHandler) File(ctx *gin.Context) {
	p, err := h.lib.FilePath(ctx.Param("game"), ctx.Param("path"))
	if err != nil {
		abortLibraryError(ctx, err)
		return
	}
	serveFile(ctx, p)
}

// serveFile streams p with Last-Modified, Range and If-Modified-Since
// handling. http.ServeFile is avoided since it redirects index.html.
func serveFile(ctx *gin.Context, p string) {
	f, err := os.Open(p)
	if err != nil {
		abortLibraryError(ctx, fmt.Errorf("%w: %s", library.ErrFileNotFound, filepath.Base(p)))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	http.ServeContent(ctx.Writer, ctx.Request, info.Name(), info.ModTime(), f)
}

func abortLibraryError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, library.ErrInvalidGameName):
		api.AbortWithError(ctx, http.StatusBadRequest, api.CodeInvalidRequest, err)
	case errors.Is(err, library.ErrGameNotFound), errors.Is(err, library.ErrFileNotFound):
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNotFound, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, fmt.Errorf("library: %w", err))
	}
}
