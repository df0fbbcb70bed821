// Package api is the HTTP client for the GameBox server.
package api

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/gamebox/internal/client/transfer"
	"github.com/openmined/gamebox/internal/manifest"
	"github.com/openmined/gamebox/internal/utils"
	"github.com/openmined/gamebox/internal/version"
)

const (
	HeaderDeviceID = "X-GameBox-Device-Id"
	HeaderVersion  = "X-GameBox-Version"

	apiPrefix = "/api/v1/"
)

type Options struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	http     *req.Client
	baseURL  *url.URL
	username string
	password string
}

var _ transfer.Remote = (*Client)(nil)

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", opts.BaseURL)
	}

	// retries stay off; a failed transfer is simply re-planned next sync
	c := req.C().
		SetBaseURL(base.String()).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader(HeaderVersion, version.Version).
		SetCommonHeader(HeaderDeviceID, utils.DeviceID()).
		SetCommonErrorResult(&APIError{}).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.Username != "" {
		c.SetCommonBasicAuth(opts.Username, opts.Password)
	}

	return &Client{http: c, baseURL: base, username: opts.Username, password: opts.Password}, nil
}

func (c *Client) ListGames(ctx context.Context) ([]manifest.GameInfo, error) {
	var list manifest.GameList
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&list).
		Get(apiPrefix + "games")
	if err := handleAPIError(resp, err, "list games"); err != nil {
		return nil, err
	}
	return list.Games, nil
}

// FetchManifest returns the raw manifest CSV of a game.
func (c *Client) FetchManifest(ctx context.Context, game string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(apiPrefix + "games/" + url.PathEscape(game) + "/manifest")
	if err := handleAPIError(resp, err, "fetch manifest"); err != nil {
		return nil, err
	}
	return resp.Bytes(), nil
}

func (c *Client) FetchMetadata(ctx context.Context, game string) (*manifest.Metadata, error) {
	var meta manifest.Metadata
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&meta).
		Get(apiPrefix + "games/" + url.PathEscape(game) + "/metadata")
	if err := handleAPIError(resp, err, "fetch metadata"); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) ListSaves(ctx context.Context, game, folder string) ([]manifest.SaveFileRecord, error) {
	var list manifest.SaveList
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(&list).
		Get(apiPrefix + "saves/" + url.PathEscape(game) + "/" + url.PathEscape(folder))
	if err := handleAPIError(resp, err, "list saves"); err != nil {
		return nil, err
	}
	return list.Files, nil
}

// Fetch opens a streamed download of a locator produced by the planner.
func (c *Client) Fetch(ctx context.Context, locator string) (*transfer.Payload, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		DisableAutoReadResponse().
		Get(apiPrefix + strings.TrimLeft(locator, "/"))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}

	if resp.IsErrorState() || resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, errorFromStream(resp, "fetch "+locator)
	}

	payload := &transfer.Payload{Body: resp.Body, Size: resp.ContentLength}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			payload.LastModified = t
		}
	}
	return payload, nil
}

// UploadSave posts one save file as multipart form data.
func (c *Client) UploadSave(ctx context.Context, game, folder string, rec manifest.SaveFileRecord, body io.Reader) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetRetryCount(0).
		SetFormData(map[string]string{
			"file_name":     rec.Name,
			"file_path":     rec.Path,
			"size":          strconv.FormatInt(rec.Size, 10),
			"last_modified": rec.LastModified.UTC().Format(time.RFC3339),
		}).
		SetFileReader("file", rec.Name, body).
		Post(apiPrefix + "saves/" + url.PathEscape(game) + "/" + url.PathEscape(folder))
	return handleAPIError(resp, err, "upload "+rec.Path)
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	h.Set("User-Agent", version.UserAgent())
	h.Set(HeaderDeviceID, utils.DeviceID())
	if c.username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
		h.Set("Authorization", "Basic "+cred)
	}
	return h
}
