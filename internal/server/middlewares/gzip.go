package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	excludedPaths = []string{
		"/healthz",
		"/api/v1/events",
	}
	// file bodies keep their Content-Length; the client checks it
	excludedPathRegexes = []string{
		`^/api/v1/games/[^/]+/files/`,
		`^/api/v1/saves/[^/]+/[^/]+/files/`,
	}
)

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedPathsRegexs(excludedPathRegexes),
	)
}
