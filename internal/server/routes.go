package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openmined/gamebox/internal/server/handlers/api"
	"github.com/openmined/gamebox/internal/server/handlers/games"
	"github.com/openmined/gamebox/internal/server/handlers/saves"
	"github.com/openmined/gamebox/internal/server/handlers/ws"
	"github.com/openmined/gamebox/internal/server/middlewares"
	"github.com/openmined/gamebox/internal/version"
)

func SetupRoutes(cfg *HTTPConfig, svc *Services, hub *ws.WebsocketHub) (http.Handler, error) {
	rateLimiter, err := middlewares.RateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20 // 8 MiB
	r.HandleMethodNotAllowed = true

	gamesH := games.New(svc.Library)
	savesH := saves.New(svc.Saves)

	r.Use(middlewares.Logger())
	r.Use(gin.Recovery())
	r.Use(middlewares.GZIP())
	r.Use(middlewares.CORS())
	r.Use(middlewares.Secure(cfg.TLS()))

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/api/v1")
	v1.Use(rateLimiter)
	v1.Use(middlewares.Gate(svc.Gate))
	{
		v1.GET("/games", gamesH.List)

		game := v1.Group("/games/:game", middlewares.RequireGame())
		game.GET("/manifest", gamesH.Manifest)
		game.GET("/metadata", gamesH.Metadata)
		game.GET("/files/*path", gamesH.File)

		save := v1.Group("/saves/:game/:folder", middlewares.RequireGame())
		save.GET("", savesH.List)
		save.POST("", savesH.Upload)
		save.GET("/files/*path", savesH.Get)

		// websocket events
		v1.GET("/events", hub.WebsocketHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		api.AbortWithError(c, http.StatusNotFound, api.CodeNotFound, fmt.Errorf("route %s not found", c.Request.URL.Path))
	})

	r.NoMethod(func(c *gin.Context) {
		api.AbortWithError(c, http.StatusMethodNotAllowed, api.CodeInvalidRequest, fmt.Errorf("method %s not allowed", c.Request.Method))
	})

	return r.Handler(), nil
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.ShortWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
