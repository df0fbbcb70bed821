package middlewares

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func CORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowHeaders:     []string{"Authorization", "Content-Type", "If-Modified-Since", "X-GameBox-Device-Id", "X-GameBox-Version"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		ExposeHeaders:    []string{"Last-Modified", "Content-Length"},
		AllowCredentials: false,
		AllowWebSockets:  true,
	})
}
