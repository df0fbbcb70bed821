package middlewares

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/gamebox/internal/server/gate"
	"github.com/openmined/gamebox/internal/server/handlers/api"
)

const identityContextKey = "identity"

// Gate binds every request to an identity and stores it in the context.
// A freshly minted session is returned as a cookie.
func Gate(g *gate.Gate) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		b, err := g.Bind(ctx.Request)
		if errors.Is(err, gate.ErrUnauthenticated) {
			ctx.Header("WWW-Authenticate", `Basic realm="gamebox"`)
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, err)
			return
		} else if err != nil {
			slog.Error("gate bind", "error", err)
			api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
			return
		}

		if b.Minted {
			http.SetCookie(ctx.Writer, &http.Cookie{
				Name:     g.CookieName(),
				Value:    b.Session.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   ctx.Request.TLS != nil,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx.Set(identityContextKey, b.Identity)
		ctx.Next()
	}
}

// GetIdentity returns the identity bound by Gate.
func GetIdentity(ctx *gin.Context) (*gate.Identity, bool) {
	v, ok := ctx.Get(identityContextKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*gate.Identity)
	return id, ok && id != nil
}

// RequireGame rejects requests whose :game the bound identity cannot access.
func RequireGame() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id, ok := GetIdentity(ctx)
		if !ok {
			api.AbortWithError(ctx, http.StatusUnauthorized, api.CodeUnauthorized, gate.ErrUnauthenticated)
			return
		}
		game := ctx.Param("game")
		if !id.CanAccess(game) {
			api.AbortWithError(ctx, http.StatusForbidden, api.CodeForbidden,
				fmt.Errorf("identity %q may not access %q", id.Name, game))
			return
		}
		ctx.Next()
	}
}
