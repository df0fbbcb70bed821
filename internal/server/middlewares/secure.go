package middlewares

import (
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
)

// Secure sets the usual hardening headers. HSTS and the https redirect are
// only enabled when the server terminates TLS itself.
func Secure(tls bool) gin.HandlerFunc {
	cfg := secure.Config{
		IsDevelopment:      false,
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		IENoOpen:           true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if tls {
		cfg.SSLRedirect = true
		cfg.STSSeconds = 315360000
		cfg.STSIncludeSubdomains = true
		cfg.SSLProxyHeaders = map[string]string{"X-Forwarded-Proto": "https"}
	}
	return secure.New(cfg)
}
