// Package middleware holds the gin middleware chain of the HTTP API.
package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
)

// exposedHeaders are readable by browser callers such as the Office add-in.
var exposedHeaders = []string{
	RequestIDHeader, "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining",
}

// CORS admits the configured origins.  A "*" entry admits every origin.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  cfg.AllowMethods,
		AllowHeaders:  cfg.AllowHeaders,
		ExposeHeaders: exposedHeaders,
		MaxAge:        cfg.MaxAge,
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			cc.AllowAllOrigins = true
		}
	}
	if !cc.AllowAllOrigins {
		cc.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(cc)
}
