package server

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/verte-zerg/orator/internal/apperr"
	"github.com/verte-zerg/orator/internal/model"
)

const (
	// AccessKeyCookie carries the access key for browser clients.
	AccessKeyCookie = "speech_game_access_key"
	// AccessKeyHeader carries the access key for scripted clients.
	AccessKeyHeader = "X-Access-Key"

	userContextKey = "orator.user"
)

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", AccessKeyHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if u, ok := currentUser(c); ok {
			fields = append(fields, "user_id", u.ID)
		}
		switch {
		case status >= 500:
			s.log.Error("HTTP request", fields...)
		case status >= 400:
			s.log.Warn("HTTP request", fields...)
		default:
			s.log.Info("HTTP request", fields...)
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		ae := apperr.Internal("internal server error", nil)
		c.AbortWithStatusJSON(ae.Status, errorBody{Error: ae.Message, Code: ae.Code})
	})
}

// accessKey reads the key from the cookie, then the header.
func accessKey(c *gin.Context) string {
	if v, err := c.Cookie(AccessKeyCookie); err == nil && strings.TrimSpace(v) != "" {
		return v
	}
	return c.GetHeader(AccessKeyHeader)
}

// requireAuth resolves the caller's access key. allowQuery also accepts
// ?access_key= for scraping clients.
func (s *Server) requireAuth(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ""
		if allowQuery {
			key = c.Query("access_key")
		}
		if key == "" {
			key = accessKey(c)
		}
		if strings.TrimSpace(key) == "" {
			s.fail(c, apperr.Unauthorized("Access key required"))
			return
		}
		u, err := s.svc.Authenticate(c.Request.Context(), key)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.Set(userContextKey, u)
		c.Next()
	}
}

func currentUser(c *gin.Context) (model.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return model.User{}, false
	}
	u, ok := v.(model.User)
	return u, ok
}

func mustUser(c *gin.Context) model.User {
	u, _ := currentUser(c)
	return u
}
