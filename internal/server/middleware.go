package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	logx "vellum/pkg/logx"
)

const ctxUserID = "userID"

// auth resolves the user from a bearer token. Unknown or missing tokens get
// 401; the token itself is never logged.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		userID, found := s.userFor(token)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logx.Field{
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("took", time.Since(start)),
		}
		if user := c.GetString(ctxUserID); user != "" {
			fields = append(fields, logx.String("user", user))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logx.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			s.log.Error("http request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			s.log.Warn("http request", fields...)
		default:
			s.log.Debug("http request", fields...)
		}
	}
}
