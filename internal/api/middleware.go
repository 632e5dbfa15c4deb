package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/prepdeck/internal/app"
)

const (
	userIDKey  = "user_id"
	sessionKey = "user_session"
)

var errMissingIdentity = errors.New("missing user identity")

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if uid := c.GetString(userIDKey); uid != "" {
			entry = entry.WithField(userIDKey, uid)
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

// authenticate resolves the caller's user id from a HS256 bearer token's
// subject, or from X-User-ID when no secret is configured.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := s.identify(c.Request)
		if err != nil {
			abortError(c, http.StatusUnauthorized, "unauthorized", err)
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) identify(r *http.Request) (string, error) {
	if len(s.secret) == 0 {
		if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
			return id, nil
		}
		return "", errMissingIdentity
	}

	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errMissingIdentity
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}

// userSession signs the caller in on first use and attaches the session.
func (s *Server) userSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.app.SignIn(c.Request.Context(), c.GetString(userIDKey))
		if err != nil {
			abortError(c, http.StatusServiceUnavailable, "failed to load user", err)
			return
		}
		c.Set(sessionKey, u)
		c.Next()
	}
}

func sessionFrom(c *gin.Context) *app.UserSession {
	return c.MustGet(sessionKey).(*app.UserSession)
}
