// Package api exposes the prepdeck operations over HTTP with gin.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/prepdeck/internal/app"
)

// Server serves the HTTP API of one App.
type Server struct {
	app    *app.App
	log    logrus.FieldLogger
	secret []byte
	engine *gin.Engine
}

// NewServer builds the router. With an empty JWT secret in the app config
// the caller is identified by the X-User-ID header instead of a token.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:    a,
		log:    a.Logger().WithField("component", "api"),
		secret: []byte(a.Config().Server.JWTSecret),
		engine: gin.New(),
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	r := s.engine
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.app.Registry(), promhttp.HandlerOpts{})))

	v1 := r.Group("/v1", s.authenticate())
	v1.POST("/signout", s.signOut)

	user := v1.Group("", s.userSession())
	{
		user.POST("/activities", s.recordActivity)
		user.GET("/progress", s.getProgress)
		user.GET("/history", s.getHistory)

		user.POST("/flashcards", s.addCard)
		user.DELETE("/flashcards/:id", s.removeCard)
		user.GET("/flashcards/counts", s.getCounts)

		user.POST("/study/start", s.startStudy)
		user.POST("/study/answer", s.answerCard)
		user.POST("/study/end", s.endStudy)

		user.GET("/tips", s.getTips)
		user.POST("/tips/:id/dismiss", s.dismissTip)
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// within timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, timeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
