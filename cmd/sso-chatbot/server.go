package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wrale/sso-chatbot/cmd/sso-chatbot/handlers/health"
	"github.com/wrale/sso-chatbot/cmd/sso-chatbot/handlers/message"
)

type server struct {
	router *chi.Mux
	logger *zap.Logger
}

func newServer(connection health.ConnectionChecker, cache health.HealthChecker, sender message.Sender, logger *zap.Logger) *server {
	srv := &server{
		router: chi.NewRouter(),
		logger: logger.Named("http"),
	}

	// Set up middleware
	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(srv.requestLogger)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(middleware.Timeout(30 * time.Second))

	// Register routes
	srv.router.Method(http.MethodGet, "/health", health.New(health.Config{
		Connection: connection,
		Cache:      cache,
		Version:    Version,
	}))
	srv.router.Method(http.MethodPost, "/messages", message.New(message.Config{
		Sender: sender,
	}))

	return srv
}

// requestLogger logs each request through zap
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()

		next.ServeHTTP(ww, r)
	})
}
