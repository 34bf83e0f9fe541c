package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cuemby/autoheal/pkg/log"
	"github.com/cuemby/autoheal/pkg/metrics"
	"github.com/cuemby/autoheal/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// maxBodyBytes bounds a webhook payload; SNS caps messages at 256 KiB
const maxBodyBytes = 1 << 20

// Reconciler runs one invocation for a raw trigger payload
type Reconciler interface {
	Reconcile(ctx context.Context, payload []byte) (*types.Result, error)
}

// Server is the HTTP trigger surface
type Server struct {
	Router     *chi.Mux
	Addr       string
	reconciler Reconciler
	logger     zerolog.Logger
}

// snsMessage is the part of an SNS HTTP delivery the server inspects
type snsMessage struct {
	Type         string `json:"Type"`
	TopicArn     string `json:"TopicArn"`
	SubscribeURL string `json:"SubscribeURL"`
}

// NewServer builds the router. When token is non-empty the alarm webhook
// requires it as a Bearer token.
func NewServer(addr string, rec Reconciler, token string) *Server {
	s := &Server{
		Router:     chi.NewRouter(),
		Addr:       addr,
		reconciler: rec,
		logger:     log.WithComponent("api"),
	}

	r := s.Router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", metrics.HealthHandler())
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if token != "" {
			r.Use(AuthMiddleware(token))
		}
		r.Post("/alarms", s.handleAlarm)
	})

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("Server shutdown did not complete cleanly")
		}
	}()

	s.logger.Info().Str("addr", s.Addr).Msg("Starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleAlarm(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(body) > maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// SNS sends a confirmation request before the first notification
	var msg snsMessage
	if json.Unmarshal(body, &msg) == nil && isSubscriptionMessage(msg.Type, r.Header.Get("x-amz-sns-message-type")) {
		s.logger.Warn().
			Str("topic_arn", msg.TopicArn).
			Str("subscribe_url", msg.SubscribeURL).
			Str("type", msg.Type).
			Msg("SNS subscription message received; confirm it by visiting the subscribe URL")
		writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	result, err := s.reconciler.Reconcile(r.Context(), body)
	if err != nil {
		writeError(w, StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func isSubscriptionMessage(bodyType, headerType string) bool {
	for _, t := range []string{bodyType, headerType} {
		if t == "SubscriptionConfirmation" || t == "UnsubscribeConfirmation" {
			return true
		}
	}
	return false
}

// StatusFor maps an invocation error to an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrMalformedEvent):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrDependency):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
