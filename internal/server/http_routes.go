package server

import (
	"net/http"
	"strings"
	"time"

	"postulamatch/internal/observability"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handler returns the API router with all middleware applied
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	if s.Catalog != nil {
		r.Use(s.Catalog.Middleware)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.healthHandler)
		r.Get("/stats", s.statsHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimitMiddleware)
			r.Use(s.authMiddleware)
			r.Use(s.requestSizeLimitMiddleware)
			r.Post("/sessions", s.createSessionHandler)
			r.Route("/sessions/{id}", s.sessionRoutes)
		})
	})

	if s.Instrument != nil {
		return s.Instrument(r)
	}
	return r
}

func (s *Server) sessionRoutes(r chi.Router) {
	r.Use(observability.SessionAttributes(chi.URLParam, "id"))

	r.Get("/", s.getSessionHandler)
	r.Delete("/", s.deleteSessionHandler)
	r.Post("/analysis", s.analysisHandler)
	r.Put("/tab", s.selectTabHandler)
	r.With(observability.SessionAttributes(chi.URLParam, "kind")).
		Post("/reports/{kind}", s.reportHandler)

	r.Route("/quiz", func(r chi.Router) {
		r.Post("/weekly", s.weeklyQuizHandler)
		r.Post("/final", s.finalExamHandler)
		r.Put("/answers/{questionId}", s.answerHandler)
		r.Post("/complete", s.completeQuizHandler)
		r.Delete("/", s.closeQuizHandler)
	})

	r.Post("/chat/toggle", s.toggleChatHandler)
	r.Post("/chat/messages", s.chatMessageHandler)
	r.Post("/home", s.homeHandler)
	r.Delete("/notice/{seq}", s.dismissNoticeHandler)
}

// accessLog logs one line per request
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// authMiddleware provides API key authentication
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled() {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := requestAPIKey(r)
		if apiKey == "" {
			s.Logger.Info("Authentication failed: missing API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r))
			writeErrorResponse(w, "MISSING_API_KEY", "X-API-Key header or Authorization Bearer token required", http.StatusUnauthorized)
			return
		}

		if !s.validKey(apiKey) {
			s.Logger.Info("Authentication failed: invalid API key",
				"endpoint", r.URL.Path,
				"client_ip", getClientIP(r),
				"api_key_prefix", maskAPIKey(apiKey))
			writeErrorResponse(w, "INVALID_API_KEY", "Unauthorized access", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.MaxRequestSize > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
		}
		next.ServeHTTP(w, r)
	})
}

func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if after, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return after
	}
	return ""
}

// maskAPIKey masks an API key for logging (shows only first 8 characters)
func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "****"
	}
	return apiKey[:8] + "****"
}
