package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"postulamatch/internal/ai"
	"postulamatch/internal/coach"
	"postulamatch/internal/config"
	"postulamatch/internal/errors"
	"postulamatch/internal/i18n"
	"postulamatch/internal/session"
	"postulamatch/internal/types"
)

// AnalysisRequest carries the two documents of a new analysis
type AnalysisRequest struct {
	Resume types.Attachment `json:"resume"`
	Job    types.Attachment `json:"job"`
}

type TabRequest struct {
	Tab string `json:"tab"`
}

type WeeklyQuizRequest struct {
	ModuleIndex     int `json:"moduleIndex"`
	AssessmentIndex int `json:"assessmentIndex"`
}

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

// SessionResponse is the snapshot returned by every session endpoint. Notice
// and Loading are already localized for the request language.
type SessionResponse struct {
	Session session.State `json:"session"`
	View    session.View  `json:"view"`
	Notice  string        `json:"notice,omitempty"`
	Loading string        `json:"loading,omitempty"`

	Issued     *bool             `json:"issued,omitempty"`
	Reply      string            `json:"reply,omitempty"`
	QuizResult *types.QuizResult `json:"quizResult,omitempty"`
	QuizLabel  string            `json:"quizLabel,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RateLimitRecorder counts rejected requests
type RateLimitRecorder interface {
	RecordRateLimitHit(ctx context.Context, key string)
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	TLSConfig config.TLSConfig

	// API Authentication, replaced at runtime by the key watcher
	keysMu  sync.RWMutex
	apiKeys map[string]bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	MaxRequestSize int64

	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	Coach      *coach.Coach
	Health     ai.HealthReporter
	Catalog    *i18n.Catalog
	Metrics    RateLimitRecorder
	KeyWatcher *KeyWatcher

	// Instrument wraps the router, e.g. with otelhttp
	Instrument func(http.Handler) http.Handler

	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	TLSConfig      config.TLSConfig
	APIKeys        []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	RateLimit      *config.RateLimitConfig

	Coach      *coach.Coach
	Health     ai.HealthReporter
	Catalog    *i18n.Catalog
	Metrics    RateLimitRecorder
	Instrument func(http.Handler) http.Handler
}

// NewServerConfig derives the server settings from the application config.
// A request carries two base64 documents, hence the request size limit.
func NewServerConfig(cfg *config.Config, version string) ServerConfig {
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: 3*cfg.App.MaxFileSize + 64*1024,
		RateLimit:      &cfg.Server.RateLimit,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct
func NewServer(appCfg *config.Config, cfg ServerConfig, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity, logger)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		TLSConfig:      cfg.TLSConfig,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Coach:          cfg.Coach,
		Health:         cfg.Health,
		Catalog:        cfg.Catalog,
		Metrics:        cfg.Metrics,
		Instrument:     cfg.Instrument,
		Logger:         logger,
	}
	s.SetAPIKeys(cfg.APIKeys)
	return s
}

// SetAPIKeys replaces the accepted API keys
func (s *Server) SetAPIKeys(keys []string) {
	keyMap := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key != "" {
			keyMap[key] = true
		}
	}

	s.keysMu.Lock()
	s.apiKeys = keyMap
	s.keysMu.Unlock()
}

func (s *Server) authEnabled() bool {
	return s.keyCount() > 0
}

func (s *Server) keyCount() int {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return len(s.apiKeys)
}

func (s *Server) validKey(key string) bool {
	s.keysMu.RLock()
	defer s.keysMu.RUnlock()
	return s.apiKeys[key]
}
