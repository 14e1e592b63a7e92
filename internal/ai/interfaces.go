package ai

import (
	"context"
	"time"

	"postulamatch/internal/types"
)

// Generator produces the documents of a coaching session. Every method is a
// single request to the model and returns a structured result or an error.
type Generator interface {
	Analyze(ctx context.Context, resume, job types.Attachment) (*types.AnalysisResult, error)
	NewChatSession(ctx context.Context, analysis *types.AnalysisResult) (ChatSession, error)
	MarketTrends(ctx context.Context, profile types.UserProfile) (*types.MarketTrends, error)
	SalaryNegotiation(ctx context.Context, resume, job types.Attachment) (*types.SalaryNegotiation, error)
	InterviewSimulation(ctx context.Context, resume, job types.Attachment) (*types.InterviewSimulation, error)
	SeniorFeedback(ctx context.Context, resume types.Attachment) (*types.SeniorFeedback, error)
	JobTranslation(ctx context.Context, job types.Attachment) (*types.JobTranslation, error)
	RedFlags(ctx context.Context, job types.Attachment) (*types.RedFlagsAnalysis, error)
}

// ChatSession is a stateful tutor conversation. The model keeps the history.
type ChatSession interface {
	Send(ctx context.Context, text string) (string, error)
}

// HealthReporter exposes provider health for the health endpoint
type HealthReporter interface {
	GetModelInfo(ctx context.Context) *ModelInfo
	CircuitBreakerStats() map[string]any
}

// Recorder receives one call per generation request
type Recorder interface {
	RecordGeneration(ctx context.Context, operation string, elapsed time.Duration, err error, inputTokens, outputTokens, totalTokens int64)
}

// ModelInfo represents information about the AI model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}
