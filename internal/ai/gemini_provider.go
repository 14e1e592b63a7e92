package ai

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"postulamatch/internal/config"
	"postulamatch/internal/errors"
	"postulamatch/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const tracerName = "postulamatch.ai.gemini"

// operation holds the client and breaker of one generation operation
type operation struct {
	client  *genai.Client
	breaker *Breaker[*genai.GenerateContentResponse]
}

// GeminiProvider implements Generator for Google Gemini
type GeminiProvider struct {
	cfg          *config.Config
	ops          map[config.Operation]*operation
	modelBreaker *Breaker[*genai.Model]
	recorder     Recorder
	logger       *errors.Logger

	httpClient  *http.Client
	httpOptions genai.HTTPOptions
	retryDelay  time.Duration
}

var (
	_ Generator      = (*GeminiProvider)(nil)
	_ HealthReporter = (*GeminiProvider)(nil)
)

// Option customizes a GeminiProvider
type Option func(*GeminiProvider)

// WithRecorder reports every generation request to r
func WithRecorder(r Recorder) Option {
	return func(g *GeminiProvider) { g.recorder = r }
}

// WithEndpoint points the client at another API endpoint
func WithEndpoint(baseURL string, client *http.Client) Option {
	return func(g *GeminiProvider) {
		g.httpOptions.BaseURL = baseURL
		g.httpClient = client
	}
}

// WithRetryDelay sets the base delay of the exponential backoff
func WithRetryDelay(d time.Duration) Option {
	return func(g *GeminiProvider) { g.retryDelay = d }
}

// NewGeminiProvider creates one client and one circuit breaker per operation.
// Operations sharing an API key share a client.
func NewGeminiProvider(ctx context.Context, cfg *config.Config, logger *errors.Logger, opts ...Option) (*GeminiProvider, error) {
	g := &GeminiProvider{
		cfg:        cfg,
		ops:        make(map[config.Operation]*operation, len(config.Operations)),
		logger:     logger,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}

	clients := make(map[string]*genai.Client)
	for _, op := range config.Operations {
		opCfg, err := cfg.ForOperation(op)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid AI configuration", err)
		}

		client, ok := clients[opCfg.APIKey]
		if !ok {
			client, err = genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:      opCfg.APIKey,
				Backend:     genai.BackendGeminiAPI,
				HTTPClient:  g.httpClient,
				HTTPOptions: g.httpOptions,
			})
			if err != nil {
				return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create Gemini client", err)
			}
			clients[opCfg.APIKey] = client
		}

		g.ops[op] = &operation{
			client:  client,
			breaker: NewGenerationBreaker(op, opCfg.CircuitBreaker, logger),
		}
		if op == config.OpAnalysis {
			g.modelBreaker = NewModelBreaker(opCfg.CircuitBreaker, logger)
		}

		logger.Debug("Initialized AI operation",
			"operation", op,
			"provider", opCfg.Provider,
			"model", opCfg.Model,
			"temperature", *opCfg.Temperature,
			"timeout", *opCfg.Timeout,
			"max_retries", *opCfg.MaxRetries,
			"use_system_prompts", *opCfg.UseSystemPrompts)
	}

	return g, nil
}

// generation is one structured generation request
type generation struct {
	op     config.Operation
	schema *genai.Schema
	inputs []*genai.Part
	attrs  []attribute.KeyValue
}

// generate runs a structured generation with tracing, timeout, circuit breaker,
// retries and JSON decoding into Out
func generate[Out any](ctx context.Context, g *GeminiProvider, req generation) (*Out, error) {
	cfg, err := g.cfg.ForOperation(req.op)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid AI configuration", err)
	}
	op := g.ops[req.op]

	ctx, span := otel.Tracer(tracerName).Start(ctx, "gemini."+string(req.op))
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", cfg.Model),
		attribute.Float64("ai.temperature", float64(*cfg.Temperature)),
	)
	span.SetAttributes(req.attrs...)

	ctx, cancel := context.WithTimeout(ctx, *cfg.Timeout)
	defer cancel()

	genCfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   req.schema,
	}
	if *cfg.Temperature > 0 {
		genCfg.Temperature = cfg.Temperature
	}

	system, user := promptsFor(req.op, cfg)
	parts := make([]*genai.Part, 0, len(req.inputs)+2)
	if *cfg.UseSystemPrompts && system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	} else if system != "" {
		parts = append(parts, genai.NewPartFromText(system))
	}
	parts = append(parts, genai.NewPartFromText(user))
	parts = append(parts, req.inputs...)
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	start := time.Now()
	result, err := op.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, req.op, *cfg.MaxRetries, func() (*genai.GenerateContentResponse, error) {
			return op.client.Models.GenerateContent(ctx, cfg.Model, contents, genCfg)
		})
	})
	usage := extractTokenUsage(result)

	if err != nil {
		err = classifyError(ctx, req.op, err)
		g.record(ctx, req.op, time.Since(start), err, usage)
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	var out Out
	if err := json.Unmarshal([]byte(result.Text()), &out); err != nil {
		err = errors.NewAIError(errors.ErrCodeAIInvalidResponse,
			"Failed to parse AI response for "+string(req.op), err)
		g.record(ctx, req.op, time.Since(start), err, usage)
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid response")
		return nil, err
	}

	g.record(ctx, req.op, time.Since(start), nil, usage)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}
	span.SetAttributes(attribute.Bool("success", true))
	return &out, nil
}

func (g *GeminiProvider) record(ctx context.Context, op config.Operation, elapsed time.Duration, err error, usage *TokenUsage) {
	if g.recorder == nil {
		return
	}
	if usage == nil {
		usage = &TokenUsage{}
	}
	g.recorder.RecordGeneration(ctx, string(op), elapsed, err, usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
}

// classifyError turns a failed call into an AI error. Deadline expiry maps to
// AI_TIMEOUT so callers can tell it apart from upstream failures.
func classifyError(ctx context.Context, op config.Operation, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewAIError(errors.ErrCodeAITimeout, "Timed out generating "+string(op), err)
	}
	return errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to generate content for "+string(op), err)
}

// executeWithRetry executes an AI operation with retry logic and exponential backoff
func (g *GeminiProvider) executeWithRetry(ctx context.Context, op config.Operation, maxRetries int, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Warn("Retrying AI operation",
				"operation", op,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("operation '%s' interrupted during backoff: %w", op, ctx.Err())
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				g.logger.Info("AI operation succeeded after retry",
					"operation", op,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			g.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", op,
				"error", err.Error())
			break
		}
	}

	g.logger.LogError(lastErr, "AI operation failed",
		"operation", op,
		"max_retries", maxRetries)

	return nil, fmt.Errorf("operation '%s' failed: %w", op, lastErr)
}

// backoff doubles the base delay per attempt, adds up to 10% jitter and caps at 30s
func (g *GeminiProvider) backoff(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * g.retryDelay
	var jitter time.Duration
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(baseDelay+jitter, 30*time.Second)
}

// isRetryableError reports whether a failed call may succeed when repeated
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if code, ok := statusCode(err); ok {
		switch code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	// connection refused, resets and dial timeouts
	var netErr net.Error
	return stderrors.As(err, &netErr)
}

func statusCode(err error) (int, bool) {
	var apiErr genai.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if stderrors.As(err, &apiErrPtr) {
		return apiErrPtr.Code, true
	}
	var googleErr *googleapi.Error
	if stderrors.As(err, &googleErr) {
		return googleErr.Code, true
	}
	return 0, false
}

// attachmentPart decodes an attachment into an inline data part
func attachmentPart(a types.Attachment) (*genai.Part, error) {
	data, err := base64.StdEncoding.DecodeString(a.Data)
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("%s attachment is not valid base64", a.SourceType), err)
	}
	return genai.NewPartFromBytes(data, a.MimeType), nil
}

func attachmentParts(attachments ...types.Attachment) ([]*genai.Part, error) {
	parts := make([]*genai.Part, 0, len(attachments))
	for _, a := range attachments {
		part, err := attachmentPart(a)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	return parts, nil
}

func attachmentAttrs(attachments ...types.Attachment) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2*len(attachments))
	for _, a := range attachments {
		prefix := "input." + string(a.SourceType)
		attrs = append(attrs,
			attribute.String(prefix+".mime_type", a.MimeType),
			attribute.Int(prefix+".encoded_length", len(a.Data)))
	}
	return attrs
}

// Analyze produces the primary fit analysis and study path
func (g *GeminiProvider) Analyze(ctx context.Context, resume, job types.Attachment) (*types.AnalysisResult, error) {
	parts, err := attachmentParts(resume, job)
	if err != nil {
		return nil, err
	}

	result, err := generate[types.AnalysisResult](ctx, g, generation{
		op:     config.OpAnalysis,
		schema: analysisSchema(),
		inputs: parts,
		attrs:  attachmentAttrs(resume, job),
	})
	if err != nil {
		return nil, err
	}

	normalizeAnalysis(result)
	return result, nil
}

// MarketTrends comments on the market from the candidate profile
func (g *GeminiProvider) MarketTrends(ctx context.Context, profile types.UserProfile) (*types.MarketTrends, error) {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "Failed to encode user profile", err)
	}

	return generate[types.MarketTrends](ctx, g, generation{
		op:     config.OpMarket,
		schema: marketTrendsSchema(),
		inputs: []*genai.Part{genai.NewPartFromText(string(profileJSON))},
		attrs:  []attribute.KeyValue{attribute.Int("input.top_skills", len(profile.TopSkills))},
	})
}

// SalaryNegotiation simulates a salary negotiation for the candidate and job
func (g *GeminiProvider) SalaryNegotiation(ctx context.Context, resume, job types.Attachment) (*types.SalaryNegotiation, error) {
	parts, err := attachmentParts(resume, job)
	if err != nil {
		return nil, err
	}
	return generate[types.SalaryNegotiation](ctx, g, generation{
		op:     config.OpSalary,
		schema: salaryNegotiationSchema(),
		inputs: parts,
		attrs:  attachmentAttrs(resume, job),
	})
}

// InterviewSimulation prepares a mock interview for the candidate and job
func (g *GeminiProvider) InterviewSimulation(ctx context.Context, resume, job types.Attachment) (*types.InterviewSimulation, error) {
	parts, err := attachmentParts(resume, job)
	if err != nil {
		return nil, err
	}
	return generate[types.InterviewSimulation](ctx, g, generation{
		op:     config.OpInterview,
		schema: interviewSimulationSchema(),
		inputs: parts,
		attrs:  attachmentAttrs(resume, job),
	})
}

// SeniorFeedback gives blunt mentoring from the resume alone
func (g *GeminiProvider) SeniorFeedback(ctx context.Context, resume types.Attachment) (*types.SeniorFeedback, error) {
	parts, err := attachmentParts(resume)
	if err != nil {
		return nil, err
	}
	return generate[types.SeniorFeedback](ctx, g, generation{
		op:     config.OpSenior,
		schema: seniorFeedbackSchema(),
		inputs: parts,
		attrs:  attachmentAttrs(resume),
	})
}

// JobTranslation decodes the corporate language of a job posting
func (g *GeminiProvider) JobTranslation(ctx context.Context, job types.Attachment) (*types.JobTranslation, error) {
	parts, err := attachmentParts(job)
	if err != nil {
		return nil, err
	}
	return generate[types.JobTranslation](ctx, g, generation{
		op:     config.OpDecoder,
		schema: jobTranslationSchema(),
		inputs: parts,
		attrs:  attachmentAttrs(job),
	})
}

// RedFlags lists the warning signs of a job posting
func (g *GeminiProvider) RedFlags(ctx context.Context, job types.Attachment) (*types.RedFlagsAnalysis, error) {
	parts, err := attachmentParts(job)
	if err != nil {
		return nil, err
	}
	return generate[types.RedFlagsAnalysis](ctx, g, generation{
		op:     config.OpRedFlags,
		schema: redFlagsSchema(),
		inputs: parts,
		attrs:  attachmentAttrs(job),
	})
}

// normalizeAnalysis fills what the model may leave out. Quiz answers are keyed
// by question id, so missing or repeated ids are replaced.
func normalizeAnalysis(a *types.AnalysisResult) {
	if strings.TrimSpace(a.AccessibilityStatement) == "" {
		a.AccessibilityStatement = AccessibilityFallback
	}
	a.Verdict = strings.ToUpper(strings.TrimSpace(a.Verdict))

	for i := range a.StudyPath {
		for j := range a.StudyPath[i].Assessments {
			assignQuestionIDs(a.StudyPath[i].Assessments[j].Questions, fmt.Sprintf("w%d-a%d", i+1, j+1))
		}
	}
	assignQuestionIDs(a.FinalEvaluation.Questions, "final")
}

func assignQuestionIDs(questions []types.QuizQuestion, prefix string) {
	seen := make(map[string]bool, len(questions))
	for k := range questions {
		id := strings.TrimSpace(questions[k].ID)
		if id == "" || seen[id] {
			id = fmt.Sprintf("%s-q%d", prefix, k+1)
		}
		questions[k].ID = id
		seen[id] = true
	}
}

// geminiChat is a tutor conversation backed by a genai chat
type geminiChat struct {
	g    *GeminiProvider
	op   *operation
	mu   sync.Mutex
	chat *genai.Chat
}

// NewChatSession opens the tutor conversation for an analysis
func (g *GeminiProvider) NewChatSession(ctx context.Context, analysis *types.AnalysisResult) (ChatSession, error) {
	if analysis == nil {
		return nil, errors.NewValidationError(errors.ErrCodeChatUnavailable, "chat requires an analysis", nil)
	}
	cfg, err := g.cfg.ForOperation(config.OpChat)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid AI configuration", err)
	}
	op := g.ops[config.OpChat]

	system, _ := promptsFor(config.OpChat, cfg)
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(tutorInstruction(system, analysis), genai.RoleUser),
	}
	if *cfg.Temperature > 0 {
		genCfg.Temperature = cfg.Temperature
	}

	chat, err := op.client.Chats.Create(ctx, cfg.Model, genCfg, nil)
	if err != nil {
		return nil, errors.NewAIError(errors.ErrCodeAIServiceFailed, "Failed to create chat session", err)
	}
	return &geminiChat{g: g, op: op, chat: chat}, nil
}

func tutorInstruction(system string, a *types.AnalysisResult) string {
	var b strings.Builder
	b.WriteString(system)
	if a.TutorInstructions != "" {
		b.WriteString("\n\n")
		b.WriteString(a.TutorInstructions)
	}
	fmt.Fprintf(&b, "\n\nCandidato: %s (%s, %d años de experiencia). Veredicto: %s.",
		a.UserProfile.Name, a.UserProfile.CurrentRole, a.UserProfile.YearsExperience, a.Verdict)
	if len(a.StudyPath) > 0 {
		b.WriteString("\nRuta de estudio:")
		for _, week := range a.StudyPath {
			fmt.Fprintf(&b, "\n- Semana %d: %s", week.WeekNumber, week.Title)
		}
	}
	return b.String()
}

// Send sends one user message and returns the tutor's reply
func (c *geminiChat) Send(ctx context.Context, text string) (string, error) {
	cfg, err := c.g.cfg.ForOperation(config.OpChat)
	if err != nil {
		return "", errors.NewConfigError(errors.ErrCodeInvalidConfig, "Invalid AI configuration", err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "gemini.chat")
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", cfg.Model),
		attribute.Int("input.message_length", len(text)),
	)

	ctx, cancel := context.WithTimeout(ctx, *cfg.Timeout)
	defer cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	result, err := c.op.breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return c.g.executeWithRetry(ctx, config.OpChat, *cfg.MaxRetries, func() (*genai.GenerateContentResponse, error) {
			return c.chat.SendMessage(ctx, genai.Part{Text: text})
		})
	})
	usage := extractTokenUsage(result)
	if err != nil {
		err = classifyError(ctx, config.OpChat, err)
		c.g.record(ctx, config.OpChat, time.Since(start), err, usage)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat failed")
		return "", err
	}

	reply := strings.TrimSpace(result.Text())
	if reply == "" {
		err := errors.NewAIError(errors.ErrCodeAIInvalidResponse, "Empty chat reply", nil)
		c.g.record(ctx, config.OpChat, time.Since(start), err, usage)
		span.RecordError(err)
		return "", err
	}

	c.g.record(ctx, config.OpChat, time.Since(start), nil, usage)
	return reply, nil
}

// GetModelInfo checks the readiness and availability of the analysis model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	cfg, err := g.cfg.ForOperation(config.OpAnalysis)
	if err != nil {
		return &ModelInfo{Error: err.Error()}
	}
	modelInfo := &ModelInfo{Name: cfg.Model}

	timeout := g.cfg.Observability.HealthCheck.AIModelCheckTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.ops[config.OpAnalysis].client.Models.Get(checkCtx, cfg.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", cfg.Model,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	modelInfo.DisplayName = model.DisplayName
	modelInfo.Version = model.Version

	g.logger.Debug("Model availability check successful",
		"model", cfg.Model,
		"display_name", modelInfo.DisplayName,
		"version", modelInfo.Version)

	return modelInfo
}

// CircuitBreakerStats returns the state of every breaker
func (g *GeminiProvider) CircuitBreakerStats() map[string]any {
	healthy := g.modelBreaker.Healthy()
	operations := make(map[string]any, len(g.ops))
	for op, o := range g.ops {
		operations[string(op)] = o.breaker.Stats()
		healthy = healthy && o.breaker.Healthy()
	}

	return map[string]any{
		"ai_operations":    operations,
		"model_operations": g.modelBreaker.Stats(),
		"overall_healthy":  healthy,
	}
}

// extractTokenUsage extracts token usage information from Gemini API response
func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
