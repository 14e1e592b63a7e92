package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"postulamatch/internal/ai"
	"postulamatch/internal/coach"
	"postulamatch/internal/config"
	"postulamatch/internal/errors"
	"postulamatch/internal/i18n"
	"postulamatch/internal/session"
	"postulamatch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGenerator answers every generation from fixtures
type stubGenerator struct {
	mu   sync.Mutex
	fail map[string]bool
}

func (g *stubGenerator) failing(op string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail[op] {
		return errors.NewAIError(errors.ErrCodeAIServiceFailed, op+" failed", nil)
	}
	return nil
}

func (g *stubGenerator) setFail(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[op] = true
}

func (g *stubGenerator) Analyze(context.Context, types.Attachment, types.Attachment) (*types.AnalysisResult, error) {
	if err := g.failing("analysis"); err != nil {
		return nil, err
	}
	return &types.AnalysisResult{
		UserProfile: types.UserProfile{Name: "Lucía", CurrentRole: "SRE"},
		Verdict:     types.VerdictFit,
		StudyPath: []types.WeeklyModule{{
			WeekNumber: 1,
			Title:      "Kubernetes",
			Assessments: []types.Assessment{{
				Title: "Pods",
				Questions: []types.QuizQuestion{
					{ID: "q1", Type: types.QuestionTrueFalse, CorrectAnswer: "Verdadero"},
					{ID: "q2", Type: types.QuestionShortAnswer, CorrectAnswer: "kubelet"},
				},
			}},
		}},
		FinalEvaluation: types.FinalEval{
			Questions: []types.QuizQuestion{{ID: "f1", Type: types.QuestionShortAnswer, CorrectAnswer: "etcd"}},
		},
	}, nil
}

type stubChat struct{}

func (stubChat) Send(_ context.Context, text string) (string, error) {
	return "eco: " + text, nil
}

func (g *stubGenerator) NewChatSession(context.Context, *types.AnalysisResult) (ai.ChatSession, error) {
	return stubChat{}, nil
}

func (g *stubGenerator) MarketTrends(context.Context, types.UserProfile) (*types.MarketTrends, error) {
	if err := g.failing("market"); err != nil {
		return nil, err
	}
	return &types.MarketTrends{GrowingTech: []string{"eBPF"}}, nil
}

func (g *stubGenerator) SalaryNegotiation(context.Context, types.Attachment, types.Attachment) (*types.SalaryNegotiation, error) {
	return &types.SalaryNegotiation{InitialOffer: "50k"}, nil
}

func (g *stubGenerator) InterviewSimulation(context.Context, types.Attachment, types.Attachment) (*types.InterviewSimulation, error) {
	return &types.InterviewSimulation{Introduction: "Hola"}, nil
}

func (g *stubGenerator) SeniorFeedback(context.Context, types.Attachment) (*types.SeniorFeedback, error) {
	return &types.SeniorFeedback{RealityCheck: "Bien"}, nil
}

func (g *stubGenerator) JobTranslation(context.Context, types.Attachment) (*types.JobTranslation, error) {
	return &types.JobTranslation{HonestVersion: "Guardias"}, nil
}

func (g *stubGenerator) RedFlags(context.Context, types.Attachment) (*types.RedFlagsAnalysis, error) {
	return &types.RedFlagsAnalysis{}, nil
}

type stubHealth struct{ available bool }

func (h stubHealth) GetModelInfo(context.Context) *ai.ModelInfo {
	return &ai.ModelInfo{Name: "gemini-test", Available: h.available}
}

func (h stubHealth) CircuitBreakerStats() map[string]any {
	return map[string]any{"overall_healthy": h.available}
}

type countingRecorder struct {
	mu   sync.Mutex
	hits []string
}

func (c *countingRecorder) RecordRateLimitHit(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits = append(c.hits, key)
}

type testEnv struct {
	server *Server
	http   *httptest.Server
	gen    *stubGenerator
}

func newTestEnv(t *testing.T, mutate func(*config.Config, *ServerConfig)) *testEnv {
	t.Helper()
	logger := errors.NewLoggerWithWriter(io.Discard, slog.LevelError)

	cfg := &config.Config{}
	cfg.App.MaxFileSize = 1024 * 1024
	cfg.App.MaxSessions = 10
	cfg.Observability.HealthCheck.Timeout = time.Second

	store := session.NewStore(session.StoreOptions{TTL: time.Hour, MaxSessions: cfg.App.MaxSessions, Logger: logger})
	t.Cleanup(store.Close)

	gen := &stubGenerator{fail: map[string]bool{}}
	c := coach.New(store, gen, logger)
	t.Cleanup(func() { _ = c.Drain(context.Background()) })

	catalog, err := i18n.New("es")
	require.NoError(t, err)

	sc := NewServerConfig(cfg, "test")
	sc.Coach = c
	sc.Catalog = catalog
	sc.Health = stubHealth{available: true}
	if mutate != nil {
		mutate(cfg, &sc)
	}

	s := NewServer(cfg, sc, logger)
	t.Cleanup(func() {
		if s.RateLimiter != nil {
			s.RateLimiter.Close()
		}
	})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: s, http: ts, gen: gen}
}

type sessionBody struct {
	Session struct {
		ID      string `json:"id"`
		Step    string `json:"step"`
		Tab     string `json:"tab"`
		Epoch   uint64 `json:"epoch"`
		Reports map[string]struct {
			Status   string `json:"status"`
			Attempts int    `json:"attempts"`
		} `json:"reports"`
		Quiz *struct {
			Quiz struct {
				Title string `json:"title"`
			} `json:"quiz"`
			Answers map[string]string `json:"answers"`
		} `json:"quiz"`
		QuizResults []types.QuizResult `json:"quizResults"`
		Chat        struct {
			Ready   bool                `json:"ready"`
			Open    bool                `json:"open"`
			History []types.ChatMessage `json:"history"`
		} `json:"chat"`
		Notice *session.Notice `json:"notice"`
	} `json:"session"`
	View       session.View      `json:"view"`
	Notice     string            `json:"notice"`
	Loading    string            `json:"loading"`
	Issued     *bool             `json:"issued"`
	Reply      string            `json:"reply"`
	QuizResult *types.QuizResult `json:"quizResult"`
	QuizLabel  string            `json:"quizLabel"`
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+"/api/v1"+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) call(t *testing.T, method, path string, body any, wantStatus int) sessionBody {
	t.Helper()
	resp := e.do(t, method, path, body, nil)
	require.Equal(t, wantStatus, resp.StatusCode)
	return decode[sessionBody](t, resp)
}

func textDoc(s string) types.Attachment {
	return types.Attachment{MimeType: "text/plain", Data: base64.StdEncoding.EncodeToString([]byte(s))}
}

func (e *testEnv) analyzedSession(t *testing.T) string {
	t.Helper()
	created := e.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated)
	id := created.Session.ID

	started := e.call(t, http.MethodPost, "/sessions/"+id+"/analysis", AnalysisRequest{
		Resume: textDoc("Lucía, SRE con cinco años de experiencia"),
		Job:    textDoc("Buscamos SRE con Kubernetes"),
	}, http.StatusAccepted)
	assert.Equal(t, "analyzing", started.Session.Step)
	assert.Equal(t, session.ViewAnalyzing, started.View.Name)
	assert.NotEmpty(t, started.Loading)

	e.waitFor(t, id, func(b sessionBody) bool { return b.Session.Step == "results" && b.Session.Chat.Ready })
	return id
}

func (e *testEnv) waitFor(t *testing.T, id string, cond func(sessionBody) bool) sessionBody {
	t.Helper()
	var last sessionBody
	require.Eventually(t, func() bool {
		resp := e.do(t, http.MethodGet, "/sessions/"+id, nil, nil)
		if resp.StatusCode != http.StatusOK {
			return false
		}
		last = decode[sessionBody](t, resp)
		return cond(last)
	}, 2*time.Second, 10*time.Millisecond)
	return last
}

func TestCreateAndGetSession(t *testing.T) {
	env := newTestEnv(t, nil)

	created := env.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated)
	require.NotEmpty(t, created.Session.ID)
	assert.Equal(t, "upload", created.Session.Step)
	assert.Equal(t, session.ViewUpload, created.View.Name)

	got := env.call(t, http.MethodGet, "/sessions/"+created.Session.ID, nil, http.StatusOK)
	assert.Equal(t, created.Session.ID, got.Session.ID)

	resp := env.do(t, http.MethodDelete, "/sessions/"+created.Session.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/sessions/"+created.Session.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, errors.ErrCodeSessionNotFound, body.Error)
}

func TestAnalysisAndLazyReports(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.analyzedSession(t)

	body := env.call(t, http.MethodPut, "/sessions/"+id+"/tab", TabRequest{Tab: "market"}, http.StatusOK)
	assert.Equal(t, "market", body.Session.Tab)
	assert.Equal(t, session.ReportMarket, body.View.Report)

	body = env.waitFor(t, id, func(b sessionBody) bool { return b.Session.Reports["market"].Status == "loaded" })
	assert.Equal(t, 1, body.Session.Reports["market"].Attempts)

	// a loaded report is not requested again
	body = env.call(t, http.MethodPost, "/sessions/"+id+"/reports/market", nil, http.StatusOK)
	require.NotNil(t, body.Issued)
	assert.False(t, *body.Issued)
	assert.Equal(t, 1, body.Session.Reports["market"].Attempts)

	// salary has no tab and is requested explicitly
	body = env.call(t, http.MethodPost, "/sessions/"+id+"/reports/salary", nil, http.StatusAccepted)
	require.NotNil(t, body.Issued)
	assert.True(t, *body.Issued)
	env.waitFor(t, id, func(b sessionBody) bool { return b.Session.Reports["salary"].Status == "loaded" })
}

func TestFailedReportSurfacesLocalizedNotice(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.setFail("market")
	id := env.analyzedSession(t)

	env.call(t, http.MethodPost, "/sessions/"+id+"/reports/market", nil, http.StatusAccepted)

	resp := func() sessionBody {
		var b sessionBody
		require.Eventually(t, func() bool {
			r := env.do(t, http.MethodGet, "/sessions/"+id, nil, http.Header{"Accept-Language": {"en"}})
			b = decode[sessionBody](t, r)
			return b.Session.Reports["market"].Status == "failed"
		}, 2*time.Second, 10*time.Millisecond)
		return b
	}()
	require.NotNil(t, resp.Session.Notice)
	assert.Equal(t, "notice.market_failed", resp.Session.Notice.MessageID)
	assert.Equal(t, "Market trends could not be loaded.", resp.Notice)

	seq := resp.Session.Notice.Seq
	dismissed := env.call(t, http.MethodDelete, fmt.Sprintf("/sessions/%s/notice/%d", id, seq), nil, http.StatusOK)
	assert.Nil(t, dismissed.Session.Notice)
	assert.Empty(t, dismissed.Notice)
}

func TestAnalysisFailureReturnsToUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	env.gen.setFail("analysis")

	created := env.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated)
	id := created.Session.ID
	env.call(t, http.MethodPost, "/sessions/"+id+"/analysis", AnalysisRequest{
		Resume: textDoc("cv"), Job: textDoc("oferta"),
	}, http.StatusAccepted)

	body := env.waitFor(t, id, func(b sessionBody) bool { return b.Session.Step == "upload" })
	require.NotNil(t, body.Session.Notice)
	assert.Contains(t, body.Notice, "Ocurrió un error")
}

func TestAnalysisRejectsBadDocuments(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated).Session.ID

	tests := []struct {
		name string
		req  AnalysisRequest
		code string
	}{
		{
			name: "not base64",
			req:  AnalysisRequest{Resume: types.Attachment{Data: "%%%"}, Job: textDoc("oferta")},
			code: errors.ErrCodeInvalidFormat,
		},
		{
			name: "empty job",
			req:  AnalysisRequest{Resume: textDoc("cv"), Job: types.Attachment{}},
			code: errors.ErrCodeInvalidRequest,
		},
		{
			name: "unsupported type",
			req: AnalysisRequest{
				Resume: textDoc("cv"),
				Job:    types.Attachment{Data: base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d})},
			},
			code: errors.ErrCodeUnsupportedFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/sessions/"+id+"/analysis", tt.req, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, resp).Error)
		})
	}

	body := env.call(t, http.MethodGet, "/sessions/"+id, nil, http.StatusOK)
	assert.Equal(t, "upload", body.Session.Step)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated).Session.ID

	req, err := http.NewRequest(http.MethodPut, env.http.URL+"/api/v1/sessions/"+id+"/tab", bytes.NewBufferString(`{"tab":"market"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "missing content type")

	resp = env.do(t, http.MethodPut, "/sessions/"+id+"/tab", TabRequest{Tab: "salary"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidTab, decode[ErrorResponse](t, resp).Error)

	resp = env.do(t, http.MethodPost, "/sessions/"+id+"/reports/horoscope", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidReport, decode[ErrorResponse](t, resp).Error)

	// tabs require results
	resp = env.do(t, http.MethodPut, "/sessions/"+id+"/tab", TabRequest{Tab: "market"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidTransition, decode[ErrorResponse](t, resp).Error)

	resp = env.do(t, http.MethodDelete, "/sessions/"+id+"/notice/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuizEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.analyzedSession(t)

	body := env.call(t, http.MethodPost, "/sessions/"+id+"/quiz/weekly", WeeklyQuizRequest{}, http.StatusOK)
	require.NotNil(t, body.Session.Quiz)
	assert.Equal(t, "Semana 1: Pods", body.Session.Quiz.Quiz.Title)
	assert.Equal(t, session.ViewQuiz, body.View.Name)
	assert.False(t, body.View.ChatVisible)

	env.call(t, http.MethodPut, "/sessions/"+id+"/quiz/answers/q1", AnswerRequest{Answer: "Verdadero"}, http.StatusOK)
	body = env.call(t, http.MethodPut, "/sessions/"+id+"/quiz/answers/q2", AnswerRequest{Answer: "docker"}, http.StatusOK)
	assert.Len(t, body.Session.Quiz.Answers, 2)

	resp := env.do(t, http.MethodPut, "/sessions/"+id+"/quiz/answers/zz", AnswerRequest{Answer: "x"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	body = env.call(t, http.MethodPost, "/sessions/"+id+"/quiz/complete", nil, http.StatusOK)
	require.NotNil(t, body.QuizResult)
	assert.Equal(t, 1, body.QuizResult.Score)
	assert.Equal(t, 50, body.QuizResult.Percentage)
	assert.False(t, body.QuizResult.Passed)
	assert.Equal(t, "No aprobado", body.QuizLabel)
	assert.Len(t, body.Session.QuizResults, 1)

	body = env.call(t, http.MethodDelete, "/sessions/"+id+"/quiz", nil, http.StatusOK)
	assert.Nil(t, body.Session.Quiz)
	assert.Equal(t, session.ViewResults, body.View.Name)

	body = env.call(t, http.MethodPost, "/sessions/"+id+"/quiz/final", nil, http.StatusOK)
	require.NotNil(t, body.Session.Quiz)
	assert.Equal(t, "Examen Final Integral", body.Session.Quiz.Quiz.Title)
}

func TestChatEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.analyzedSession(t)

	body := env.call(t, http.MethodPost, "/sessions/"+id+"/chat/toggle", nil, http.StatusOK)
	assert.True(t, body.Session.Chat.Open)
	assert.True(t, body.View.ChatVisible)

	body = env.call(t, http.MethodPost, "/sessions/"+id+"/chat/messages", ChatRequest{Text: "¿Qué estudio primero?"}, http.StatusOK)
	assert.Equal(t, "eco: ¿Qué estudio primero?", body.Reply)
	require.Len(t, body.Session.Chat.History, 2)
	assert.Equal(t, types.ChatRoleUser, body.Session.Chat.History[0].Role)
	assert.Equal(t, types.ChatRoleModel, body.Session.Chat.History[1].Role)

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/chat/messages", ChatRequest{Text: "  "}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHomeResetsToUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.analyzedSession(t)

	body := env.call(t, http.MethodPost, "/sessions/"+id+"/home", nil, http.StatusOK)
	assert.Equal(t, "upload", body.Session.Step)
	assert.Equal(t, session.ViewUpload, body.View.Name)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, sc *ServerConfig) {
		sc.APIKeys = []string{"secret-key-1"}
	})

	resp := env.do(t, http.MethodPost, "/sessions", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "MISSING_API_KEY", decode[ErrorResponse](t, resp).Error)

	resp = env.do(t, http.MethodPost, "/sessions", nil, http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/sessions", nil, http.Header{"X-Api-Key": {"secret-key-1"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/sessions", nil, http.Header{"Authorization": {"Bearer secret-key-1"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// health stays public
	resp = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// rotated keys replace the old ones
	env.server.SetAPIKeys([]string{"secret-key-2"})
	resp = env.do(t, http.MethodPost, "/sessions", nil, http.Header{"X-Api-Key": {"secret-key-1"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/sessions", nil, http.Header{"X-Api-Key": {"secret-key-2"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimitMiddleware(t *testing.T) {
	recorder := &countingRecorder{}
	env := newTestEnv(t, func(_ *config.Config, sc *ServerConfig) {
		sc.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstCapacity: 2, ByIP: true}
		sc.Metrics = recorder
	})

	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/sessions", nil, nil).StatusCode)
	assert.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/sessions", nil, nil).StatusCode)

	resp := env.do(t, http.MethodPost, "/sessions", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", decode[ErrorResponse](t, resp).Error)

	recorder.mu.Lock()
	assert.Equal(t, []string{"ip"}, recorder.hits)
	recorder.mu.Unlock()

	stats := decode[map[string]any](t, env.do(t, http.MethodGet, "/stats", nil, nil))
	limiting, ok := stats["rate_limiting"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, limiting["active_limiters"])
}

func TestRequestSizeLimit(t *testing.T) {
	env := newTestEnv(t, func(_ *config.Config, sc *ServerConfig) {
		sc.MaxRequestSize = 64
	})
	id := env.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated).Session.ID

	resp := env.do(t, http.MethodPost, "/sessions/"+id+"/chat/messages", ChatRequest{Text: string(bytes.Repeat([]byte("a"), 200))}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeFileTooLarge, decode[ErrorResponse](t, resp).Error)
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "postulamatch", health["service"])
	assert.Contains(t, health, "circuit_breakers")

	env.server.Health = stubHealth{available: false}
	resp = env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", decode[map[string]any](t, resp)["status"])

	env.call(t, http.MethodPost, "/sessions", nil, http.StatusCreated)
	stats := decode[map[string]any](t, env.do(t, http.MethodGet, "/stats", nil, nil))
	sessions, ok := stats["sessions"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, sessions["active"])
	assert.EqualValues(t, 10, sessions["max"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.NewValidationError(errors.ErrCodeInvalidRequest, "x", nil), http.StatusBadRequest},
		{errors.NewNotFoundError(errors.ErrCodeSessionNotFound, "x", nil), http.StatusNotFound},
		{errors.NewConflictError(errors.ErrCodeInvalidTransition, "x", nil), http.StatusConflict},
		{errors.NewAIError(errors.ErrCodeAITimeout, "x", nil), http.StatusBadGateway},
		{errors.NewInternalError(errors.ErrCodeInvalidReport, "x", nil), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", errors.NewNotFoundError(errors.ErrCodeQuizNotFound, "x", nil)), http.StatusNotFound},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "error %v", tt.err)
	}
}

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(r))

	r.Header.Set("X-Real-IP", "192.0.2.7")
	assert.Equal(t, "192.0.2.7", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "garbage, 198.51.100.2, 10.0.0.1")
	assert.Equal(t, "198.51.100.2", getClientIP(r))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "abcdefgh****", maskAPIKey("abcdefghijkl"))
}
