package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"postulamatch/internal/config"
	"postulamatch/internal/errors"
	"postulamatch/internal/types"

	"github.com/spf13/viper"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

func genaiError(code int) error {
	return genai.APIError{Code: code, Message: "fake"}
}

// fakeGemini serves generateContent requests with queued responses
type fakeGemini struct {
	mu        sync.Mutex
	responses []fakeResponse
	requests  []map[string]any
	calls     atomic.Int32
}

type fakeResponse struct {
	status int
	text   string
	delay  time.Duration
}

func (f *fakeGemini) push(r ...fakeResponse) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, r...)
}

func (f *fakeGemini) lastRequest(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("No request received")
	}
	return f.requests[len(f.requests)-1]
}

func (f *fakeGemini) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	w.Header().Set("Content-Type", "application/json")

	if r.Method == http.MethodGet {
		_, _ = fmt.Fprint(w, `{"name":"models/test-model","displayName":"Test Model","version":"001"}`)
		return
	}

	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	f.requests = append(f.requests, body)
	resp := fakeResponse{status: http.StatusOK, text: "{}"}
	if len(f.responses) > 0 {
		resp = f.responses[0]
		f.responses = f.responses[1:]
	}
	f.mu.Unlock()

	if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-r.Context().Done():
			return
		}
	}

	if resp.status != http.StatusOK {
		w.WriteHeader(resp.status)
		_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"fake failure","status":"UNAVAILABLE"}}`, resp.status)
		return
	}

	out := map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": []any{map[string]any{"text": resp.text}}},
			"finishReason": "STOP",
		}},
		"usageMetadata": map[string]any{"promptTokenCount": 120, "candidatesTokenCount": 30, "totalTokenCount": 150},
	}
	_ = json.NewEncoder(w).Encode(out)
}

type recordedCall struct {
	operation string
	err       error
	total     int64
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (r *fakeRecorder) RecordGeneration(_ context.Context, operation string, _ time.Duration, err error, _, _, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{operation: operation, err: err, total: total})
}

func newTestProvider(t *testing.T, settings map[string]any) (*GeminiProvider, *fakeGemini, *fakeRecorder) {
	t.Helper()

	fake := &fakeGemini{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	v := viper.New()
	v.Set("ai.apiKey", "test-key")
	v.Set("ai.model", "test-model")
	for _, op := range config.Operations {
		v.Set("ai."+string(op)+".maxRetries", 0)
		v.Set("ai."+string(op)+".circuitBreaker.enabled", false)
	}
	for k, val := range settings {
		v.Set(k, val)
	}
	cfg, err := config.LoadConfigFromViper(v)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	recorder := &fakeRecorder{}
	g, err := NewGeminiProvider(context.Background(), cfg, testLogger,
		WithEndpoint(srv.URL, srv.Client()),
		WithRecorder(recorder),
		WithRetryDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return g, fake, recorder
}

func attachment(source types.SourceType, mime, text string) types.Attachment {
	return types.Attachment{MimeType: mime, Data: base64.StdEncoding.EncodeToString([]byte(text)), SourceType: source}
}

var (
	testResume = attachment(types.SourceResume, "application/pdf", "%PDF-1.4 Ana Pérez, Backend Developer")
	testJob    = attachment(types.SourceJob, "text/plain", "Buscamos Platform Engineer con Kubernetes")
)

const analysisJSON = `{
  "userProfile": {"name": "Ana Pérez", "currentRole": "Backend Developer", "yearsExperience": 4, "topSkills": ["Go", "PostgreSQL"]},
  "verdict": " apto ",
  "verdictExplanation": "Cumple lo esencial",
  "vacancyAnalysis": "Rol de plataforma",
  "candidateAnalysis": "Backend sólido",
  "comparisonMatrix": [{"criteria": "Orquestación", "requirement": "Kubernetes", "candidateMatch": "Docker", "status": "Partial"}],
  "studyPath": [{
    "weekNumber": 1, "title": "Kubernetes", "estimatedHours": 6,
    "theory": "Pods y Deployments", "podcastScript": "...", "podcastSummary": "...",
    "resources": [],
    "assessments": [{"title": "Conceptos", "type": "Conceptual", "questions": [
      {"id": "", "question": "¿Qué es un Pod?", "type": "ShortAnswer", "correctAnswer": "La unidad mínima"},
      {"id": "dup", "question": "A", "type": "TrueFalse", "correctAnswer": "Verdadero"},
      {"id": "dup", "question": "B", "type": "TrueFalse", "correctAnswer": "Falso"}
    ]}]
  }],
  "finalEvaluation": {"caseStudy": "Migración", "questions": [{"id": "f1", "question": "SLO", "type": "ShortAnswer", "correctAnswer": "objetivo"}], "feedbackReport": "Bien"},
  "tutorInstructions": "Sé paciente",
  "accessibilityStatement": ""
}`

func TestAnalyze(t *testing.T) {
	g, fake, recorder := newTestProvider(t, nil)
	fake.push(fakeResponse{status: http.StatusOK, text: analysisJSON})

	result, err := g.Analyze(context.Background(), testResume, testJob)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if result.UserProfile.Name != "Ana Pérez" {
		t.Errorf("Unexpected profile %+v", result.UserProfile)
	}
	if result.Verdict != types.VerdictFit {
		t.Errorf("Expected normalized verdict %q, got %q", types.VerdictFit, result.Verdict)
	}
	if result.AccessibilityStatement != AccessibilityFallback {
		t.Errorf("Expected accessibility fallback, got %q", result.AccessibilityStatement)
	}

	questions := result.StudyPath[0].Assessments[0].Questions
	ids := []string{questions[0].ID, questions[1].ID, questions[2].ID}
	if ids[0] != "w1-a1-q1" || ids[1] != "dup" || ids[2] != "w1-a1-q3" {
		t.Errorf("Question ids were not made unique: %v", ids)
	}

	req := fake.lastRequest(t)
	if _, ok := req["systemInstruction"]; !ok {
		t.Error("Expected a system instruction in the request")
	}
	raw, _ := json.Marshal(req["contents"])
	if got := strings.Count(string(raw), "inlineData"); got != 2 {
		t.Errorf("Expected both documents as inline parts, found %d", got)
	}
	if !strings.Contains(string(raw), "application/pdf") {
		t.Error("Expected the resume MIME type in the request")
	}

	if len(recorder.calls) != 1 || recorder.calls[0].operation != "analysis" || recorder.calls[0].err != nil {
		t.Fatalf("Unexpected recorded calls: %+v", recorder.calls)
	}
	if recorder.calls[0].total != 150 {
		t.Errorf("Expected 150 total tokens, got %d", recorder.calls[0].total)
	}
}

func TestSecondaryReports(t *testing.T) {
	g, fake, _ := newTestProvider(t, nil)
	ctx := context.Background()

	t.Run("MarketTrends", func(t *testing.T) {
		fake.push(fakeResponse{status: http.StatusOK, text: `{"marketGaps":["IaC"],"growingTech":["Rust"],"decliningTech":[],"emergingRoles":["Platform Engineer"],"recommendations":["Terraform"]}`})
		out, err := g.MarketTrends(ctx, types.UserProfile{Name: "Ana", TopSkills: []string{"Go"}})
		if err != nil {
			t.Fatalf("MarketTrends failed: %v", err)
		}
		if len(out.EmergingRoles) != 1 || out.EmergingRoles[0] != "Platform Engineer" {
			t.Errorf("Unexpected market trends %+v", out)
		}
		raw, _ := json.Marshal(fake.lastRequest(t)["contents"])
		if !strings.Contains(string(raw), `\"topSkills\"`) {
			t.Error("Expected the profile JSON in the request")
		}
	})

	t.Run("SalaryNegotiation", func(t *testing.T) {
		fake.push(fakeResponse{status: http.StatusOK, text: `{"initialOffer":"40k","recruiterExcuse":"presupuesto","lowballRisks":[],"negotiationStrategy":[{"objection":"No hay margen","counterScript":"Entiendo..."}],"closingTips":[]}`})
		out, err := g.SalaryNegotiation(ctx, testResume, testJob)
		if err != nil {
			t.Fatalf("SalaryNegotiation failed: %v", err)
		}
		if len(out.NegotiationStrategy) != 1 {
			t.Errorf("Unexpected negotiation %+v", out)
		}
	})

	t.Run("SeniorFeedback", func(t *testing.T) {
		fake.push(fakeResponse{status: http.StatusOK, text: `{"realityCheck":"Te falta impacto","doingWell":[],"doingPoorly":[],"stopDoingImmediately":[],"priorities":[],"marketTrends":[],"improvementPlan":[]}`})
		out, err := g.SeniorFeedback(ctx, testResume)
		if err != nil {
			t.Fatalf("SeniorFeedback failed: %v", err)
		}
		if out.RealityCheck != "Te falta impacto" {
			t.Errorf("Unexpected feedback %+v", out)
		}
		raw, _ := json.Marshal(fake.lastRequest(t)["contents"])
		if got := strings.Count(string(raw), "inlineData"); got != 1 {
			t.Errorf("Expected only the resume, found %d inline parts", got)
		}
	})

	t.Run("JobTranslation", func(t *testing.T) {
		fake.push(fakeResponse{status: http.StatusOK, text: `{"ambiguities":[],"dictionary":[{"jargon":"ambiente dinámico","reality":"caos"}],"hiddenSignals":[],"responsibilities":{"real":["on-call"],"smoke":[]},"honestVersion":"..."}`})
		out, err := g.JobTranslation(ctx, testJob)
		if err != nil {
			t.Fatalf("JobTranslation failed: %v", err)
		}
		if out.Dictionary[0].Reality != "caos" || out.Responsibilities.Real[0] != "on-call" {
			t.Errorf("Unexpected translation %+v", out)
		}
	})

	t.Run("RedFlags", func(t *testing.T) {
		fake.push(fakeResponse{status: http.StatusOK, text: `{"redFlags":[{"title":"Salario oculto","description":"...","severity":"Medium"}],"risks":[],"questionsToAsk":[],"alternatives":[]}`})
		out, err := g.RedFlags(ctx, testJob)
		if err != nil {
			t.Fatalf("RedFlags failed: %v", err)
		}
		if out.RedFlags[0].Severity != "Medium" {
			t.Errorf("Unexpected red flags %+v", out)
		}
	})
}

func TestRetryOnUnavailable(t *testing.T) {
	g, fake, _ := newTestProvider(t, map[string]any{"ai.interview.maxRetries": 2})
	fake.push(
		fakeResponse{status: http.StatusServiceUnavailable},
		fakeResponse{status: http.StatusOK, text: `{"introduction":"Hola","questions":[],"generalTips":[]}`},
	)

	out, err := g.InterviewSimulation(context.Background(), testResume, testJob)
	if err != nil {
		t.Fatalf("Expected success after retry, got %v", err)
	}
	if out.Introduction != "Hola" {
		t.Errorf("Unexpected interview %+v", out)
	}
	if got := fake.calls.Load(); got != 2 {
		t.Errorf("Expected 2 calls, got %d", got)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	g, fake, recorder := newTestProvider(t, map[string]any{"ai.decoder.maxRetries": 3})
	fake.push(fakeResponse{status: http.StatusBadRequest})

	_, err := g.JobTranslation(context.Background(), testJob)
	if !errors.HasCode(err, errors.ErrCodeAIServiceFailed) {
		t.Fatalf("Expected AI_SERVICE_FAILED, got %v", err)
	}
	if got := fake.calls.Load(); got != 1 {
		t.Errorf("Client errors must not be retried, got %d calls", got)
	}
	if len(recorder.calls) != 1 || recorder.calls[0].err == nil {
		t.Errorf("Expected one failed call to be recorded, got %+v", recorder.calls)
	}
}

func TestTimeout(t *testing.T) {
	g, fake, _ := newTestProvider(t, map[string]any{"ai.senior.timeout": 50 * time.Millisecond})
	fake.push(fakeResponse{status: http.StatusOK, text: `{}`, delay: 2 * time.Second})

	_, err := g.SeniorFeedback(context.Background(), testResume)
	if !errors.HasCode(err, errors.ErrCodeAITimeout) {
		t.Fatalf("Expected AI_TIMEOUT, got %v", err)
	}
}

func TestInvalidResponse(t *testing.T) {
	g, fake, _ := newTestProvider(t, nil)
	fake.push(fakeResponse{status: http.StatusOK, text: "no es json"})

	_, err := g.MarketTrends(context.Background(), types.UserProfile{})
	if !errors.HasCode(err, errors.ErrCodeAIInvalidResponse) {
		t.Fatalf("Expected AI_INVALID_RESPONSE, got %v", err)
	}
}

func TestInvalidAttachment(t *testing.T) {
	g, fake, _ := newTestProvider(t, nil)

	bad := types.Attachment{MimeType: "application/pdf", Data: "%%%", SourceType: types.SourceResume}
	_, err := g.SeniorFeedback(context.Background(), bad)
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if fake.calls.Load() != 0 {
		t.Error("Invalid attachments must not reach the model")
	}
}

func TestChatSession(t *testing.T) {
	g, fake, recorder := newTestProvider(t, nil)
	analysis := &types.AnalysisResult{
		UserProfile:       types.UserProfile{Name: "Ana", CurrentRole: "Backend Developer", YearsExperience: 4},
		Verdict:           types.VerdictFit,
		TutorInstructions: "Usa ejemplos en Go",
		StudyPath:         []types.WeeklyModule{{WeekNumber: 1, Title: "Kubernetes"}},
	}

	chat, err := g.NewChatSession(context.Background(), analysis)
	if err != nil {
		t.Fatalf("NewChatSession failed: %v", err)
	}

	fake.push(fakeResponse{status: http.StatusOK, text: "  Empieza por los Pods.  "})
	reply, err := chat.Send(context.Background(), "¿Por dónde empiezo?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if reply != "Empieza por los Pods." {
		t.Errorf("Unexpected reply %q", reply)
	}

	raw, _ := json.Marshal(fake.lastRequest(t)["systemInstruction"])
	for _, want := range []string{"Usa ejemplos en Go", "Semana 1: Kubernetes"} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("Expected %q in the tutor instruction", want)
		}
	}

	fake.push(fakeResponse{status: http.StatusOK, text: "Luego los Services."})
	if _, err := chat.Send(context.Background(), "¿Y después?"); err != nil {
		t.Fatalf("Second send failed: %v", err)
	}
	raw, _ = json.Marshal(fake.lastRequest(t)["contents"])
	if !strings.Contains(string(raw), "Empieza por los Pods.") {
		t.Error("Expected the previous turn in the chat history")
	}

	if len(recorder.calls) != 2 || recorder.calls[0].operation != "chat" {
		t.Errorf("Unexpected recorded calls: %+v", recorder.calls)
	}

	if _, err := g.NewChatSession(context.Background(), nil); err == nil {
		t.Error("Expected an error without analysis")
	}
}

func TestHealth(t *testing.T) {
	g, _, _ := newTestProvider(t, nil)

	info := g.GetModelInfo(context.Background())
	if !info.Available || info.DisplayName != "Test Model" {
		t.Errorf("Unexpected model info %+v", info)
	}

	stats := g.CircuitBreakerStats()
	if healthy, _ := stats["overall_healthy"].(bool); !healthy {
		t.Error("Expected healthy breakers")
	}
	ops, _ := stats["ai_operations"].(map[string]any)
	if len(ops) != len(config.Operations) {
		t.Errorf("Expected stats for %d operations, got %d", len(config.Operations), len(ops))
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", genaiError(http.StatusServiceUnavailable), true},
		{"rate limited", genaiError(http.StatusTooManyRequests), true},
		{"bad request", genaiError(http.StatusBadRequest), false},
		{"googleapi gateway", &googleapi.Error{Code: http.StatusBadGateway}, true},
		{"googleapi forbidden", &googleapi.Error{Code: http.StatusForbidden}, false},
		{"deadline", context.DeadlineExceeded, false},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableError(tt.err); got != tt.want {
				t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
