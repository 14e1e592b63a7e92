package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"postulamatch/internal/errors"
	"postulamatch/internal/i18n"
	"postulamatch/internal/intake"
	"postulamatch/internal/session"
	"postulamatch/internal/types"

	"github.com/go-chi/chi/v5"
)

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Coach.CreateSession()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.Logger.Info("Session created", "session_id", st.ID)
	s.writeSession(w, r, http.StatusCreated, st, nil)
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Coach.Session(chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	s.Coach.DeleteSession(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) analysisHandler(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}

	maxSize := s.AppConfig.App.MaxFileSize
	resume, err := intake.Normalize(req.Resume, types.SourceResume, maxSize)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	job, err := intake.Normalize(req.Job, types.SourceJob, maxSize)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	st, err := s.Coach.StartAnalysis(r.Context(), chi.URLParam(r, "id"), resume, job)
	s.respond(w, r, http.StatusAccepted, st, err)
}

func (s *Server) selectTabHandler(w http.ResponseWriter, r *http.Request) {
	var req TabRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	tab, err := session.ParseTab(req.Tab)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	st, err := s.Coach.SelectTab(r.Context(), chi.URLParam(r, "id"), tab)
	s.respond(w, r, http.StatusOK, st, err)
}

// reportHandler answers 202 when a request was issued and 200 when it was
// suppressed because the report is loading or already loaded
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	kind, err := session.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}

	st, issued, err := s.Coach.RequestReport(r.Context(), chi.URLParam(r, "id"), kind)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	status := http.StatusOK
	if issued {
		status = http.StatusAccepted
	}
	s.writeSession(w, r, status, st, func(resp *SessionResponse) {
		resp.Issued = &issued
	})
}

func (s *Server) weeklyQuizHandler(w http.ResponseWriter, r *http.Request) {
	var req WeeklyQuizRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	st, err := s.Coach.StartWeeklyQuiz(chi.URLParam(r, "id"), req.ModuleIndex, req.AssessmentIndex)
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) finalExamHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Coach.StartFinalExam(chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) answerHandler(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	st, err := s.Coach.AnswerQuestion(chi.URLParam(r, "id"), chi.URLParam(r, "questionId"), req.Answer)
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) completeQuizHandler(w http.ResponseWriter, r *http.Request) {
	st, result, err := s.Coach.CompleteQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	label := "quiz.failed"
	if result.Passed {
		label = "quiz.passed"
	}
	s.writeSession(w, r, http.StatusOK, st, func(resp *SessionResponse) {
		resp.QuizResult = &result
		resp.QuizLabel = i18n.T(r.Context(), label)
	})
}

func (s *Server) closeQuizHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Coach.CloseQuiz(chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) toggleChatHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Coach.ToggleChat(chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) chatMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeAppError(w, r, err)
		return
	}
	st, reply, err := s.Coach.SendChatMessage(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, st, func(resp *SessionResponse) {
		resp.Reply = reply
	})
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	st, err := s.Coach.GoHome(chi.URLParam(r, "id"))
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) dismissNoticeHandler(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.ParseUint(chi.URLParam(r, "seq"), 10, 64)
	if err != nil {
		s.writeAppError(w, r, errors.NewValidationError(errors.ErrCodeInvalidRequest, "notice sequence must be a positive integer", err))
		return
	}
	st, err := s.Coach.DismissNotice(chi.URLParam(r, "id"), seq)
	s.respond(w, r, http.StatusOK, st, err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, st session.State, err error) {
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	s.writeSession(w, r, status, st, nil)
}

// writeSession renders a state snapshot with its resolved view and the
// notice and loading texts in the request language
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, st session.State, extra func(*SessionResponse)) {
	view := session.ResolveView(st)
	resp := SessionResponse{Session: st, View: view}
	if st.Notice != nil {
		resp.Notice = i18n.T(r.Context(), st.Notice.MessageID)
	}
	if view.LoadingText != "" {
		resp.Loading = i18n.T(r.Context(), view.LoadingText)
	}
	if extra != nil {
		extra(&resp)
	}
	writeJSON(w, status, resp)
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	if appErr, ok := errors.AsAppError(err); ok {
		switch appErr.Type {
		case errors.ErrorTypeValidation, errors.ErrorTypeIO:
			return http.StatusBadRequest
		case errors.ErrorTypeNotFound:
			return http.StatusNotFound
		case errors.ErrorTypeConflict:
			return http.StatusConflict
		case errors.ErrorTypeAI, errors.ErrorTypeNetwork:
			return http.StatusBadGateway
		default:
			return http.StatusInternalServerError
		}
	}
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case stderrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code, message := "INTERNAL_ERROR", "internal server error"
	if appErr, ok := errors.AsAppError(err); ok {
		code, message = appErr.Code, appErr.Message
	}

	if status >= http.StatusInternalServerError {
		s.Logger.LogError(err, "Request failed",
			"endpoint", r.URL.Path,
			"session_id", chi.URLParam(r, "id"))
	} else {
		s.Logger.Debug("Request rejected",
			"endpoint", r.URL.Path,
			"error_code", code)
	}
	writeErrorResponse(w, code, message, status)
}

// healthHandler reports model availability and circuit breaker state
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status":  "healthy",
		"service": "postulamatch",
		"version": s.Version,
	}
	healthy := true

	if s.Health != nil {
		timeout := s.AppConfig.Observability.HealthCheck.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		modelInfo := s.Health.GetModelInfo(ctx)
		response["ai_models"] = map[string]any{"analysis": modelInfo}
		healthy = modelInfo.Available

		breakers := s.Health.CircuitBreakerStats()
		response["circuit_breakers"] = breakers
		if ok, exists := breakers["overall_healthy"].(bool); exists && !ok {
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		response["status"] = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statsHandler provides session and rate limiting statistics
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "postulamatch",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
			"api_keys":               s.keyCount(),
		},
	}

	if s.Coach != nil {
		response["sessions"] = map[string]any{
			"active":    s.Coach.Sessions(),
			"in_flight": s.Coach.InFlight(),
			"max":       s.AppConfig.App.MaxSessions,
		}
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{"enabled": false}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_ip":            s.RateLimit.ByIP,
			"by_api_key":       s.RateLimit.ByAPIKey,
		}
	}

	if s.KeyWatcher != nil {
		response["key_watcher"] = s.KeyWatcher.Status()
	}

	writeJSON(w, http.StatusOK, response)
}

// parseJSONRequest parses JSON request body into the provided struct
func parseJSONRequest(r *http.Request, v any) *errors.AppError {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "content-type must be application/json", nil)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if stderrors.As(err, &maxBytesErr) {
			return errors.NewValidationError(errors.ErrCodeFileTooLarge,
				fmt.Sprintf("request body too large (limit is %d bytes)", maxBytesErr.Limit), err)
		}
		return errors.NewIOError(errors.ErrCodeInvalidRequest, "failed to read request body", err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest, "failed to parse JSON", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: code, Message: message})
}
