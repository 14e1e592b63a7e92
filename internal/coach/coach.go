// Package coach drives coaching sessions: it applies user actions to the
// session state, runs generation requests in the background and settles
// their results back into the session that asked for them.
package coach

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"postulamatch/internal/ai"
	"postulamatch/internal/errors"
	"postulamatch/internal/quiz"
	"postulamatch/internal/session"
	"postulamatch/internal/types"

	"go.opentelemetry.io/otel/trace"
)

// Metrics receives domain events. All methods must be safe for concurrent use.
type Metrics interface {
	AnalysisSettled(ctx context.Context, success bool, elapsed time.Duration)
	ReportSettled(ctx context.Context, kind string, outcome string)
	QuizCompleted(ctx context.Context, kind string, passed bool)
	ChatReplied(ctx context.Context, success bool)
}

// Report outcomes passed to Metrics.ReportSettled
const (
	OutcomeSuppressed = "suppressed"
	OutcomeLoaded     = "loaded"
	OutcomeFailed     = "failed"
	OutcomeDiscarded  = "discarded"
)

type nopMetrics struct{}

func (nopMetrics) AnalysisSettled(context.Context, bool, time.Duration) {}
func (nopMetrics) ReportSettled(context.Context, string, string)        {}
func (nopMetrics) QuizCompleted(context.Context, string, bool)          {}
func (nopMetrics) ChatReplied(context.Context, bool)                    {}

// Coach owns the session store and the generation client
type Coach struct {
	store   *session.Store
	gen     ai.Generator
	logger  *errors.Logger
	metrics Metrics
	now     func() time.Time

	base     context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	inflight atomic.Int64
}

// Option customizes a Coach
type Option func(*Coach)

// WithMetrics reports domain events to m
func WithMetrics(m Metrics) Option {
	return func(c *Coach) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Coach) { c.now = now }
}

// New creates a coach
func New(store *session.Store, gen ai.Generator, logger *errors.Logger, opts ...Option) *Coach {
	base, cancel := context.WithCancel(context.Background())
	c := &Coach{
		store:   store,
		gen:     gen,
		logger:  logger,
		metrics: nopMetrics{},
		now:     time.Now,
		base:    base,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// spawn runs fn in the background. fn gets a context that outlives the
// request but keeps its trace, and is canceled only by Drain.
func (c *Coach) spawn(reqCtx context.Context, fn func(ctx context.Context)) {
	ctx := trace.ContextWithSpanContext(c.base, trace.SpanContextFromContext(reqCtx))
	c.wg.Add(1)
	c.inflight.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.inflight.Add(-1)
		fn(ctx)
	}()
}

// Drain waits for background generations. When ctx ends first the remaining
// ones are canceled and Drain returns ctx's error.
func (c *Coach) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// InFlight returns the number of running background generations
func (c *Coach) InFlight() int64 { return c.inflight.Load() }

// Sessions returns the number of live sessions
func (c *Coach) Sessions() int { return c.store.Len() }

// CreateSession starts a session on the upload step
func (c *Coach) CreateSession() (session.State, error) {
	s, err := c.store.Create()
	if err != nil {
		return session.State{}, err
	}
	return s.Snapshot(), nil
}

// Session returns the current state of a session
func (c *Coach) Session(id string) (session.State, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return session.State{}, err
	}
	return s.Snapshot(), nil
}

// DeleteSession drops a session. Results still in flight for it are discarded.
func (c *Coach) DeleteSession(id string) {
	c.store.Delete(id)
}

func (c *Coach) update(id string, fn func(session.State) (session.State, error)) (session.State, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return session.State{}, err
	}
	return s.Update(fn)
}

// StartAnalysis stores both documents and starts the primary analysis
func (c *Coach) StartAnalysis(ctx context.Context, id string, resume, job types.Attachment) (session.State, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return session.State{}, err
	}
	resume.SourceType = types.SourceResume
	job.SourceType = types.SourceJob

	state, err := s.Update(func(st session.State) (session.State, error) {
		return session.BeginAnalysis(st, resume, job, c.now())
	})
	if err != nil {
		return state, err
	}
	s.ResetChat()

	epoch := state.Epoch
	c.logger.Info("Analysis started", "session_id", id, "epoch", epoch)
	c.spawn(ctx, func(ctx context.Context) {
		c.runAnalysis(ctx, s, epoch, resume, job)
	})
	return state, nil
}

func (c *Coach) runAnalysis(ctx context.Context, s *session.Session, epoch uint64, resume, job types.Attachment) {
	id := s.Snapshot().ID
	start := c.now()

	result, err := c.gen.Analyze(ctx, resume, job)
	if err != nil {
		c.logger.LogError(err, "Analysis failed", "session_id", id, "epoch", epoch)
		c.metrics.AnalysisSettled(ctx, false, c.now().Sub(start))
		_, _ = s.Update(func(st session.State) (session.State, error) {
			return session.AnalysisFailed(st, epoch, c.now())
		})
		return
	}

	chat, chatErr := c.gen.NewChatSession(ctx, result)
	if chatErr == nil {
		s.SetChat(epoch, chat)
	}

	state, err := s.Update(func(st session.State) (session.State, error) {
		return session.AnalysisSucceeded(st, epoch, *result, c.now())
	})
	if err != nil {
		c.logger.LogError(err, "Failed to store analysis", "session_id", id, "epoch", epoch)
		return
	}
	c.metrics.AnalysisSettled(ctx, true, c.now().Sub(start))

	if chatErr != nil {
		c.logger.LogError(chatErr, "Chat session unavailable", "session_id", id, "epoch", epoch)
		_, _ = s.Update(func(st session.State) (session.State, error) {
			return session.ChatUnavailable(st, epoch, c.now()), nil
		})
	}

	if state.Epoch == epoch {
		c.logger.Info("Analysis completed",
			"session_id", id,
			"epoch", epoch,
			"verdict", result.Verdict,
			"duration_seconds", state.Analysis.AnalysisDuration)
	}
}

// RequestReport starts a secondary report unless it is loading, loaded or
// missing its inputs. issued reports whether a request was started.
func (c *Coach) RequestReport(ctx context.Context, id string, kind session.ReportKind) (session.State, bool, error) {
	s, err := c.store.Get(id)
	if err != nil {
		return session.State{}, false, err
	}

	var issued bool
	state, err := s.Update(func(st session.State) (session.State, error) {
		next, ok, err := session.BeginReport(st, kind, c.now())
		issued = ok
		return next, err
	})
	if err != nil {
		return state, false, err
	}
	if !issued {
		c.metrics.ReportSettled(ctx, string(kind), OutcomeSuppressed)
		return state, false, nil
	}

	c.logger.Debug("Report requested", "session_id", id, "report", kind, "epoch", state.Epoch)
	c.spawn(ctx, func(ctx context.Context) {
		c.runReport(ctx, s, kind, state)
	})
	return state, true, nil
}

// fetch calls the generator for kind using the inputs held in st
func (c *Coach) fetch(ctx context.Context, kind session.ReportKind, st session.State) (any, error) {
	switch kind {
	case session.ReportMarket:
		return c.gen.MarketTrends(ctx, st.Analysis.UserProfile)
	case session.ReportSalary:
		return c.gen.SalaryNegotiation(ctx, *st.Resume, *st.Job)
	case session.ReportInterview:
		return c.gen.InterviewSimulation(ctx, *st.Resume, *st.Job)
	case session.ReportSenior:
		return c.gen.SeniorFeedback(ctx, *st.Resume)
	case session.ReportDecoder:
		return c.gen.JobTranslation(ctx, *st.Job)
	default:
		return nil, errors.NewValidationError(errors.ErrCodeInvalidReport, "unknown report "+string(kind), nil)
	}
}

func (c *Coach) runReport(ctx context.Context, s *session.Session, kind session.ReportKind, started session.State) {
	epoch := started.Epoch
	value, err := c.fetch(ctx, kind, started)

	outcome := OutcomeLoaded
	_, updateErr := s.Update(func(st session.State) (session.State, error) {
		if !st.Settles(kind, epoch) {
			outcome = OutcomeDiscarded
			return st, nil
		}
		if err != nil {
			outcome = OutcomeFailed
			return session.ReportFailed(st, kind, epoch, c.now())
		}
		next, setErr := session.ReportSucceeded(st, kind, epoch, value, c.now())
		if setErr != nil {
			outcome = OutcomeFailed
			err = setErr
			return session.ReportFailed(st, kind, epoch, c.now())
		}
		return next, nil
	})
	if updateErr != nil {
		c.logger.LogError(updateErr, "Failed to settle report", "report", kind, "epoch", epoch)
	}

	switch outcome {
	case OutcomeFailed:
		c.logger.LogError(err, "Report failed", "session_id", started.ID, "report", kind, "epoch", epoch)
	case OutcomeDiscarded:
		c.logger.Debug("Report discarded for a previous analysis", "session_id", started.ID, "report", kind, "epoch", epoch)
	default:
		c.logger.Debug("Report loaded", "session_id", started.ID, "report", kind, "epoch", epoch)
	}
	c.metrics.ReportSettled(ctx, string(kind), outcome)
}

// SelectTab activates a tab and fires its report on the first visit
func (c *Coach) SelectTab(ctx context.Context, id string, tab session.Tab) (session.State, error) {
	state, err := c.update(id, func(st session.State) (session.State, error) {
		return session.SelectTab(st, tab, c.now())
	})
	if err != nil {
		return state, err
	}

	if kind, ok := session.ReportForTab(tab); ok {
		state, _, err = c.RequestReport(ctx, id, kind)
	}
	return state, err
}

// StartWeeklyQuiz opens the quiz of assessment j in study module i
func (c *Coach) StartWeeklyQuiz(id string, moduleIndex, assessmentIndex int) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.StartWeeklyQuiz(st, moduleIndex, assessmentIndex, c.now())
	})
}

// StartFinalExam opens the final exam
func (c *Coach) StartFinalExam(id string) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.StartFinalExam(st, c.now())
	})
}

// AnswerQuestion records an answer in the active quiz
func (c *Coach) AnswerQuestion(id, questionID, answer string) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.AnswerQuestion(st, questionID, answer, c.now())
	})
}

// CompleteQuiz scores the active quiz and records its result
func (c *Coach) CompleteQuiz(ctx context.Context, id string) (session.State, types.QuizResult, error) {
	var (
		result types.QuizResult
		kind   quiz.Kind
	)
	state, err := c.update(id, func(st session.State) (session.State, error) {
		next, r, err := session.CompleteQuiz(st, c.now())
		result = r
		if next.Quiz != nil {
			kind = next.Quiz.Quiz.Kind
		}
		return next, err
	})
	if err != nil {
		return state, types.QuizResult{}, err
	}

	c.metrics.QuizCompleted(ctx, string(kind), result.Passed)
	c.logger.Info("Quiz completed",
		"session_id", id,
		"quiz", result.QuizTitle,
		"score", result.Score,
		"total", result.TotalQuestions,
		"passed", result.Passed)
	return state, result, nil
}

// CloseQuiz returns to the results view
func (c *Coach) CloseQuiz(id string) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.CloseQuiz(st, c.now())
	})
}

// ToggleChat shows or hides the chat overlay
func (c *Coach) ToggleChat(id string) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.ToggleChat(st, c.now()), nil
	})
}

// SendChatMessage sends a message to the tutor and waits for the reply. The
// reply is stored even if the caller goes away before it arrives.
func (c *Coach) SendChatMessage(ctx context.Context, id, text string) (session.State, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.State{}, "", errors.NewValidationError(errors.ErrCodeInvalidRequest, "message is empty", nil)
	}

	s, err := c.store.Get(id)
	if err != nil {
		return session.State{}, "", err
	}
	chat, ok := s.Chat()
	if !ok {
		return s.Snapshot(), "", errors.NewConflictError(errors.ErrCodeChatUnavailable, "chat is not available", nil)
	}

	state, err := s.Update(func(st session.State) (session.State, error) {
		return session.BeginChatMessage(st, text, c.now())
	})
	if err != nil {
		return state, "", err
	}
	epoch := state.Epoch

	var (
		reply   string
		sendErr error
	)
	done := make(chan struct{})
	c.spawn(ctx, func(bg context.Context) {
		defer close(done)
		reply, sendErr = chat.Send(bg, text)

		state, _ = s.Update(func(st session.State) (session.State, error) {
			if sendErr != nil {
				return session.ChatFailed(st, epoch, c.now()), nil
			}
			return session.ChatReplied(st, epoch, reply, c.now()), nil
		})
		c.metrics.ChatReplied(bg, sendErr == nil)
	})

	select {
	case <-done:
	case <-ctx.Done():
		return s.Snapshot(), "", ctx.Err()
	}

	if sendErr != nil {
		c.logger.LogError(sendErr, "Chat message failed", "session_id", id)
		return state, "", sendErr
	}
	return state, reply, nil
}

// GoHome returns to the upload step unless an analysis is running
func (c *Coach) GoHome(id string) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.GoHome(st, c.now()), nil
	})
}

// DismissNotice clears the notice with sequence number seq
func (c *Coach) DismissNotice(id string, seq uint64) (session.State, error) {
	return c.update(id, func(st session.State) (session.State, error) {
		return session.DismissNotice(st, seq, c.now()), nil
	})
}
