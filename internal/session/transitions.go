package session

import (
	"fmt"
	"slices"
	"time"

	"postulamatch/internal/errors"
	"postulamatch/internal/quiz"
	"postulamatch/internal/types"
)

// Mode is a node of the navigation state machine
type Mode string

const (
	ModeUpload    Mode = "upload"
	ModeAnalyzing Mode = "analyzing"
	ModeResults   Mode = "results"
	ModeQuiz      Mode = "quiz-active"
)

// Event is an edge label of the navigation state machine
type Event string

const (
	EventBeginAnalysis   Event = "begin_analysis"
	EventAnalysisSuccess Event = "analysis_success"
	EventAnalysisFailure Event = "analysis_failure"
	EventSelectTab       Event = "select_tab"
	EventStartQuiz       Event = "start_quiz"
	EventCloseQuiz       Event = "close_quiz"
	EventGoHome          Event = "go_home"
)

// transitionTable lists every allowed navigation edge.
// Secondary report, quiz answer and chat events do not move between modes and
// are guarded inside their transition functions.
var transitionTable = map[Mode]map[Event]Mode{
	ModeUpload: {
		EventBeginAnalysis: ModeAnalyzing,
	},
	ModeAnalyzing: {
		EventAnalysisSuccess: ModeResults,
		EventAnalysisFailure: ModeUpload,
	},
	ModeResults: {
		EventSelectTab: ModeResults,
		EventStartQuiz: ModeQuiz,
		EventGoHome:    ModeUpload,
	},
	ModeQuiz: {
		EventCloseQuiz: ModeResults,
		EventGoHome:    ModeUpload,
	},
}

// Next returns the mode reached from m on e
func Next(m Mode, e Event) (Mode, bool) {
	next, ok := transitionTable[m][e]
	return next, ok
}

func (s State) require(e Event) error {
	if _, ok := Next(s.Mode(), e); !ok {
		return errors.NewConflictError(errors.ErrCodeInvalidTransition,
			fmt.Sprintf("cannot %s while %s", e, s.Mode()), nil).
			WithContext("mode", s.Mode()).
			WithContext("event", e)
	}
	return nil
}

// BeginAnalysis stores the uploaded documents and moves upload -> analyzing.
// Results of the previous analysis, its reports and its chat are discarded;
// quiz history is kept for the session.
func BeginAnalysis(s State, resume, job types.Attachment, now time.Time) (State, error) {
	if err := s.require(EventBeginAnalysis); err != nil {
		return s, err
	}

	s.Step = StepAnalyzing
	s.Tab = TabAnalysis
	s.Resume = &resume
	s.Job = &job
	s.Analysis = nil
	s.AnalysisStartedAt = now
	s.Epoch++
	s.Reports = Reports{}
	s.Quiz = nil
	s.Chat = ChatState{History: []types.ChatMessage{}}
	s.Notice = nil
	return s.touch(now), nil
}

// AnalysisSucceeded stores the primary analysis and moves analyzing -> results.
// The analysis duration is recorded in seconds.
func AnalysisSucceeded(s State, epoch uint64, result types.AnalysisResult, now time.Time) (State, error) {
	if epoch != s.Epoch {
		return s, nil
	}
	if err := s.require(EventAnalysisSuccess); err != nil {
		return s, err
	}

	result.AnalysisDuration = now.Sub(s.AnalysisStartedAt).Seconds()
	s.Analysis = &result
	s.Step = StepResults
	s.Tab = TabAnalysis
	s.Chat = ChatState{Ready: true, History: []types.ChatMessage{}}
	return s.touch(now), nil
}

// AnalysisFailed returns to upload with a notice. The documents are kept so the
// user can retry.
func AnalysisFailed(s State, epoch uint64, now time.Time) (State, error) {
	if epoch != s.Epoch {
		return s, nil
	}
	if err := s.require(EventAnalysisFailure); err != nil {
		return s, err
	}

	s.Step = StepUpload
	s = s.withNotice("notice.analysis_failed", "analysis", now)
	return s.touch(now), nil
}

// SelectTab activates a result tab
func SelectTab(s State, tab Tab, now time.Time) (State, error) {
	if !slices.Contains(Tabs, tab) {
		return s, errors.NewValidationError(errors.ErrCodeInvalidTab, fmt.Sprintf("unknown tab %q", tab), nil)
	}
	if err := s.require(EventSelectTab); err != nil {
		return s, err
	}
	if s.Tab == tab {
		return s, nil
	}

	s.Tab = tab
	return s.touch(now), nil
}

// CanBeginReport reports whether BeginReport would issue a request
func CanBeginReport(s State, kind ReportKind) bool {
	if s.Analysis == nil {
		return false
	}
	switch kind {
	case ReportSalary, ReportInterview:
		if !s.HasAttachments() {
			return false
		}
	case ReportSenior:
		if s.Resume == nil {
			return false
		}
	case ReportDecoder:
		if s.Job == nil {
			return false
		}
	}
	switch s.Reports.Status(kind) {
	case StatusLoading, StatusLoaded:
		return false
	}
	return true
}

// BeginReport marks a secondary report as loading. issued is false when the
// request is suppressed: the report is already loading or loaded, or its inputs
// are not available yet. Suppression is not an error.
func BeginReport(s State, kind ReportKind, now time.Time) (next State, issued bool, err error) {
	if _, err := ParseReportKind(string(kind)); err != nil {
		return s, false, err
	}
	if !CanBeginReport(s, kind) {
		return s, false, nil
	}

	switch kind {
	case ReportMarket:
		s.Reports.Market = s.Reports.Market.begin(s.Epoch, now)
	case ReportSalary:
		s.Reports.Salary = s.Reports.Salary.begin(s.Epoch, now)
	case ReportInterview:
		s.Reports.Interview = s.Reports.Interview.begin(s.Epoch, now)
	case ReportSenior:
		s.Reports.Senior = s.Reports.Senior.begin(s.Epoch, now)
	case ReportDecoder:
		s.Reports.Decoder = s.Reports.Decoder.begin(s.Epoch, now)
	}
	return s.touch(now), true, nil
}

// ReportSucceeded stores a loaded report. value must be a pointer to the
// report's type. Results for another epoch or for a report that is not
// loading are dropped.
func ReportSucceeded(s State, kind ReportKind, epoch uint64, value any, now time.Time) (State, error) {
	if !s.Settles(kind, epoch) {
		return s, nil
	}

	mismatch := func() error {
		return errors.NewInternalError(errors.ErrCodeInvalidReport,
			fmt.Sprintf("report %s cannot hold %T", kind, value), nil)
	}

	switch kind {
	case ReportMarket:
		v, ok := value.(*types.MarketTrends)
		if !ok || v == nil {
			return s, mismatch()
		}
		s.Reports.Market = s.Reports.Market.succeed(v, now)
	case ReportSalary:
		v, ok := value.(*types.SalaryNegotiation)
		if !ok || v == nil {
			return s, mismatch()
		}
		s.Reports.Salary = s.Reports.Salary.succeed(v, now)
	case ReportInterview:
		v, ok := value.(*types.InterviewSimulation)
		if !ok || v == nil {
			return s, mismatch()
		}
		s.Reports.Interview = s.Reports.Interview.succeed(v, now)
	case ReportSenior:
		v, ok := value.(*types.SeniorFeedback)
		if !ok || v == nil {
			return s, mismatch()
		}
		s.Reports.Senior = s.Reports.Senior.succeed(v, now)
	case ReportDecoder:
		v, ok := value.(*types.JobTranslation)
		if !ok || v == nil {
			return s, mismatch()
		}
		s.Reports.Decoder = s.Reports.Decoder.succeed(v, now)
	}
	return s.touch(now), nil
}

// ReportFailed settles a loading report as failed and raises its notice.
// The report holds no value and may be requested again.
func ReportFailed(s State, kind ReportKind, epoch uint64, now time.Time) (State, error) {
	if !s.Settles(kind, epoch) {
		return s, nil
	}

	reason := kind.FailureNotice()
	switch kind {
	case ReportMarket:
		s.Reports.Market = s.Reports.Market.fail(reason, now)
	case ReportSalary:
		s.Reports.Salary = s.Reports.Salary.fail(reason, now)
	case ReportInterview:
		s.Reports.Interview = s.Reports.Interview.fail(reason, now)
	case ReportSenior:
		s.Reports.Senior = s.Reports.Senior.fail(reason, now)
	case ReportDecoder:
		s.Reports.Decoder = s.Reports.Decoder.fail(reason, now)
	}
	s = s.withNotice(reason, string(kind), now)
	return s.touch(now), nil
}

// Settles reports whether a result for kind issued at epoch would be applied:
// the epoch is current and the report is still loading from that epoch.
func (s State) Settles(kind ReportKind, epoch uint64) bool {
	return epoch == s.Epoch &&
		s.Reports.epoch(kind) == epoch &&
		s.Reports.Status(kind) == StatusLoading
}

// StartQuiz opens a quiz over the current tab. A quiz without questions is
// not opened and the state is returned unchanged.
func StartQuiz(s State, q quiz.Quiz, now time.Time) (State, error) {
	if err := s.require(EventStartQuiz); err != nil {
		return s, err
	}
	if q.Empty() {
		return s, nil
	}

	attempt := quiz.Start(q)
	s.Quiz = &attempt
	return s.touch(now), nil
}

// StartWeeklyQuiz opens the quiz for assessment j of study module i
func StartWeeklyQuiz(s State, moduleIndex, assessmentIndex int, now time.Time) (State, error) {
	if err := s.require(EventStartQuiz); err != nil {
		return s, err
	}
	q, err := quiz.Weekly(s.Analysis, moduleIndex, assessmentIndex)
	if err != nil {
		return s, err
	}
	return StartQuiz(s, q, now)
}

// StartFinalExam opens the final exam
func StartFinalExam(s State, now time.Time) (State, error) {
	if err := s.require(EventStartQuiz); err != nil {
		return s, err
	}
	q, err := quiz.Final(s.Analysis)
	if err != nil {
		return s, err
	}
	return StartQuiz(s, q, now)
}

func (s State) activeQuiz() (*quiz.Attempt, error) {
	if s.Quiz == nil {
		return nil, errors.NewConflictError(errors.ErrCodeQuizNotFound, "no active quiz", nil)
	}
	return s.Quiz, nil
}

// AnswerQuestion records an answer in the active quiz
func AnswerQuestion(s State, questionID, answer string, now time.Time) (State, error) {
	active, err := s.activeQuiz()
	if err != nil {
		return s, err
	}
	next, err := active.Answer(questionID, answer)
	if err != nil {
		return s, err
	}
	s.Quiz = &next
	return s.touch(now), nil
}

// CompleteQuiz scores the active quiz and prepends its result to the history.
// The quiz stays open so the score can be shown until CloseQuiz.
func CompleteQuiz(s State, now time.Time) (State, types.QuizResult, error) {
	active, err := s.activeQuiz()
	if err != nil {
		return s, types.QuizResult{}, err
	}
	next, result, err := active.Complete(now)
	if err != nil {
		return s, types.QuizResult{}, err
	}

	s.Quiz = &next
	s.QuizResults = append([]types.QuizResult{result}, s.QuizResults...)
	return s.touch(now), result, nil
}

// CloseQuiz leaves the quiz and returns to the tab that was active before.
// An uncompleted attempt is discarded without a result.
func CloseQuiz(s State, now time.Time) (State, error) {
	if err := s.require(EventCloseQuiz); err != nil {
		return s, err
	}
	s.Quiz = nil
	s.Step = StepResults
	return s.touch(now), nil
}

// ToggleChat shows or hides the chat overlay. It is ignored while a quiz is
// active or before the chat exists.
func ToggleChat(s State, now time.Time) State {
	if !s.Chat.Ready || s.Mode() != ModeResults {
		return s
	}
	s.Chat.Open = !s.Chat.Open
	return s.touch(now)
}

// BeginChatMessage appends the user's message and marks a reply as pending
func BeginChatMessage(s State, text string, now time.Time) (State, error) {
	if !s.Chat.Ready {
		return s, errors.NewConflictError(errors.ErrCodeChatUnavailable, "chat is not available before the analysis", nil)
	}
	if s.Mode() != ModeResults {
		return s, errors.NewConflictError(errors.ErrCodeChatUnavailable, "chat is hidden while a quiz is active", nil)
	}
	if s.Chat.Pending {
		return s, errors.NewConflictError(errors.ErrCodeChatUnavailable, "a reply is already pending", nil)
	}

	s.Chat.Pending = true
	s.Chat.Open = true
	s.Chat.History = append(slices.Clip(s.Chat.History), types.ChatMessage{Role: types.ChatRoleUser, Text: text, Timestamp: now})
	return s.touch(now), nil
}

// ChatReplied appends the model's reply
func ChatReplied(s State, epoch uint64, text string, now time.Time) State {
	if epoch != s.Epoch || !s.Chat.Pending {
		return s
	}
	s.Chat.Pending = false
	s.Chat.History = append(slices.Clip(s.Chat.History), types.ChatMessage{Role: types.ChatRoleModel, Text: text, Timestamp: now})
	return s.touch(now)
}

// ChatFailed clears the pending flag and raises a notice
func ChatFailed(s State, epoch uint64, now time.Time) State {
	if epoch != s.Epoch || !s.Chat.Pending {
		return s
	}
	s.Chat.Pending = false
	s = s.withNotice("notice.chat_failed", "chat", now)
	return s.touch(now)
}

// GoHome returns to upload from the header logo. It does nothing while an
// analysis is in progress or when already on upload. An open quiz is discarded.
func GoHome(s State, now time.Time) State {
	if err := s.require(EventGoHome); err != nil {
		return s
	}
	s.Step = StepUpload
	s.Quiz = nil
	s.Chat.Open = false
	return s.touch(now)
}

// DismissNotice clears the notice with the given sequence number
func DismissNotice(s State, seq uint64, now time.Time) State {
	if s.Notice == nil || s.Notice.Seq != seq {
		return s
	}
	s.Notice = nil
	return s.touch(now)
}

// ChatUnavailable marks the chat as unusable for the current analysis
func ChatUnavailable(s State, epoch uint64, now time.Time) State {
	if epoch != s.Epoch || !s.Chat.Ready {
		return s
	}
	s.Chat = ChatState{History: []types.ChatMessage{}}
	return s.touch(now)
}
