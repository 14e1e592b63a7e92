// Package session holds the per-session application state: the step and tab
// state machine, the primary analysis, the five memoized secondary reports,
// the active quiz, the quiz history and the chat overlay.
//
// State is a value. Every transition is a pure function returning the next
// State, applied atomically by Session.Update.
package session

import (
	"fmt"
	"slices"
	"time"

	"postulamatch/internal/errors"
	"postulamatch/internal/quiz"
	"postulamatch/internal/types"
)

// Step is the top level position of a session
type Step string

const (
	StepUpload    Step = "upload"
	StepAnalyzing Step = "analyzing"
	StepResults   Step = "results"
)

// Tab is one of the seven result tabs
type Tab string

const (
	TabAnalysis  Tab = "analysis"
	TabStudy     Tab = "study"
	TabStats     Tab = "stats"
	TabMarket    Tab = "market"
	TabInterview Tab = "interview"
	TabSenior    Tab = "senior"
	TabDecoder   Tab = "decoder"
)

// Tabs lists the tabs in display order
var Tabs = []Tab{TabAnalysis, TabStudy, TabMarket, TabInterview, TabSenior, TabDecoder, TabStats}

// ParseTab validates a tab name
func ParseTab(s string) (Tab, error) {
	tab := Tab(s)
	if !slices.Contains(Tabs, tab) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidTab, fmt.Sprintf("unknown tab %q", s), nil)
	}
	return tab, nil
}

// ReportKind names a secondary report
type ReportKind string

const (
	ReportMarket    ReportKind = "market"
	ReportSalary    ReportKind = "salary"
	ReportInterview ReportKind = "interview"
	ReportSenior    ReportKind = "senior"
	ReportDecoder   ReportKind = "decoder"
)

// ReportKinds lists every secondary report
var ReportKinds = []ReportKind{ReportMarket, ReportSalary, ReportInterview, ReportSenior, ReportDecoder}

// ParseReportKind validates a report name
func ParseReportKind(s string) (ReportKind, error) {
	kind := ReportKind(s)
	if !slices.Contains(ReportKinds, kind) {
		return "", errors.NewValidationError(errors.ErrCodeInvalidReport, fmt.Sprintf("unknown report %q", s), nil)
	}
	return kind, nil
}

// FailureNotice returns the message ID surfaced when the report fails
func (k ReportKind) FailureNotice() string { return "notice." + string(k) + "_failed" }

// LoadingText returns the message ID shown while the report loads
func (k ReportKind) LoadingText() string { return "loading." + string(k) }

// ReportForTab returns the report fired on the first visit of tab
func ReportForTab(tab Tab) (ReportKind, bool) {
	switch tab {
	case TabMarket:
		return ReportMarket, true
	case TabInterview:
		return ReportInterview, true
	case TabSenior:
		return ReportSenior, true
	case TabDecoder:
		return ReportDecoder, true
	default:
		return "", false
	}
}

// Reports holds the five secondary reports. No two reports share a status.
type Reports struct {
	Market    Report[types.MarketTrends]        `json:"market"`
	Salary    Report[types.SalaryNegotiation]   `json:"salary"`
	Interview Report[types.InterviewSimulation] `json:"interview"`
	Senior    Report[types.SeniorFeedback]      `json:"senior"`
	Decoder   Report[types.JobTranslation]      `json:"decoder"`
}

// Status returns the status of the report of the given kind
func (r Reports) Status(kind ReportKind) ReportStatus {
	switch kind {
	case ReportMarket:
		return r.Market.Status()
	case ReportSalary:
		return r.Salary.Status()
	case ReportInterview:
		return r.Interview.Status()
	case ReportSenior:
		return r.Senior.Status()
	case ReportDecoder:
		return r.Decoder.Status()
	default:
		return StatusNotStarted
	}
}

func (r Reports) epoch(kind ReportKind) uint64 {
	switch kind {
	case ReportMarket:
		return r.Market.Epoch()
	case ReportSalary:
		return r.Salary.Epoch()
	case ReportInterview:
		return r.Interview.Epoch()
	case ReportSenior:
		return r.Senior.Epoch()
	case ReportDecoder:
		return r.Decoder.Epoch()
	default:
		return 0
	}
}

// Notice is a user visible message identified by an i18n message ID
type Notice struct {
	Seq       uint64    `json:"seq"`
	MessageID string    `json:"messageId"`
	Source    string    `json:"source"`
	At        time.Time `json:"at"`
}

// ChatState is the chat overlay and its conversation
type ChatState struct {
	Ready   bool                `json:"ready"`
	Open    bool                `json:"open"`
	Pending bool                `json:"pending"`
	History []types.ChatMessage `json:"history"`
}

// State is the complete state of one coaching session
type State struct {
	ID        string    `json:"id"`
	Version   uint64    `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Step Step `json:"step"`
	Tab  Tab  `json:"tab"`

	Resume            *types.Attachment     `json:"-"`
	Job               *types.Attachment     `json:"-"`
	Analysis          *types.AnalysisResult `json:"analysis,omitempty"`
	AnalysisStartedAt time.Time             `json:"-"`
	// Epoch increases with every analysis; secondary results from an older
	// epoch are discarded.
	Epoch uint64 `json:"epoch"`

	Reports     Reports            `json:"reports"`
	Quiz        *quiz.Attempt      `json:"quiz,omitempty"`
	QuizResults []types.QuizResult `json:"quizResults"`
	Chat        ChatState          `json:"chat"`
	Notice      *Notice            `json:"notice,omitempty"`
	noticeSeq   uint64
}

// New returns the initial state of a session
func New(id string, now time.Time) State {
	return State{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		Step:        StepUpload,
		Tab:         TabAnalysis,
		QuizResults: []types.QuizResult{},
		Chat:        ChatState{History: []types.ChatMessage{}},
	}
}

// Mode returns the position in the navigation state machine
func (s State) Mode() Mode {
	if s.Step == StepResults && s.Quiz != nil {
		return ModeQuiz
	}
	return Mode(s.Step)
}

// HasAttachments reports whether both documents of the current analysis are held
func (s State) HasAttachments() bool {
	return s.Resume != nil && s.Job != nil
}

func (s State) touch(now time.Time) State {
	s.Version++
	s.UpdatedAt = now
	return s
}

func (s State) withNotice(messageID, source string, now time.Time) State {
	s.noticeSeq++
	s.Notice = &Notice{Seq: s.noticeSeq, MessageID: messageID, Source: source, At: now}
	return s
}
