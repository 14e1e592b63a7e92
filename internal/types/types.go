package types

import "time"

// SourceType tags an uploaded document as the candidate's resume or the job posting
type SourceType string

const (
	SourceResume SourceType = "resume"
	SourceJob    SourceType = "job"
)

// Attachment is an uploaded document held in memory for the lifetime of a session.
// Data is base64 encoded without a data URI prefix.
type Attachment struct {
	MimeType   string     `json:"mimeType"`
	Data       string     `json:"data"`
	SourceType SourceType `json:"sourceType"`
}

// MatchStatus classifies a comparison row
type MatchStatus string

const (
	MatchStatusMatch   MatchStatus = "Match"
	MatchStatusGap     MatchStatus = "Gap"
	MatchStatusPartial MatchStatus = "Partial"
)

// ComparisonRow compares one job requirement against the candidate
type ComparisonRow struct {
	Criteria       string      `json:"criteria"`
	Requirement    string      `json:"requirement"`
	CandidateMatch string      `json:"candidateMatch"`
	Status         MatchStatus `json:"status"`
}

// Resource is a study resource recommended in a weekly module
type Resource struct {
	Title       string `json:"title"`
	Type        string `json:"type"` // "Reading", "Podcast", "Document" or "Video"
	Link        string `json:"link,omitempty"`
	Description string `json:"description"`
}

// QuestionType is the kind of quiz question
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MultipleChoice"
	QuestionTrueFalse      QuestionType = "TrueFalse"
	QuestionShortAnswer    QuestionType = "ShortAnswer"
)

// QuizQuestion is a single question inside an assessment or the final evaluation
type QuizQuestion struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer"`
}

// Assessment groups questions of one kind within a weekly module
type Assessment struct {
	Title     string         `json:"title"`
	Type      string         `json:"type"` // "Conceptual", "Practical" or "Challenge"
	Questions []QuizQuestion `json:"questions"`
}

// WeeklyModule is one week of the personalized study path
type WeeklyModule struct {
	WeekNumber     int          `json:"weekNumber"`
	Title          string       `json:"title"`
	EstimatedHours int          `json:"estimatedHours"`
	Theory         string       `json:"theory"`
	PodcastScript  string       `json:"podcastScript"`
	PodcastSummary string       `json:"podcastSummary"`
	Resources      []Resource   `json:"resources"`
	Assessments    []Assessment `json:"assessments"`
}

// FinalEval is the integrated final exam of the study path
type FinalEval struct {
	CaseStudy      string         `json:"caseStudy"`
	Questions      []QuizQuestion `json:"questions"`
	FeedbackReport string         `json:"feedbackReport"`
}

// UserProfile summarizes the candidate as read from the resume
type UserProfile struct {
	Name            string   `json:"name"`
	CurrentRole     string   `json:"currentRole"`
	YearsExperience int      `json:"yearsExperience"`
	TopSkills       []string `json:"topSkills"`
}

// Verdict values returned by the primary analysis
const (
	VerdictFit    = "APTO"
	VerdictNotFit = "NO APTO"
)

// AnalysisResult is the primary fit report produced from a resume and a job posting
type AnalysisResult struct {
	UserProfile            UserProfile     `json:"userProfile"`
	Verdict                string          `json:"verdict"`
	VerdictExplanation     string          `json:"verdictExplanation"`
	VacancyAnalysis        string          `json:"vacancyAnalysis"`
	CandidateAnalysis      string          `json:"candidateAnalysis"`
	ComparisonMatrix       []ComparisonRow `json:"comparisonMatrix"`
	StudyPath              []WeeklyModule  `json:"studyPath"`
	FinalEvaluation        FinalEval       `json:"finalEvaluation"`
	TutorInstructions      string          `json:"tutorInstructions"`
	AccessibilityStatement string          `json:"accessibilityStatement"`
	// AnalysisDuration is the wall time of the analysis in seconds.
	AnalysisDuration float64 `json:"analysisDuration,omitempty"`
}

// QuizResult records one completed quiz attempt
type QuizResult struct {
	QuizTitle      string    `json:"quizTitle"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	Percentage     int       `json:"percentage"`
	Date           time.Time `json:"date"`
	Passed         bool      `json:"passed"`
}

// MarketTrends is the market commentary derived from the user profile
type MarketTrends struct {
	MarketGaps      []string `json:"marketGaps"`
	GrowingTech     []string `json:"growingTech"`
	DecliningTech   []string `json:"decliningTech"`
	EmergingRoles   []string `json:"emergingRoles"`
	Recommendations []string `json:"recommendations"`
}

// RedFlag is a warning sign found in a job posting
type RedFlag struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"` // "High" or "Medium"
}

// RedFlagsAnalysis lists warning signs in a job posting
type RedFlagsAnalysis struct {
	RedFlags       []RedFlag `json:"redFlags"`
	Risks          []string  `json:"risks"`
	QuestionsToAsk []string  `json:"questionsToAsk"`
	Alternatives   []string  `json:"alternatives"`
}

// InterviewQuestion is one question of the mock interview
type InterviewQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
	Category string `json:"category"` // "Challenge", "Trick", "Pressure" or "Culture"
	Intent   string `json:"intent"`
	Guide    string `json:"guide"`
}

// InterviewSimulation is the mock interview report
type InterviewSimulation struct {
	Introduction string              `json:"introduction"`
	Questions    []InterviewQuestion `json:"questions"`
	GeneralTips  []string            `json:"generalTips"`
}

// SeniorFeedback is the blunt mentoring report built from the resume alone
type SeniorFeedback struct {
	RealityCheck         string   `json:"realityCheck"`
	DoingWell            []string `json:"doingWell"`
	DoingPoorly          []string `json:"doingPoorly"`
	StopDoingImmediately []string `json:"stopDoingImmediately"`
	Priorities           []string `json:"priorities"`
	MarketTrends         []string `json:"marketTrends"`
	ImprovementPlan      []string `json:"improvementPlan"`
}

// NegotiationStep pairs a recruiter objection with a counter script
type NegotiationStep struct {
	Objection     string `json:"objection"`
	CounterScript string `json:"counterScript"`
}

// SalaryNegotiation is the salary negotiation coaching report
type SalaryNegotiation struct {
	InitialOffer        string            `json:"initialOffer"`
	RecruiterExcuse     string            `json:"recruiterExcuse"`
	LowballRisks        []string          `json:"lowballRisks"`
	NegotiationStrategy []NegotiationStep `json:"negotiationStrategy"`
	ClosingTips         []string          `json:"closingTips"`
}

// Ambiguity is a vague sentence of a job posting and what it likely means
type Ambiguity struct {
	Quote       string `json:"quote"`
	Explanation string `json:"explanation"`
}

// JargonEntry maps corporate jargon to its plain meaning
type JargonEntry struct {
	Jargon  string `json:"jargon"`
	Reality string `json:"reality"`
}

// Responsibilities separates real duties from filler
type Responsibilities struct {
	Real  []string `json:"real"`
	Smoke []string `json:"smoke"`
}

// JobTranslation is the decoded, honest rewrite of a job posting
type JobTranslation struct {
	Ambiguities      []Ambiguity      `json:"ambiguities"`
	Dictionary       []JargonEntry    `json:"dictionary"`
	HiddenSignals    []string         `json:"hiddenSignals"`
	Responsibilities Responsibilities `json:"responsibilities"`
	HonestVersion    string           `json:"honestVersion"`
}

// ChatRole identifies the author of a chat message
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is one turn of the tutor conversation
type ChatMessage struct {
	Role      ChatRole  `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
