package formatters

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"postulamatch/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// GlobalRegistry holds the default formatters
var GlobalRegistry = NewFormatterRegistry()

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	for _, f := range []Formatter{
		&AnalysisTextFormatter{},
		&BundleTextFormatter{},
		textFormatter[types.MarketTrends]{name: "MarketTrends", fn: renderMarket},
		textFormatter[types.SalaryNegotiation]{name: "SalaryNegotiation", fn: renderSalary},
		textFormatter[types.InterviewSimulation]{name: "InterviewSimulation", fn: renderInterview},
		textFormatter[types.SeniorFeedback]{name: "SeniorFeedback", fn: renderSenior},
		textFormatter[types.JobTranslation]{name: "JobTranslation", fn: renderDecoder},
		textFormatter[types.RedFlagsAnalysis]{name: "RedFlagsAnalysis", fn: renderRedFlags},
	} {
		registry.RegisterFormatter("text", f.SupportedType(), f)
		registry.RegisterFormatter("markdown", f.SupportedType(), markdown{f})
	}

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	slices.Sort(formats)
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case *types.AnalysisResult, types.AnalysisResult:
		return "AnalysisResult"
	case *Bundle, Bundle:
		return "Bundle"
	case *types.MarketTrends:
		return "MarketTrends"
	case *types.SalaryNegotiation:
		return "SalaryNegotiation"
	case *types.InterviewSimulation:
		return "InterviewSimulation"
	case *types.SeniorFeedback:
		return "SeniorFeedback"
	case *types.JobTranslation:
		return "JobTranslation"
	case *types.RedFlagsAnalysis:
		return "RedFlagsAnalysis"
	default:
		return "any"
	}
}

// Bundle is the primary analysis together with the secondary reports that
// were generated for it. Missing reports are nil.
type Bundle struct {
	Analysis  *types.AnalysisResult      `json:"analysis"`
	Market    *types.MarketTrends        `json:"market,omitempty"`
	Salary    *types.SalaryNegotiation   `json:"salary,omitempty"`
	Interview *types.InterviewSimulation `json:"interview,omitempty"`
	Senior    *types.SeniorFeedback      `json:"senior,omitempty"`
	Decoder   *types.JobTranslation      `json:"decoder,omitempty"`
	Errors    map[string]string          `json:"errors,omitempty"`
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData) + "\n", nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// writer renders headings and lists as plain text or markdown
type writer struct {
	strings.Builder
	md bool
}

func (w *writer) heading(title string) {
	if w.md {
		fmt.Fprintf(w, "## %s\n\n", title)
		return
	}
	fmt.Fprintf(w, "=== %s ===\n", strings.ToUpper(title))
}

func (w *writer) subheading(title string) {
	if w.md {
		fmt.Fprintf(w, "### %s\n\n", title)
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
}

func (w *writer) para(text string) {
	if text == "" {
		return
	}
	w.WriteString(text)
	w.WriteString("\n\n")
}

func (w *writer) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	w.subheading(title)
	for _, item := range items {
		fmt.Fprintf(w, "- %s\n", item)
	}
	w.WriteString("\n")
}

func (w *writer) field(label, value string) {
	if w.md {
		fmt.Fprintf(w, "**%s:** %s\n\n", label, value)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, value)
}

// markdown renders the wrapped formatter in markdown mode
type markdown struct{ inner Formatter }

type modeFormatter interface {
	render(w *writer, data any) error
}

func (m markdown) Format(data any) (string, error) {
	mf, ok := m.inner.(modeFormatter)
	if !ok {
		return m.inner.Format(data)
	}
	w := &writer{md: true}
	if err := mf.render(w, data); err != nil {
		return "", err
	}
	return w.String(), nil
}

func (m markdown) SupportedType() string { return m.inner.SupportedType() }

// textFormatter renders a single secondary report
type textFormatter[T any] struct {
	name string
	fn   func(w *writer, v *T)
}

func (tf textFormatter[T]) Format(data any) (string, error) {
	w := &writer{}
	if err := tf.render(w, data); err != nil {
		return "", err
	}
	return w.String(), nil
}

func (tf textFormatter[T]) render(w *writer, data any) error {
	v, ok := data.(*T)
	if !ok || v == nil {
		return fmt.Errorf("expected *%s, got %T", tf.name, data)
	}
	tf.fn(w, v)
	return nil
}

func (tf textFormatter[T]) SupportedType() string { return tf.name }

// AnalysisTextFormatter renders the primary analysis
type AnalysisTextFormatter struct{}

func (af *AnalysisTextFormatter) Format(data any) (string, error) {
	w := &writer{}
	if err := af.render(w, data); err != nil {
		return "", err
	}
	return w.String(), nil
}

func (af *AnalysisTextFormatter) SupportedType() string { return "AnalysisResult" }

func (af *AnalysisTextFormatter) render(w *writer, data any) error {
	var result *types.AnalysisResult
	switch v := data.(type) {
	case *types.AnalysisResult:
		result = v
	case types.AnalysisResult:
		result = &v
	}
	if result == nil {
		return fmt.Errorf("expected AnalysisResult, got %T", data)
	}
	renderAnalysis(w, result)
	return nil
}

// BundleTextFormatter renders an analysis with its reports
type BundleTextFormatter struct{}

func (bf *BundleTextFormatter) Format(data any) (string, error) {
	w := &writer{}
	if err := bf.render(w, data); err != nil {
		return "", err
	}
	return w.String(), nil
}

func (bf *BundleTextFormatter) SupportedType() string { return "Bundle" }

func (bf *BundleTextFormatter) render(w *writer, data any) error {
	var b *Bundle
	switch v := data.(type) {
	case *Bundle:
		b = v
	case Bundle:
		b = &v
	}
	if b == nil || b.Analysis == nil {
		return fmt.Errorf("expected Bundle with an analysis, got %T", data)
	}

	renderAnalysis(w, b.Analysis)
	if b.Market != nil {
		renderMarket(w, b.Market)
	}
	if b.Salary != nil {
		renderSalary(w, b.Salary)
	}
	if b.Interview != nil {
		renderInterview(w, b.Interview)
	}
	if b.Senior != nil {
		renderSenior(w, b.Senior)
	}
	if b.Decoder != nil {
		renderDecoder(w, b.Decoder)
	}
	if len(b.Errors) > 0 {
		kinds := make([]string, 0, len(b.Errors))
		for kind := range b.Errors {
			kinds = append(kinds, kind)
		}
		slices.Sort(kinds)
		w.heading("Failed reports")
		for _, kind := range kinds {
			w.field(kind, b.Errors[kind])
		}
		w.WriteString("\n")
	}
	return nil
}

func renderAnalysis(w *writer, r *types.AnalysisResult) {
	w.heading("Candidate")
	w.field("Name", r.UserProfile.Name)
	w.field("Current role", r.UserProfile.CurrentRole)
	w.field("Years of experience", fmt.Sprint(r.UserProfile.YearsExperience))
	w.field("Top skills", strings.Join(r.UserProfile.TopSkills, ", "))
	w.WriteString("\n")

	w.heading("Verdict: " + r.Verdict)
	w.para(r.VerdictExplanation)
	w.subheading("Vacancy")
	w.para(r.VacancyAnalysis)
	w.subheading("Candidate")
	w.para(r.CandidateAnalysis)

	if len(r.ComparisonMatrix) > 0 {
		w.heading("Comparison")
		if w.md {
			w.WriteString("| Criteria | Requirement | Candidate | Status |\n|---|---|---|---|\n")
			for _, row := range r.ComparisonMatrix {
				fmt.Fprintf(w, "| %s | %s | %s | %s |\n", row.Criteria, row.Requirement, row.CandidateMatch, row.Status)
			}
			w.WriteString("\n")
		} else {
			for _, row := range r.ComparisonMatrix {
				fmt.Fprintf(w, "[%s] %s: %s / %s\n", row.Status, row.Criteria, row.Requirement, row.CandidateMatch)
			}
			w.WriteString("\n")
		}
	}

	if len(r.StudyPath) > 0 {
		w.heading("Study path")
		for _, m := range r.StudyPath {
			w.subheading(fmt.Sprintf("Semana %d: %s (%dh)", m.WeekNumber, m.Title, m.EstimatedHours))
			w.para(m.Theory)
			for _, res := range m.Resources {
				fmt.Fprintf(w, "- [%s] %s", res.Type, res.Title)
				if res.Link != "" {
					fmt.Fprintf(w, " <%s>", res.Link)
				}
				w.WriteString("\n")
			}
			for _, a := range m.Assessments {
				fmt.Fprintf(w, "- Quiz: %s (%d questions)\n", a.Title, len(a.Questions))
			}
			w.WriteString("\n")
		}
	}

	w.heading("Final evaluation")
	w.para(r.FinalEvaluation.CaseStudy)
	fmt.Fprintf(w, "%d questions\n\n", len(r.FinalEvaluation.Questions))

	if r.AnalysisDuration > 0 {
		w.field("Analysis time", fmt.Sprintf("%.1fs", r.AnalysisDuration))
	}
	w.para(r.AccessibilityStatement)
}

func renderMarket(w *writer, m *types.MarketTrends) {
	w.heading("Market trends")
	w.list("Market gaps", m.MarketGaps)
	w.list("Growing technologies", m.GrowingTech)
	w.list("Declining technologies", m.DecliningTech)
	w.list("Emerging roles", m.EmergingRoles)
	w.list("Recommendations", m.Recommendations)
}

func renderSalary(w *writer, s *types.SalaryNegotiation) {
	w.heading("Salary negotiation")
	w.field("Initial offer", s.InitialOffer)
	w.field("Recruiter excuse", s.RecruiterExcuse)
	w.WriteString("\n")
	w.list("Lowball risks", s.LowballRisks)
	if len(s.NegotiationStrategy) > 0 {
		w.subheading("Strategy")
		for i, step := range s.NegotiationStrategy {
			fmt.Fprintf(w, "%d. %s\n   -> %s\n", i+1, step.Objection, step.CounterScript)
		}
		w.WriteString("\n")
	}
	w.list("Closing tips", s.ClosingTips)
}

func renderInterview(w *writer, s *types.InterviewSimulation) {
	w.heading("Interview simulation")
	w.para(s.Introduction)
	for i, q := range s.Questions {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, q.Category, q.Question)
		fmt.Fprintf(w, "   Intent: %s\n   Guide: %s\n", q.Intent, q.Guide)
	}
	if len(s.Questions) > 0 {
		w.WriteString("\n")
	}
	w.list("General tips", s.GeneralTips)
}

func renderSenior(w *writer, s *types.SeniorFeedback) {
	w.heading("Senior mentoring")
	w.para(s.RealityCheck)
	w.list("Doing well", s.DoingWell)
	w.list("Doing poorly", s.DoingPoorly)
	w.list("Stop doing immediately", s.StopDoingImmediately)
	w.list("Priorities", s.Priorities)
	w.list("Market trends", s.MarketTrends)
	w.list("Improvement plan", s.ImprovementPlan)
}

func renderDecoder(w *writer, j *types.JobTranslation) {
	w.heading("Job posting decoded")
	for _, a := range j.Ambiguities {
		fmt.Fprintf(w, "> %q\n  %s\n", a.Quote, a.Explanation)
	}
	if len(j.Ambiguities) > 0 {
		w.WriteString("\n")
	}
	for _, d := range j.Dictionary {
		w.field(d.Jargon, d.Reality)
	}
	if len(j.Dictionary) > 0 {
		w.WriteString("\n")
	}
	w.list("Hidden signals", j.HiddenSignals)
	w.list("Real responsibilities", j.Responsibilities.Real)
	w.list("Smoke", j.Responsibilities.Smoke)
	w.subheading("Honest version")
	w.para(j.HonestVersion)
}

func renderRedFlags(w *writer, r *types.RedFlagsAnalysis) {
	w.heading("Red flags")
	for _, f := range r.RedFlags {
		fmt.Fprintf(w, "- [%s] %s: %s\n", f.Severity, f.Title, f.Description)
	}
	if len(r.RedFlags) > 0 {
		w.WriteString("\n")
	}
	w.list("Risks", r.Risks)
	w.list("Questions to ask", r.QuestionsToAsk)
	w.list("Alternatives", r.Alternatives)
}
