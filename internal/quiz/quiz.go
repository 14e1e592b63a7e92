// Package quiz builds question sets from a study path, captures answers and
// scores completed attempts.
package quiz

import (
	"fmt"
	"maps"
	"math"
	"strings"
	"time"

	"postulamatch/internal/errors"
	"postulamatch/internal/types"
)

// FinalExamTitle is the title of the integrated final exam
const FinalExamTitle = "Examen Final Integral"

// Pass threshold expressed as the ratio passNumerator/passDenominator (0.7).
// Integer arithmetic keeps the boundary exact.
const (
	passNumerator   = 7
	passDenominator = 10
)

// Kind distinguishes weekly quizzes from the final exam
type Kind string

const (
	KindWeekly Kind = "weekly"
	KindFinal  Kind = "final"
)

// Quiz is an immutable snapshot of a question set taken when the quiz starts
type Quiz struct {
	Kind            Kind                 `json:"kind"`
	Title           string               `json:"title"`
	Questions       []types.QuizQuestion `json:"questions"`
	CaseStudy       string               `json:"caseStudy,omitempty"`
	FeedbackReport  string               `json:"feedbackReport,omitempty"`
	ModuleIndex     int                  `json:"moduleIndex,omitempty"`
	AssessmentIndex int                  `json:"assessmentIndex,omitempty"`
}

// Weekly builds the quiz for assessment j of study module i
func Weekly(analysis *types.AnalysisResult, moduleIndex, assessmentIndex int) (Quiz, error) {
	if analysis == nil {
		return Quiz{}, errors.NewValidationError(errors.ErrCodeInvalidTransition, "no analysis available", nil)
	}
	if moduleIndex < 0 || moduleIndex >= len(analysis.StudyPath) {
		return Quiz{}, errors.NewNotFoundError(errors.ErrCodeQuizNotFound,
			fmt.Sprintf("study module %d does not exist", moduleIndex), nil)
	}
	module := analysis.StudyPath[moduleIndex]
	if assessmentIndex < 0 || assessmentIndex >= len(module.Assessments) {
		return Quiz{}, errors.NewNotFoundError(errors.ErrCodeQuizNotFound,
			fmt.Sprintf("assessment %d does not exist in module %d", assessmentIndex, moduleIndex), nil)
	}
	assessment := module.Assessments[assessmentIndex]

	q := Quiz{
		Kind:            KindWeekly,
		Title:           fmt.Sprintf("Semana %d: %s", module.WeekNumber, assessment.Title),
		Questions:       assessment.Questions,
		ModuleIndex:     moduleIndex,
		AssessmentIndex: assessmentIndex,
	}
	return q, nil
}

// Final builds the final exam, carrying the case study and feedback report
func Final(analysis *types.AnalysisResult) (Quiz, error) {
	if analysis == nil {
		return Quiz{}, errors.NewValidationError(errors.ErrCodeInvalidTransition, "no analysis available", nil)
	}
	q := Quiz{
		Kind:           KindFinal,
		Title:          FinalExamTitle,
		Questions:      analysis.FinalEvaluation.Questions,
		CaseStudy:      analysis.FinalEvaluation.CaseStudy,
		FeedbackReport: analysis.FinalEvaluation.FeedbackReport,
	}
	return q, nil
}

// Empty reports whether the quiz has no questions to answer
func (q Quiz) Empty() bool { return len(q.Questions) == 0 }

func (q Quiz) question(id string) (types.QuizQuestion, bool) {
	for _, question := range q.Questions {
		if question.ID == id {
			return question, true
		}
	}
	return types.QuizQuestion{}, false
}

// Attempt is a quiz in progress. Methods return updated copies.
type Attempt struct {
	Quiz      Quiz              `json:"quiz"`
	Answers   map[string]string `json:"answers"`
	Completed bool              `json:"completed"`
	Result    *types.QuizResult `json:"result,omitempty"`
}

// Start opens an attempt on q
func Start(q Quiz) Attempt {
	return Attempt{Quiz: q, Answers: map[string]string{}}
}

// Answer records the answer for a question, replacing any previous one
func (a Attempt) Answer(questionID, answer string) (Attempt, error) {
	if a.Completed {
		return a, errors.NewConflictError(errors.ErrCodeInvalidTransition, "quiz already completed", nil)
	}
	if _, ok := a.Quiz.question(questionID); !ok {
		return a, errors.NewNotFoundError(errors.ErrCodeQuizNotFound,
			fmt.Sprintf("question %q is not part of this quiz", questionID), nil)
	}

	next := a
	next.Answers = maps.Clone(a.Answers)
	if next.Answers == nil {
		next.Answers = map[string]string{}
	}
	next.Answers[questionID] = answer
	return next, nil
}

// Complete scores the attempt. Unanswered questions count as wrong.
func (a Attempt) Complete(now time.Time) (Attempt, types.QuizResult, error) {
	if a.Completed {
		return a, types.QuizResult{}, errors.NewConflictError(errors.ErrCodeInvalidTransition, "quiz already completed", nil)
	}

	score := Score(a.Quiz.Questions, a.Answers)
	result, err := NewResult(a.Quiz.Title, score, len(a.Quiz.Questions), now)
	if err != nil {
		return a, types.QuizResult{}, err
	}

	next := a
	next.Completed = true
	next.Result = &result
	return next, result, nil
}

// Score counts correct answers
func Score(questions []types.QuizQuestion, answers map[string]string) int {
	score := 0
	for _, q := range questions {
		if answer, ok := answers[q.ID]; ok && IsCorrect(q, answer) {
			score++
		}
	}
	return score
}

// NewResult builds the result record for score correct answers out of total
func NewResult(title string, score, total int, now time.Time) (types.QuizResult, error) {
	if total <= 0 {
		return types.QuizResult{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "quiz has no questions", nil)
	}
	if score < 0 || score > total {
		return types.QuizResult{}, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("score %d out of range for %d questions", score, total), nil)
	}

	return types.QuizResult{
		QuizTitle:      title,
		Score:          score,
		TotalQuestions: total,
		Percentage:     Percentage(score, total),
		Date:           now,
		Passed:         Passed(score, total),
	}, nil
}

// Percentage returns round(100*score/total)
func Percentage(score, total int) int {
	return int(math.Round(float64(score) * 100 / float64(total)))
}

// Passed reports score/total >= 0.7
func Passed(score, total int) bool {
	return score*passDenominator >= total*passNumerator
}

// IsCorrect compares an answer to the expected one. Comparison ignores case and
// surrounding whitespace; option letters resolve to option text and the usual
// Spanish and English spellings of true/false are accepted.
func IsCorrect(q types.QuizQuestion, answer string) bool {
	return canonical(q, answer) == canonical(q, q.CorrectAnswer)
}

func canonical(q types.QuizQuestion, s string) string {
	s = normalize(s)

	switch q.Type {
	case types.QuestionTrueFalse:
		switch s {
		case "true", "verdadero", "v", "t", "sí", "si":
			return "true"
		case "false", "falso", "f", "no":
			return "false"
		}
	case types.QuestionMultipleChoice:
		if len(s) == 1 && s[0] >= 'a' && s[0] <= 'z' {
			if idx := int(s[0] - 'a'); idx < len(q.Options) {
				s = normalize(q.Options[idx])
			}
		}
		return stripOptionLabel(s)
	}
	return s
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// stripOptionLabel turns "b) texto" into "texto"
func stripOptionLabel(s string) string {
	if len(s) > 2 && s[1] == ')' && s[0] >= 'a' && s[0] <= 'z' {
		return strings.TrimSpace(s[2:])
	}
	return s
}
