package domain

import (
	"fmt"
	"strings"
	"time"
)

// Input bounds carried over from the arena run action.
const (
	MinQuestions = 1
	MaxQuestions = 100
)

// ArenaInput is the operator request that starts an arena run.
type ArenaInput struct {
	// DocumentContent is the plain text every question and answer is grounded in.
	DocumentContent string `json:"documentContent" validate:"required"`

	// NumQuestions is the number of questions requested from backend A.
	NumQuestions int `json:"numQuestions" validate:"min=1,max=100"`

	// QuestionDirection optionally steers question generation.
	QuestionDirection string `json:"questionDirection,omitempty"`
}

// Validate checks the request against the accepted bounds.
func (in *ArenaInput) Validate() error {
	if strings.TrimSpace(in.DocumentContent) == "" {
		return fmt.Errorf("%w: document content cannot be empty", ErrInvalidInput)
	}
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

// QuestionSet is the ordered list of questions shared by both backends.
// Duplicates are kept; alignment trusts exact string equality.
type QuestionSet []string

// AnswerRecord is a single question/answer pair produced by a backend.
type AnswerRecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Judgment is an operator preference over one comparison unit, expressed in
// presentation terms: A is the left answer, B is the right answer.
type Judgment string

const (
	// JudgmentUnset marks a unit the operator has not judged yet.
	JudgmentUnset Judgment = ""

	// JudgmentA prefers the left answer.
	JudgmentA Judgment = "A"

	// JudgmentB prefers the right answer.
	JudgmentB Judgment = "B"

	// JudgmentBoth rates both answers as good.
	JudgmentBoth Judgment = "Both"

	// JudgmentNeither rates neither answer as good.
	JudgmentNeither Judgment = "Neither"
)

// IsTerminal reports whether the judgment is one of the four recordable values.
func (j Judgment) IsTerminal() bool {
	switch j {
	case JudgmentA, JudgmentB, JudgmentBoth, JudgmentNeither:
		return true
	default:
		return false
	}
}

// ParseJudgment converts a label into a Judgment, ignoring case and surrounding space.
func ParseJudgment(s string) (Judgment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a":
		return JudgmentA, nil
	case "b":
		return JudgmentB, nil
	case "both":
		return JudgmentBoth, nil
	case "neither":
		return JudgmentNeither, nil
	default:
		return JudgmentUnset, fmt.Errorf("%w: %q", ErrInvalidJudgment, s)
	}
}

// ComparisonUnit pairs both backends' answers to one question for blind review.
// AnswerLeft and AnswerRight are a permutation of the two answers and
// LeftIsBackendA records which one was chosen. Only Judgment changes after creation.
type ComparisonUnit struct {
	Question       string   `json:"question"`
	AnswerLeft     string   `json:"answerLeft"`
	AnswerRight    string   `json:"answerRight"`
	LeftIsBackendA bool     `json:"leftIsBackendA"`
	Judgment       Judgment `json:"judgment,omitempty"`
}

// AnswerFromA returns backend A's answer regardless of presentation side.
func (u ComparisonUnit) AnswerFromA() string {
	if u.LeftIsBackendA {
		return u.AnswerLeft
	}
	return u.AnswerRight
}

// AnswerFromB returns backend B's answer regardless of presentation side.
func (u ComparisonUnit) AnswerFromB() string {
	if u.LeftIsBackendA {
		return u.AnswerRight
	}
	return u.AnswerLeft
}

// IsJudged reports whether the unit carries a terminal judgment.
func (u ComparisonUnit) IsJudged() bool { return u.Judgment.IsTerminal() }

// BackendFailure records a non-fatal answer-collection failure for one backend.
// Every question of that backend was answered with a sentinel instead.
type BackendFailure struct {
	Role    BackendRole `json:"role"`
	Backend string      `json:"backend"`
	Message string      `json:"message"`
}

// ArenaRun is one complete evaluation: the two backends, the shared question
// set and the ordered comparison units built from their answers.
type ArenaRun struct {
	ID        string           `json:"id" validate:"required"`
	BackendA  Backend          `json:"backendA"`
	BackendB  Backend          `json:"backendB"`
	Questions QuestionSet      `json:"questions"`
	Units     []ComparisonUnit `json:"units"`
	Failures  []BackendFailure `json:"failures,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IsComplete reports whether every unit has a terminal judgment.
// A run without units is vacuously complete.
func (r *ArenaRun) IsComplete() bool {
	for _, u := range r.Units {
		if !u.IsJudged() {
			return false
		}
	}
	return true
}

// JudgedCount returns how many units carry a terminal judgment.
func (r *ArenaRun) JudgedCount() int {
	n := 0
	for _, u := range r.Units {
		if u.IsJudged() {
			n++
		}
	}
	return n
}

// Degraded reports whether any backend failed during answer collection.
func (r *ArenaRun) Degraded() bool { return len(r.Failures) > 0 }

// Validate checks the structural invariants of a run.
func (r *ArenaRun) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRun, err)
	}
	if len(r.Units) != 0 && len(r.Units) != len(r.Questions) {
		return fmt.Errorf("%w: %d units for %d questions", ErrInvalidRun, len(r.Units), len(r.Questions))
	}
	for i, u := range r.Units {
		if u.Question != r.Questions[i] {
			return fmt.Errorf("%w: unit %d question does not match question set", ErrInvalidRun, i)
		}
		if u.Judgment != JudgmentUnset && !u.Judgment.IsTerminal() {
			return fmt.Errorf("%w: unit %d: %w: %q", ErrInvalidRun, i, ErrInvalidJudgment, u.Judgment)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can read a run while it is being judged.
func (r *ArenaRun) Clone() *ArenaRun {
	if r == nil {
		return nil
	}
	out := *r
	out.Questions = QuestionSet(cloneStrings(r.Questions))
	if r.Units != nil {
		out.Units = make([]ComparisonUnit, len(r.Units))
		copy(out.Units, r.Units)
	}
	if r.Failures != nil {
		out.Failures = make([]BackendFailure, len(r.Failures))
		copy(out.Failures, r.Failures)
	}
	return &out
}

// Judgment labels written to the store and the tabular export.
const (
	LabelBoth       = "Both are good"
	LabelNeither    = "Neither is good"
	LabelNoJudgment = "No judgment"
)

// ArenaJudgmentRecord is the persisted and exported form of a judged unit,
// expressed in backend identity terms rather than presentation sides.
type ArenaJudgmentRecord struct {
	ID            string `json:"id" bson:"_id"`
	Question      string `json:"question" bson:"question"`
	AnswerFromA   string `json:"answer_model_a" bson:"answer_model_a"`
	AnswerFromB   string `json:"answer_model_b" bson:"answer_model_b"`
	BackendAName  string `json:"model_a_name" bson:"model_a_name"`
	BackendBName  string `json:"model_b_name" bson:"model_b_name"`
	JudgmentLabel string `json:"judgment" bson:"judgment"`
}

// SessionState is the serializable form of a judgment session.
type SessionState struct {
	Run          *ArenaRun `json:"run"`
	CurrentIndex int       `json:"currentIndex"`
}
