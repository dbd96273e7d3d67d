package arena

import "github.com/ahrav/go-arena/internal/domain"

// Reconcile pairs the two backends' answers by exact question text and
// returns one unit per question in the original question order, with A on
// the left. Duplicate questions in a backend's reply resolve to the last
// answer given. A missing or empty answer is replaced by MissingAnswer.
func Reconcile(
	questions []string,
	answersA, answersB []domain.AnswerRecord,
	backendA, backendB domain.Backend,
) []domain.ComparisonUnit {
	byQuestionA := indexAnswers(answersA)
	byQuestionB := indexAnswers(answersB)

	units := make([]domain.ComparisonUnit, len(questions))
	for i, q := range questions {
		a, ok := byQuestionA[q]
		if !ok || a == "" {
			a = MissingAnswer(backendA.Name)
		}
		b, ok := byQuestionB[q]
		if !ok || b == "" {
			b = MissingAnswer(backendB.Name)
		}
		units[i] = domain.ComparisonUnit{
			Question:       q,
			AnswerLeft:     a,
			AnswerRight:    b,
			LeftIsBackendA: true,
		}
	}
	return units
}

func indexAnswers(records []domain.AnswerRecord) map[string]string {
	m := make(map[string]string, len(records))
	for _, r := range records {
		m[r.Question] = r.Answer
	}
	return m
}
