package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ahrav/go-arena/internal/domain"
)

// Header is the first line of every tabular export.
var Header = []string{
	"operatorName",
	"operatorEmail",
	"question",
	"answer_model_a",
	"answer_model_b",
	"judgment",
	"model_a_name",
	"model_b_name",
}

var spaceRuns = regexp.MustCompile(` {2,}`)

// Sanitize prepares one data field: surrounding whitespace is trimmed, runs
// of spaces collapse to one, embedded double quotes are doubled and the
// result is wrapped in double quotes. Empty input yields "".
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = spaceRuns.ReplaceAllString(s, " ")
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV renders records as CSV text. The header row is written verbatim,
// data fields pass through Sanitize, and rows are joined by a single newline.
func WriteCSV(records []domain.ArenaJudgmentRecord, op domain.Operator) string {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	for _, r := range records {
		fields := []string{
			op.Name,
			op.Email,
			r.Question,
			r.AnswerFromA,
			r.AnswerFromB,
			r.JudgmentLabel,
			r.BackendAName,
			r.BackendBName,
		}
		b.WriteByte('\n')
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(Sanitize(f))
		}
	}
	return b.String()
}

// Filename returns the download name for an export taken at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("arena_judgments_%d.csv", t.UnixMilli())
}
