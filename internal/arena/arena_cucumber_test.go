//go:build cucumber

package arena_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/export"
	"github.com/ahrav/go-arena/internal/llm"
	"github.com/ahrav/go-arena/internal/llm/configuration"
	"github.com/ahrav/go-arena/internal/llm/transport"
)

// TestArenaScenarios runs the arena pipeline feature scenarios.
func TestArenaScenarios(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "arena",
		ScenarioInitializer: InitializeArenaScenario,
		Options: &godog.Options{
			Format:    "pretty",
			Paths:     []string{filepath.Join("..", "..", "features", "arena.feature")},
			Strict:    true,
			TestingT:  t,
			Randomize: 0,
		},
	}
	if suite.Run() != 0 {
		t.Fatalf("non-zero godog status")
	}
}

// InitializeArenaScenario wires steps for the arena feature.
func InitializeArenaScenario(ctx *godog.ScenarioContext) {
	state := &arenaScenarioState{}
	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		state.reset()
		return ctx, nil
	})

	ctx.Step(`^backend A generates the questions "([^"]*)" and "([^"]*)"$`, state.givenQuestions)
	ctx.Step(`^backend A generates no questions$`, state.givenNoQuestions)
	ctx.Step(`^backend (A|B) answers every question$`, state.givenBackendAnswers)
	ctx.Step(`^backend (A|B) fails with "([^"]*)"$`, state.givenBackendFails)
	ctx.Step(`^I run the arena with (\d+) questions$`, state.whenIRunTheArena)
	ctx.Step(`^I judge every unit "([^"]*)"$`, state.whenIJudgeEveryUnit)
	ctx.Step(`^I judge the current unit "([^"]*)"$`, state.whenIJudgeTheCurrentUnit)
	ctx.Step(`^I export the run$`, state.whenIExportTheRun)
	ctx.Step(`^I sanitize the field '(.*)'$`, state.whenISanitize)
	ctx.Step(`^the run has (\d+) comparison units$`, state.thenRunHasUnits)
	ctx.Step(`^no error was raised$`, state.thenNoError)
	ctx.Step(`^every unit shows "([^"]*)" for backend B$`, state.thenEveryUnitShowsForB)
	ctx.Step(`^the export has (\d+) rows with judgment "([^"]*)"$`, state.thenExportRows)
	ctx.Step(`^backend A's original answers are preserved in the export$`, state.thenAnswersPreserved)
	ctx.Step(`^the export is rejected as incomplete$`, state.thenExportIncomplete)
	ctx.Step(`^the sanitized field is '(.*)'$`, state.thenSanitized)
}

var (
	scenarioBackendA = domain.Backend{Role: domain.RoleA, Name: "Backend A", Endpoint: "http://a.local/v1", Model: "a"}
	scenarioBackendB = domain.Backend{Role: domain.RoleB, Name: "Backend B", Endpoint: "http://b.local/v1", Model: "b"}
)

// arenaScenarioState holds scenario state for arena feature tests.
type arenaScenarioState struct {
	mu        sync.Mutex
	questions []string
	answering map[string]bool
	failures  map[string]string

	run       *domain.ArenaRun
	runErr    error
	session   *arena.Session
	result    *export.Result
	exportErr error
	sanitized string
}

func (s *arenaScenarioState) reset() {
	*s = arenaScenarioState{
		answering: map[string]bool{},
		failures:  map[string]string{},
	}
}

func backendName(side string) string {
	if side == "A" {
		return scenarioBackendA.Name
	}
	return scenarioBackendB.Name
}

// Handle plays both backends.
func (s *arenaScenarioState) Handle(_ context.Context, req *transport.Request) (*transport.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg, ok := s.failures[req.BackendName]; ok {
		return nil, errors.New(msg)
	}
	if !strings.HasPrefix(req.UserPrompt, "Answer the following questions:") {
		b, err := json.Marshal(map[string]any{"questions": s.questions})
		return &transport.Response{Content: string(b)}, err
	}
	if !s.answering[req.BackendName] {
		return &transport.Response{Content: `{"questions": []}`}, nil
	}
	items := make([]map[string]string, 0, len(s.questions))
	for _, q := range s.questions {
		items = append(items, map[string]string{"question": q, "answer": req.BackendName + " says: " + q})
	}
	b, err := json.Marshal(map[string]any{"questions": items})
	return &transport.Response{Content: string(b)}, err
}

func (s *arenaScenarioState) givenQuestions(q1, q2 string) error {
	s.questions = []string{q1, q2}
	return nil
}

func (s *arenaScenarioState) givenNoQuestions() error {
	s.questions = []string{}
	return nil
}

func (s *arenaScenarioState) givenBackendAnswers(side string) error {
	s.answering[backendName(side)] = true
	return nil
}

func (s *arenaScenarioState) givenBackendFails(side, msg string) error {
	s.failures[backendName(side)] = msg
	return nil
}

func (s *arenaScenarioState) whenIRunTheArena(n int) error {
	cfg := configuration.DefaultConfig()
	cfg.RateLimit.Enabled = false
	client, err := llm.NewClient(cfg, llm.WithCoreHandler(transport.HandlerFunc(s.Handle)))
	if err != nil {
		return err
	}
	runner, err := arena.NewRunner(client, arena.RunnerConfig{
		BackendA:   scenarioBackendA,
		BackendB:   scenarioBackendB,
		Randomizer: arena.NewRandomizer(42),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.run, s.runErr = runner.Run(ctx, domain.ArenaInput{DocumentContent: "X and Y are letters.", NumQuestions: n})
	if s.run != nil {
		s.session = arena.NewSession(s.run)
	}
	return nil
}

func (s *arenaScenarioState) whenIJudgeEveryUnit(label string) error {
	j, err := domain.ParseJudgment(label)
	if err != nil {
		return err
	}
	for i := range s.session.Len() {
		s.session.MoveTo(i)
		if err := s.session.RecordJudgment(j); err != nil {
			return err
		}
	}
	return nil
}

func (s *arenaScenarioState) whenIJudgeTheCurrentUnit(label string) error {
	j, err := domain.ParseJudgment(label)
	if err != nil {
		return err
	}
	return s.session.RecordJudgment(j)
}

func (s *arenaScenarioState) whenIExportTheRun() error {
	exporter := export.NewExporter(&memoryStore{})
	s.result, s.exportErr = exporter.ResolveAndExport(context.Background(), s.session.Snapshot(),
		domain.Operator{Name: "Operator", Email: "operator@example.com"})
	return nil
}

func (s *arenaScenarioState) whenISanitize(field string) error {
	s.sanitized = export.Sanitize(field)
	return nil
}

func (s *arenaScenarioState) thenRunHasUnits(n int) error {
	if s.runErr != nil {
		return fmt.Errorf("run failed: %w", s.runErr)
	}
	if got := len(s.run.Units); got != n {
		return fmt.Errorf("expected %d units, got %d", n, got)
	}
	return nil
}

func (s *arenaScenarioState) thenNoError() error {
	return s.runErr
}

func (s *arenaScenarioState) thenEveryUnitShowsForB(want string) error {
	for i, u := range s.run.Units {
		if u.AnswerFromB() != want {
			return fmt.Errorf("unit %d: backend B answer %q, want %q", i, u.AnswerFromB(), want)
		}
		if u.AnswerLeft != want && u.AnswerRight != want {
			return fmt.Errorf("unit %d: sentinel not shown on either side", i)
		}
	}
	return nil
}

func (s *arenaScenarioState) thenExportRows(n int, label string) error {
	if s.exportErr != nil {
		return fmt.Errorf("export failed: %w", s.exportErr)
	}
	if got := len(s.result.Records); got != n {
		return fmt.Errorf("expected %d records, got %d", n, got)
	}
	for i, r := range s.result.Records {
		if r.JudgmentLabel != label {
			return fmt.Errorf("record %d: judgment %q, want %q", i, r.JudgmentLabel, label)
		}
	}
	if lines := strings.Split(s.result.CSV, "\n"); len(lines) != n+1 {
		return fmt.Errorf("expected %d csv lines, got %d", n+1, len(lines))
	}
	return nil
}

func (s *arenaScenarioState) thenAnswersPreserved() error {
	for i, r := range s.result.Records {
		want := "Backend A says: " + s.questions[i]
		if r.AnswerFromA != want {
			return fmt.Errorf("record %d: answer_model_a %q, want %q", i, r.AnswerFromA, want)
		}
	}
	return nil
}

func (s *arenaScenarioState) thenExportIncomplete() error {
	if !errors.Is(s.exportErr, export.ErrIncompleteJudgment) {
		return fmt.Errorf("expected incomplete judgment error, got %v", s.exportErr)
	}
	return nil
}

func (s *arenaScenarioState) thenSanitized(want string) error {
	if s.sanitized != want {
		return fmt.Errorf("sanitized %q, want %q", s.sanitized, want)
	}
	return nil
}

// memoryStore accepts every write.
type memoryStore struct{}

func (memoryStore) SaveJudgments(context.Context, []domain.ArenaJudgmentRecord, domain.Operator) error {
	return nil
}

func (memoryStore) Close() error { return nil }
