package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/export"
	"github.com/ahrav/go-arena/internal/store"
	"github.com/ahrav/go-arena/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an arena over a document and judge it in the terminal",
	Long:  "Generates questions about the document, collects answers from both backends, opens the judging UI and writes the CSV export once every comparison is judged.",
	RunE:  runArena,
}

func init() {
	runCmd.Flags().String("document", "", "Path to a plain-text document (required)")
	runCmd.Flags().Int("questions", 5, "Number of questions to generate (1-100)")
	runCmd.Flags().String("direction", "", "Optional guidance for question generation")
	runCmd.Flags().String("operator-name", "", "Operator name recorded with each judgment")
	runCmd.Flags().String("operator-email", "", "Operator email recorded with each judgment")
	runCmd.Flags().String("out", ".", "Directory the CSV export is written to")
	runCmd.Flags().Bool("temporal", false, "Run the pipeline as a Temporal workflow")
	_ = runCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(runCmd)
}

func runArena(cmd *cobra.Command, _ []string) error {
	// The terminal UI owns stdout and stderr, so logs default to a file.
	cfg, logCloser, err := loadConfig(cmd, "arena.log")
	if err != nil {
		return err
	}
	defer logCloser.Close()

	docPath, _ := cmd.Flags().GetString("document")
	numQuestions, _ := cmd.Flags().GetInt("questions")
	direction, _ := cmd.Flags().GetString("direction")
	opName, _ := cmd.Flags().GetString("operator-name")
	opEmail, _ := cmd.Flags().GetString("operator-email")
	outDir, _ := cmd.Flags().GetString("out")
	useTemporal, _ := cmd.Flags().GetBool("temporal")

	op := domain.Operator{Name: opName, Email: opEmail}
	if err := op.Validate(); err != nil {
		return err
	}
	content, err := os.ReadFile(docPath)
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}
	input := domain.ArenaInput{
		DocumentContent:   string(content),
		NumQuestions:      numQuestions,
		QuestionDirection: direction,
	}
	if err := input.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, cleanup, err := buildPipeline(cfg, useTemporal)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Generating %d questions and collecting answers...\n", numQuestions)
	run, err := p.Run(ctx, input)
	if err != nil {
		var runErr *arena.RunError
		if errors.As(err, &runErr) {
			return fmt.Errorf("no comparisons were created: %w", err)
		}
		return err
	}

	model := tui.NewModel(ctx, arena.NewSession(run), export.NewExporter(st), op)
	final, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("judging UI: %w", err)
	}

	res := final.(tui.Model).Result()
	if res == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Exited without exporting; judgments were not saved.")
		return nil
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(outDir, res.Filename)
	if err := os.WriteFile(path, []byte(res.CSV), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d judgments; CSV written to %s\n", len(res.Records), path)
	return nil
}
