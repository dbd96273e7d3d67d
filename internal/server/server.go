// Package server exposes the arena over HTTP: create a run, walk its blind
// comparisons, record judgments and export the results.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ahrav/go-arena/internal/arena"
	"github.com/ahrav/go-arena/internal/domain"
	"github.com/ahrav/go-arena/internal/export"
)

// Pipeline produces a fresh run for an input.
type Pipeline interface {
	Run(ctx context.Context, input domain.ArenaInput) (*domain.ArenaRun, error)
}

// Exporter resolves and persists a judged run.
type Exporter interface {
	ResolveAndExport(ctx context.Context, run *domain.ArenaRun, op domain.Operator) (*export.Result, error)
}

// Config configures the HTTP layer.
type Config struct {
	CORSOrigins []string
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	pipeline Pipeline
	exporter Exporter
	sessions SessionStore
	logger   *slog.Logger
}

// New builds a server over its dependencies.
func New(pipeline Pipeline, exporter Exporter, sessions SessionStore) *Server {
	return &Server{
		pipeline: pipeline,
		exporter: exporter,
		sessions: sessions,
		logger:   slog.Default().With("component", "http_server"),
	}
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler(cfg Config) http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type"},
			ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		}))
	}

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	runs := router.Group("/api/arena/runs")
	runs.POST("", s.createRun)
	runs.GET("/:id", s.getRun)
	runs.POST("/:id/judgments", s.recordJudgment)
	runs.POST("/:id/cursor", s.moveCursor)
	runs.POST("/:id/export", s.exportRun)
	return router
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status())
	}
}

// unitView is one comparison as the operator sees it, without backend identity.
type unitView struct {
	Index       int    `json:"index"`
	Question    string `json:"question"`
	AnswerLeft  string `json:"answerLeft"`
	AnswerRight string `json:"answerRight"`
	Judgment    string `json:"judgment,omitempty"`
}

type runView struct {
	ID           string                  `json:"id"`
	Total        int                     `json:"total"`
	Judged       int                     `json:"judged"`
	Complete     bool                    `json:"complete"`
	CurrentIndex int                     `json:"currentIndex"`
	Current      *unitView               `json:"current,omitempty"`
	Failures     []domain.BackendFailure `json:"failures,omitempty"`
}

func viewOf(sess *arena.Session) runView {
	snap := sess.Snapshot()
	judged, total := sess.Progress()
	v := runView{
		ID:           snap.ID,
		Total:        total,
		Judged:       judged,
		Complete:     sess.IsComplete(),
		CurrentIndex: sess.CurrentIndex(),
		Failures:     snap.Failures,
	}
	if u, ok := sess.Current(); ok {
		v.Current = &unitView{
			Index:       v.CurrentIndex,
			Question:    u.Question,
			AnswerLeft:  u.AnswerLeft,
			AnswerRight: u.AnswerRight,
			Judgment:    string(u.Judgment),
		}
	}
	return v
}

func (s *Server) createRun(c *gin.Context) {
	var input domain.ArenaInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}
	run, err := s.pipeline.Run(c.Request.Context(), input)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess := arena.NewSession(run)
	if err := s.sessions.Save(c.Request.Context(), sess.State()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) getRun(c *gin.Context) {
	sess, err := s.load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

type judgmentRequest struct {
	Judgment string `json:"judgment"`
	// Index optionally moves the cursor before recording.
	Index *int `json:"index,omitempty"`
}

func (s *Server) recordJudgment(c *gin.Context) {
	var req judgmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", domain.ErrInvalidJudgment, err))
		return
	}
	j, err := domain.ParseJudgment(req.Judgment)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.mutate(c, func(sess *arena.Session) error {
		if req.Index != nil {
			sess.MoveTo(*req.Index)
		}
		return sess.RecordJudgment(j)
	})
}

type cursorRequest struct {
	// Action is "next", "previous" or "goto".
	Action string `json:"action"`
	Index  int    `json:"index"`
}

func (s *Server) moveCursor(c *gin.Context) {
	var req cursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err))
		return
	}
	s.mutate(c, func(sess *arena.Session) error {
		switch req.Action {
		case "next":
			sess.Next()
		case "previous", "prev":
			sess.Previous()
		case "goto", "":
			sess.MoveTo(req.Index)
		default:
			return fmt.Errorf("%w: unknown cursor action %q", domain.ErrInvalidInput, req.Action)
		}
		return nil
	})
}

func (s *Server) exportRun(c *gin.Context) {
	var op domain.Operator
	if err := c.ShouldBindJSON(&op); err != nil {
		s.fail(c, fmt.Errorf("%w: %w", domain.ErrInvalidOperator, err))
		return
	}
	ctx := c.Request.Context()
	sess, err := s.load(ctx, c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.exporter.ResolveAndExport(ctx, sess.Snapshot(), op)
	if err != nil {
		s.fail(c, err)
		return
	}
	if c.Query("format") == "csv" {
		c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(res.CSV))
		return
	}
	c.JSON(http.StatusOK, res)
}

// mutate applies fn to the run's session through the store's atomic update,
// so concurrent requests on any replica never drop each other's changes.
func (s *Server) mutate(c *gin.Context, fn func(*arena.Session) error) {
	var sess *arena.Session
	_, err := s.sessions.Update(c.Request.Context(), c.Param("id"), func(state *domain.SessionState) error {
		restored, err := arena.RestoreSession(*state)
		if err != nil {
			return err
		}
		if err := fn(restored); err != nil {
			return err
		}
		*state = restored.State()
		sess = restored
		return nil
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) load(ctx context.Context, runID string) (*arena.Session, error) {
	state, err := s.sessions.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return arena.RestoreSession(state)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidJudgment),
		errors.Is(err, domain.ErrInvalidOperator),
		errors.Is(err, arena.ErrEmptySession):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, export.ErrIncompleteJudgment),
		errors.Is(err, ErrSessionConflict):
		return http.StatusConflict
	case errors.Is(err, arena.ErrRunFailure):
		return http.StatusBadGateway
	case errors.Is(err, export.ErrPersistence):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
