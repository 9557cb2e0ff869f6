// Package server exposes the journal over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"vellum/internal/ai"
	"vellum/internal/sched"
	"vellum/internal/storage"
	logx "vellum/pkg/logx"
)

// Config controls the HTTP listener.
type Config struct {
	Addr  string
	Debug bool
	CORS  bool

	// Tokens maps bearer tokens to user IDs (operator-managed).
	Tokens map[string]string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// TaskStore is the persistence surface the handlers need.
type TaskStore interface {
	ListTasks(ctx context.Context, userID string) ([]storage.Task, error)
	GetTask(ctx context.Context, userID, id string) (storage.Task, error)
	CreateTask(ctx context.Context, t storage.Task) (storage.Task, error)
	UpdateTask(ctx context.Context, t storage.Task) (storage.Task, error)
	DeleteTask(ctx context.Context, userID, id string) error
	AddProgressLog(ctx context.Context, userID string, pl storage.ProgressLog) (storage.ProgressLog, error)
	ReplaceChunks(ctx context.Context, userID, taskID string, chunks []storage.Chunk) ([]storage.Chunk, error)
	GetPreferences(ctx context.Context, userID string) (storage.Preferences, error)
	SetPreferences(ctx context.Context, p storage.Preferences) error
}

// Scheduler triggers scheduling runs.
type Scheduler interface {
	Run(ctx context.Context, userID string, opts sched.RunOptions) (sched.Result, error)
}

// Classifier suggests task breakdowns. May be nil when AI is not configured.
type Classifier interface {
	Classify(ctx context.Context, userID string, req ai.Request) (ai.Breakdown, error)
}

// Server is the HTTP API front end.
type Server struct {
	cfg   Config
	store TaskStore
	sched Scheduler
	ai    Classifier
	log   logx.Logger

	mu     sync.RWMutex
	tokens map[string]string

	httpSrv *http.Server
}

func New(cfg Config, store TaskStore, scheduler Scheduler, classifier Classifier, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{
		cfg:    cfg,
		store:  store,
		sched:  scheduler,
		ai:     classifier,
		log:    log,
		tokens: cloneTokens(cfg.Tokens),
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.engine(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) engine() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	e := gin.New()
	e.Use(gin.Recovery())
	e.Use(s.requestLog())
	if s.cfg.CORS {
		corsCfg := cors.DefaultConfig()
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
		e.Use(cors.New(corsCfg))
	}

	e.GET("/healthz", s.handleHealth)

	authed := e.Group("/", s.auth())
	authed.GET("/auth/profile", s.handleProfile)

	authed.GET("/tasks", s.handleListTasks)
	authed.POST("/tasks", s.handleCreateTask)
	authed.PUT("/tasks/:id", s.handleUpdateTask)
	authed.DELETE("/tasks/:id", s.handleDeleteTask)
	authed.POST("/tasks/log/:taskId", s.handleLogProgress)
	authed.GET("/tasks/preferences", s.handleGetPreferences)
	authed.POST("/tasks/preferences", s.handleSetPreferences)

	authed.POST("/scheduler/schedule", s.handleSchedule)
	authed.POST("/ai/classify", s.handleClassify)

	return e
}

// Handler exposes the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start begins serving; it returns once the listener stops.
func (s *Server) Start() error {
	s.log.Info("http server listening", logx.String("addr", s.cfg.Addr))
	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// SetTokens swaps the bearer-token mapping (config hot reload).
func (s *Server) SetTokens(tokens map[string]string) {
	s.mu.Lock()
	s.tokens = cloneTokens(tokens)
	s.mu.Unlock()
}

func (s *Server) userFor(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	return id, ok
}

func cloneTokens(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
