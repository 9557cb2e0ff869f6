// Package ai suggests task breakdowns via an OpenAI-compatible
// chat-completions endpoint.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"golang.org/x/time/rate"

	logx "vellum/pkg/logx"
)

var (
	// ErrDisabled means no API key is configured.
	ErrDisabled = errors.New("ai breakdown is not configured")

	// ErrDailyLimit means the user exhausted today's breakdown calls.
	ErrDailyLimit = errors.New("daily ai limit reached")

	// ErrUnavailable wraps transport and parse failures the caller cannot act on.
	ErrUnavailable = errors.New("ai service temporarily unavailable")
)

const (
	defaultBaseURL    = "https://api.groq.com/openai/v1"
	defaultModel      = "llama-3.3-70b-versatile"
	defaultDailyLimit = 3
	defaultTimeout    = 30 * time.Second
	maxChunks         = 5
)

// Config configures the breakdown service.
type Config struct {
	Enabled    bool
	APIKey     string
	BaseURL    string  // default Groq's OpenAI-compatible endpoint
	Model      string  // default llama-3.3-70b-versatile
	DailyLimit int     // per user per day; default 3
	RatePerSec float64 // process-wide request rate; 0 disables limiting
	Timeout    time.Duration
}

// UsageStore is the slice of persistence the daily limit needs.
type UsageStore interface {
	CountAIUsageSince(ctx context.Context, userID string, since time.Time) (int, error)
	RecordAIUsage(ctx context.Context, userID string, at time.Time) error
}

// Request describes the task to break down.
type Request struct {
	Description string
	SkillLevel  string // beginner / intermediate / advanced
}

// Chunk is one suggested sub-step.
type Chunk struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_duration_min"`
}

// Breakdown is the model's suggestion set.
type Breakdown struct {
	Chunks []Chunk `json:"suggested_chunks"`
}

// Service enforces the daily limit and rate limit around the model call.
type Service struct {
	cfg     Config
	store   UsageStore
	limiter *rate.Limiter
	httpc   *http.Client
	loc     *time.Location
	log     logx.Logger
}

// NewService builds the breakdown service. The location sets where "today"
// begins for the daily limit.
func NewService(cfg Config, store UsageStore, loc *time.Location, log logx.Logger) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.DailyLimit <= 0 {
		cfg.DailyLimit = defaultDailyLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if loc == nil {
		loc = time.UTC
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	var limiter *rate.Limiter
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return &Service{
		cfg:     cfg,
		store:   store,
		limiter: limiter,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		loc:     loc,
		log:     log,
	}
}

// Classify asks the model for a breakdown of the task, enforcing the per-user
// daily limit and recording usage on success.
func (s *Service) Classify(ctx context.Context, userID string, req Request) (Breakdown, error) {
	if !s.cfg.Enabled || strings.TrimSpace(s.cfg.APIKey) == "" {
		return Breakdown{}, ErrDisabled
	}

	now := time.Now().In(s.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if used, err := s.store.CountAIUsageSince(ctx, userID, midnight); err != nil {
		s.log.Warn("ai usage check failed", logx.Err(err))
	} else if used >= s.cfg.DailyLimit {
		return Breakdown{}, ErrDailyLimit
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return Breakdown{}, err
		}
	}

	content, err := s.complete(ctx, req)
	if err != nil {
		s.log.Error("ai completion failed", logx.Err(err))
		return Breakdown{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	bd, err := parseBreakdown(content)
	if err != nil {
		s.log.Error("ai response unparseable", logx.Err(err))
		return Breakdown{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := s.store.RecordAIUsage(ctx, userID, time.Now()); err != nil {
		s.log.Warn("recording ai usage failed", logx.Err(err))
	}
	return bd, nil
}

// parseBreakdown decodes the model output, repairing malformed JSON once.
func parseBreakdown(content string) (Breakdown, error) {
	var bd Breakdown
	if err := json.Unmarshal([]byte(content), &bd); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(content)
		if rerr != nil {
			return Breakdown{}, err
		}
		if err := json.Unmarshal([]byte(repaired), &bd); err != nil {
			return Breakdown{}, err
		}
	}
	if len(bd.Chunks) > maxChunks {
		bd.Chunks = bd.Chunks[:maxChunks]
	}
	return bd, nil
}
