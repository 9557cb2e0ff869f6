package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vellum/internal/ai"
	"vellum/internal/sched"
	"vellum/internal/storage"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userId": c.GetString(ctxUserID)})
}

type scheduleRequest struct {
	StartDate      string `json:"startDate"`
	DaysToSchedule int    `json:"daysToSchedule"`
	Timezone       string `json:"timezone"`
}

func (s *Server) handleSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	opts := sched.RunOptions{Days: req.DaysToSchedule}

	if tz := strings.TrimSpace(req.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown timezone: " + tz})
			return
		}
		opts.Zone = tz
	}
	if raw := strings.TrimSpace(req.StartDate); raw != "" {
		start, err := parseStartDate(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid startDate; use YYYY-MM-DD or RFC 3339"})
			return
		}
		opts.Now = start
	}

	res, err := s.sched.Run(c.Request.Context(), c.GetString(ctxUserID), opts)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseStartDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if tasks == nil {
		tasks = []storage.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

type taskRequest struct {
	Description    string     `json:"description"`
	Priority       string     `json:"priority"`
	Status         string     `json:"status"`
	Deadline       *time.Time `json:"deadline"`
	Estimate       string     `json:"estimatedDuration"`
	SessionsPerDay int        `json:"sessionsPerDay"`
	SpacingMinutes int        `json:"spacingMinutes"`
	SkillLevel     int        `json:"skillLevel"`

	// Chunks, when present, replace the task's chunk list wholesale.
	Chunks []chunkRequest `json:"chunks"`
}

type chunkRequest struct {
	Description string `json:"description"`
	Estimate    string `json:"estimatedDuration"`
	Done        bool   `json:"done"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "description is required"})
		return
	}

	userID := c.GetString(ctxUserID)
	task, err := s.store.CreateTask(c.Request.Context(), storage.Task{
		UserID:         userID,
		Description:    req.Description,
		Priority:       req.Priority,
		Status:         req.Status,
		Deadline:       req.Deadline,
		Estimate:       req.Estimate,
		SessionsPerDay: req.SessionsPerDay,
		SpacingMinutes: req.SpacingMinutes,
		SkillLevel:     req.SkillLevel,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	if len(req.Chunks) > 0 {
		if task.Chunks, err = s.store.ReplaceChunks(c.Request.Context(), userID, task.ID, toChunks(req.Chunks)); err != nil {
			s.renderError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	userID := c.GetString(ctxUserID)
	task, err := s.store.UpdateTask(c.Request.Context(), storage.Task{
		ID:             c.Param("id"),
		UserID:         userID,
		Description:    req.Description,
		Priority:       req.Priority,
		Status:         req.Status,
		Deadline:       req.Deadline,
		Estimate:       req.Estimate,
		SessionsPerDay: req.SessionsPerDay,
		SpacingMinutes: req.SpacingMinutes,
		SkillLevel:     req.SkillLevel,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	if len(req.Chunks) > 0 {
		if task.Chunks, err = s.store.ReplaceChunks(c.Request.Context(), userID, task.ID, toChunks(req.Chunks)); err != nil {
			s.renderError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, task)
}

func toChunks(in []chunkRequest) []storage.Chunk {
	out := make([]storage.Chunk, 0, len(in))
	for _, cr := range in {
		out = append(out, storage.Chunk{
			Description: cr.Description,
			Estimate:    cr.Estimate,
			Done:        cr.Done,
		})
	}
	return out
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.store.DeleteTask(c.Request.Context(), c.GetString(ctxUserID), c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type logRequest struct {
	StartedAt       *time.Time `json:"startedAt"`
	DurationMinutes int        `json:"durationMinutes"`
	Note            string     `json:"note"`
}

func (s *Server) handleLogProgress(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	pl := storage.ProgressLog{
		TaskID:          c.Param("taskId"),
		DurationMinutes: req.DurationMinutes,
		Note:            req.Note,
	}
	if req.StartedAt != nil {
		pl.StartedAt = *req.StartedAt
	}
	logged, err := s.store.AddProgressLog(c.Request.Context(), c.GetString(ctxUserID), pl)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, logged)
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	prefs, err := s.store.GetPreferences(c.Request.Context(), c.GetString(ctxUserID))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusOK, gin.H{"availableHours": gin.H{}, "autoSchedule": false, "configured": false})
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type preferencesRequest struct {
	AvailableHours map[string][2]string `json:"availableHours"`
	AutoSchedule   bool                 `json:"autoSchedule"`
}

var weekdays = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

func (s *Server) handleSetPreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	for day := range req.AvailableHours {
		if !weekdays[day] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown weekday: " + day})
			return
		}
	}

	userID := c.GetString(ctxUserID)
	if err := s.store.SetPreferences(c.Request.Context(), storage.Preferences{
		UserID:       userID,
		Hours:        req.AvailableHours,
		AutoSchedule: req.AutoSchedule,
	}); err != nil {
		s.renderError(c, err)
		return
	}
	prefs, err := s.store.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

type classifyRequest struct {
	TaskDescription string `json:"task_description"`
	SkillLevel      string `json:"skill_level"`

	// TaskID, when set, persists the suggestions as the task's chunks.
	TaskID string `json:"taskId"`
}

func (s *Server) handleClassify(c *gin.Context) {
	if s.ai == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ai.ErrDisabled.Error()})
		return
	}
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.TaskDescription) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_description is required"})
		return
	}

	userID := c.GetString(ctxUserID)
	bd, err := s.ai.Classify(c.Request.Context(), userID, ai.Request{
		Description: req.TaskDescription,
		SkillLevel:  req.SkillLevel,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	if req.TaskID != "" {
		chunks := make([]storage.Chunk, 0, len(bd.Chunks))
		for _, ch := range bd.Chunks {
			desc := ch.Title
			if ch.Description != "" {
				desc = ch.Title + ": " + ch.Description
			}
			chunks = append(chunks, storage.Chunk{
				Description: desc,
				Estimate:    minutesEstimate(ch.EstimatedMinutes),
			})
		}
		if _, err := s.store.ReplaceChunks(c.Request.Context(), userID, req.TaskID, chunks); err != nil {
			s.renderError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, bd)
}

func minutesEstimate(minutes int) string {
	if minutes <= 0 {
		return ""
	}
	return strconv.Itoa(minutes) + "m"
}
