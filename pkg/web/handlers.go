package web

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-guide/pkg/guidance"
)

const (
	askTimeout      = 5 * time.Second
	describeTimeout = 30 * time.Second
)

// Status is the dashboard view of the session.
type Status struct {
	SessionID   string       `json:"session_id,omitempty"`
	Active      bool         `json:"active"`
	Listening   bool         `json:"listening"`
	StatusText  string       `json:"status_text"`
	Objects     []ObjectView `json:"objects"`
	ActivatedAt *time.Time   `json:"activated_at,omitempty"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// ObjectView is one detected object as shown on the overlay.
type ObjectView struct {
	Label     string `json:"label"`
	Percent   int    `json:"percent"`
	Direction string `json:"direction,omitempty"`
	Text      string `json:"text"`
}

func (s *Server) status(snap guidance.Snapshot) Status {
	objs := snap.Objects
	if s.cfg.MaxObjects > 0 && len(objs) > s.cfg.MaxObjects {
		objs = objs[:s.cfg.MaxObjects]
	}

	views := make([]ObjectView, 0, len(objs))
	for _, o := range objs {
		v := ObjectView{
			Label:     o.Label,
			Percent:   int(math.Round(o.Confidence * 100)),
			Direction: string(s.buckets.Of(o.Box)),
		}
		v.Text = fmt.Sprintf("%s %d%%", v.Label, v.Percent)
		if v.Direction != "" {
			v.Text += " " + v.Direction
		}
		views = append(views, v)
	}

	st := Status{
		SessionID:  snap.ID,
		Active:     snap.Active,
		Listening:  snap.Listening,
		StatusText: snap.StatusText,
		Objects:    views,
		UpdatedAt:  snap.UpdatedAt,
	}
	if !snap.ActivatedAt.IsZero() {
		at := snap.ActivatedAt
		st.ActivatedAt = &at
	}
	return st
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.status(s.ctrl.Snapshot()))
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), askTimeout)
	defer cancel()

	active, err := s.ctrl.Toggle(ctx)
	if err != nil {
		return s.controlError(c, err)
	}
	return c.JSON(fiber.Map{"active": active})
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), askTimeout)
	defer cancel()

	accepted, err := s.ctrl.Ask(ctx, text)
	if err != nil {
		return s.controlError(c, err)
	}
	if !accepted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"accepted": false,
			"error":    "guidance is not active",
		})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

func (s *Server) handleDescribe(c *fiber.Ctx) error {
	if s.camera == nil || s.describer == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "scene description not configured"})
	}
	if !s.camera.Available() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "camera unavailable"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), describeTimeout)
	defer cancel()

	frame, err := s.camera.Capture(ctx)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	text, err := s.describer.Describe(ctx, frame)
	if err != nil {
		s.logger.Warn("describe failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"description": text})
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.cameraCtl == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "camera control not configured"})
	}
	return c.JSON(s.cameraCtl.Settings())
}

func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	if s.cameraCtl == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "camera control not configured"})
	}
	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if err := s.cameraCtl.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(s.cameraCtl.Settings())
}

func (s *Server) handleGetLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	defer s.logsMu.RUnlock()
	return c.JSON(s.logs)
}

func (s *Server) controlError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, guidance.ErrNotRunning):
		status = fiber.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusGatewayTimeout
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
