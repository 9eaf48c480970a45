package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/invigilab/go-invigil/pkg/event"
	"github.com/invigilab/go-invigil/pkg/monitor"
)

// handleStatus returns the session identity and whether monitoring is live.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	stats := s.mon.GetStats()
	return c.JSON(fiber.Map{
		"monitoring_active": stats.MonitoringActive,
		"session_id":        stats.SessionID,
		"candidate_id":      stats.CandidateID,
		"started_at":        stats.StartedAt,
	})
}

// handleStats returns the full monitoring statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.mon.GetStats())
}

// handleEvents returns the most recent emitted events, newest last.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	n := c.QueryInt("limit", s.cfg.RecentEvents)
	if n <= 0 || n > s.cfg.RecentEvents {
		n = s.cfg.RecentEvents
	}
	return c.JSON(s.mon.Recent(n))
}

// handleSummary returns per-type aggregates over the session so far.
func (s *Server) handleSummary(c *fiber.Ctx) error {
	return c.JSON(s.mon.Summary())
}

// FlagRequest is the body for POST /api/flag.
type FlagRequest struct {
	Description string         `json:"description"`
	Severity    event.Severity `json:"severity"`
	FlaggedBy   string         `json:"flagged_by"`
}

// handleFlag injects a manual flag from the invigilator into the event
// stream of the running session.
func (s *Server) handleFlag(c *fiber.Ctx) error {
	var req FlagRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "description is required",
		})
	}
	switch req.Severity {
	case "":
		req.Severity = event.SeverityMedium
	case event.SeverityLow, event.SeverityMedium, event.SeverityHigh, event.SeverityCritical:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unknown severity",
		})
	}

	e, err := s.mon.FlagManual(req.Description, req.Severity, req.FlaggedBy)
	if err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "no active session",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(e)
}
