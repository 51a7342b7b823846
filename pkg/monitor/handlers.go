package monitor

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/ivid/go-streamdiff/pkg/hub"
	"github.com/ivid/go-streamdiff/pkg/prompt"
)

// handleStatus returns the session's current state and counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.StatusFunc == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no session attached",
		})
	}
	return c.JSON(s.StatusFunc())
}

// handleGetPrompt returns the active prompt
func (s *Server) handleGetPrompt(c *fiber.Ctx) error {
	return c.JSON(prompt.Update{Prompt: s.prompts.Snapshot()})
}

// handleSetPrompt replaces the active prompt
func (s *Server) handleSetPrompt(c *fiber.Ctx) error {
	p, err := prompt.ParseUpdate(c.Body())
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.prompts.Set(p)
	s.log.Info("prompt updated", "prompt", p, "source", "api")
	return c.JSON(prompt.Update{Prompt: p})
}

// handleFrame returns the most recent preview frame as JPEG
func (s *Server) handleFrame(c *fiber.Ctx) error {
	s.frameMu.RLock()
	data := s.latestFrame
	s.frameMu.RUnlock()
	if len(data) == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no frame yet",
		})
	}
	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.Send(data)
}

// handleStatusWS streams status snapshots to a dashboard client
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	if client == nil {
		c.Close()
		return
	}

	// Send current status so the dashboard renders immediately
	if s.StatusFunc != nil {
		c.WriteJSON(s.StatusFunc())
	}

	client.Run()
}

// handlePreviewWS streams JPEG preview frames to a dashboard client
func (s *Server) handlePreviewWS(c *websocket.Conn) {
	client := hub.NewClient(s.previewHub, c)
	if client == nil {
		c.Close()
		return
	}

	// Send the latest frame so the dashboard is not blank until the
	// next transform completes
	s.frameMu.RLock()
	data := s.latestFrame
	s.frameMu.RUnlock()
	if len(data) > 0 {
		c.WriteMessage(websocket.BinaryMessage, data)
	}

	client.Run()
}
