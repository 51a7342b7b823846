// Package monitor provides a local dashboard for a running session:
// status and prompt control over HTTP, live status and preview frames
// over websockets.
package monitor

import (
	"bytes"
	"context"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/ivid/go-streamdiff/internal/log"
	"github.com/ivid/go-streamdiff/pkg/hub"
	"github.com/ivid/go-streamdiff/pkg/prompt"
	"github.com/ivid/go-streamdiff/pkg/room"
)

const (
	previewJPEGQuality = 80
	shutdownTimeout    = 5 * time.Second
)

// Server is the dashboard server.
type Server struct {
	app  *fiber.App
	port string
	log  *slog.Logger

	prompts *prompt.State

	// StatusFunc supplies the payload for /api/status and the status
	// websocket. Set it before Run.
	StatusFunc func() room.Status

	// Hubs for websocket broadcast
	statusHub  *hub.Hub
	previewHub *hub.Hub

	// Latest preview frame as JPEG
	frameMu     sync.RWMutex
	latestFrame []byte
}

// NewServer creates a dashboard server bound to the shared prompt
// state. Prompt changes from any writer are broadcast to status
// watchers.
func NewServer(port string, prompts *prompt.State) *Server {
	s := &Server{
		port:       port,
		log:        log.Component("monitor"),
		prompts:    prompts,
		statusHub:  hub.New("status"),
		previewHub: hub.New("preview"),
	}
	prompts.SetOnChange(func(string) {
		s.broadcastStatus()
	})

	app := fiber.New(fiber.Config{
		AppName:               "streamdiff monitor",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/prompt", s.handleGetPrompt)
	api.Post("/prompt", s.handleSetPrompt)
	api.Get("/frame", s.handleFrame)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket routes
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app
	return s
}

// Run serves the dashboard until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)
	go s.previewHub.Run(ctx)

	s.log.Info("dashboard listening", "addr", "http://localhost:"+s.port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.log.Warn("dashboard shutdown", "error", err)
		}
		<-errCh
		return nil
	}
}

// HandleEvent implements room.Handler: lifecycle changes push a fresh
// status snapshot to websocket watchers.
func (s *Server) HandleEvent(ev room.Event) {
	switch ev.(type) {
	case room.StateChanged, room.TrackBridged, room.TrackEnded:
		s.broadcastStatus()
	}
}

// Preview publishes a transformed frame to dashboards. Wire it to the
// session via SetPreview.
func (s *Server) Preview(img image.Image) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(previewJPEGQuality)); err != nil {
		s.log.Warn("failed to encode preview frame", "error", err)
		return
	}
	data := buf.Bytes()

	s.frameMu.Lock()
	s.latestFrame = data
	s.frameMu.Unlock()

	s.previewHub.BroadcastBinary(data)
}

func (s *Server) broadcastStatus() {
	if s.StatusFunc == nil {
		return
	}
	if err := s.statusHub.BroadcastJSON(s.StatusFunc()); err != nil {
		s.log.Warn("failed to broadcast status", "error", err)
	}
}

var _ room.Handler = (*Server)(nil)
