// streamdiff joins a LiveKit room, runs the first subscribed video
// track through an img2img transform, and publishes the result back as
// its own track. Prompt updates arrive over the room's data channel or
// the local dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ivid/go-streamdiff/internal/config"
	"github.com/ivid/go-streamdiff/internal/log"
	"github.com/ivid/go-streamdiff/pkg/diffusion"
	"github.com/ivid/go-streamdiff/pkg/monitor"
	"github.com/ivid/go-streamdiff/pkg/prompt"
	"github.com/ivid/go-streamdiff/pkg/room"
	"github.com/ivid/go-streamdiff/pkg/transform"
)

type appConfig struct {
	room         room.Config
	transform    string
	diffusionURL string
	monitorPort  string
	debug        bool
}

func main() {
	// Optional .env for local development
	godotenv.Load()

	cfg := parseFlags()
	if cfg.debug {
		log.Init("debug")
	} else {
		log.Init("info")
	}

	prompts := prompt.NewState(initialPrompt(cfg.transform))

	transformer, closeTransformer, err := buildTransformer(cfg)
	if err != nil {
		log.Error("failed to build transform", "transform", cfg.transform, "error", err)
		os.Exit(1)
	}
	defer closeTransformer()

	var srv *monitor.Server
	var handler room.Handler
	if cfg.monitorPort != "" {
		srv = monitor.NewServer(cfg.monitorPort, prompts)
		handler = srv
	}

	session, err := room.NewSession(cfg.room, transformer, prompts, handler)
	if err != nil {
		log.Error("failed to build session", "error", err)
		os.Exit(1)
	}
	if srv != nil {
		srv.StatusFunc = session.Status
		session.SetPreview(srv.Preview)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	if srv != nil {
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("session failed", "error", err)
		os.Exit(1)
	}
}

// parseFlags parses command line flags and returns configuration.
func parseFlags() appConfig {
	cfg := appConfig{room: room.DefaultConfig()}

	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	url := flag.String("url", "", "LiveKit server URL (overrides LIVEKIT_URL)")
	roomName := flag.String("room", config.DefaultRoom, "Room to join")
	identity := flag.String("identity", config.DefaultIdentity, "Participant identity")
	transformKind := flag.String("transform", "diffusion", "Frame transform: diffusion, edge, passthrough")
	diffusionURL := flag.String("diffusion-url", "", "img2img endpoint (overrides DIFFUSION_URL)")
	monitorPort := flag.String("monitor-port", "8080", "Dashboard port, empty disables the dashboard")
	stride := flag.Uint("stride", uint(cfg.room.Bridge.SampleStride), "Transform every Nth frame")
	publishUnsampled := flag.Bool("publish-unsampled", false, "Republish skipped frames untouched")
	promptTopic := flag.String("prompt-topic", "", "Only accept prompt updates on this data topic")
	flag.Parse()

	cfg.debug = *debug
	cfg.transform = *transformKind
	cfg.diffusionURL = *diffusionURL
	cfg.monitorPort = *monitorPort

	cfg.room.Room = *roomName
	cfg.room.Identity = *identity
	cfg.room.PromptTopic = *promptTopic
	cfg.room.Bridge.SampleStride = uint32(*stride)
	cfg.room.Bridge.PublishUnsampled = *publishUnsampled

	cfg.room.URL = config.ServerURL()
	if *url != "" {
		cfg.room.URL = *url
	}
	cfg.room.APIKey = config.APIKey()
	cfg.room.APISecret = config.APISecret()

	return cfg
}

// initialPrompt seeds the shared prompt state the way each transform
// expects before the first update arrives.
func initialPrompt(kind string) string {
	switch kind {
	case "edge":
		return prompt.DefaultOverlayText
	case "passthrough":
		return ""
	default:
		return prompt.DefaultDiffusionPrompt
	}
}

// buildTransformer constructs the selected transform and a cleanup
// function for it.
func buildTransformer(cfg appConfig) (transform.Transformer, func(), error) {
	switch cfg.transform {
	case "diffusion":
		url := cfg.diffusionURL
		if url == "" {
			url = config.DiffusionURL()
		}
		t, err := diffusion.NewTransformer(diffusion.WithBaseURL(url))
		if err != nil {
			return nil, nil, err
		}
		return t, func() { t.Close() }, nil
	case "edge":
		e := transform.NewEdge()
		return e, func() {}, nil
	case "passthrough":
		return transform.Passthrough{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown transform %q", cfg.transform)
	}
}
