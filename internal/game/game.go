// Package game ties the world to a window, a GL device and the input loop.
package game

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/config"
	"github.com/Faultbox/worldview/internal/engine/camera"
	"github.com/Faultbox/worldview/internal/engine/debug"
	"github.com/Faultbox/worldview/internal/engine/gldevice"
	"github.com/Faultbox/worldview/internal/engine/input"
	"github.com/Faultbox/worldview/internal/engine/window"
	"github.com/Faultbox/worldview/internal/game/session"
	"github.com/Faultbox/worldview/internal/game/world"
	"github.com/Faultbox/worldview/internal/logger"
	"github.com/Faultbox/worldview/pkg/math"
)

const windowTitle = "Worldview"

// Game is the interactive viewer.
type Game struct {
	cfg    *config.Config
	window *window.Window
	device *gldevice.Device
	input  *input.Input
	camera *camera.OrbitCamera
	world  *world.World
	shots  *debug.Screenshots
	demo   *session.Demo
	opts   Options
	tracer trace.Tracer
	log    *zap.Logger
}

// Options are per-run viewer settings that do not belong in the config
// file.
type Options struct {
	// ScreenshotDir, when set, receives a capture of frame ScreenshotFrame.
	ScreenshotDir   string
	ScreenshotFrame int
}

// New opens the window and builds the demo world.
func New(cfg *config.Config, assets *session.Assets, opts Options) (*Game, error) {
	g := &Game{
		cfg:    cfg,
		opts:   opts,
		tracer: otel.Tracer("github.com/Faultbox/worldview/game"),
		log:    logger.Named("game"),
	}

	var err error
	g.window, err = window.New(window.Config{
		Title:      windowTitle,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// The device needs the context the window just made current.
	width, height := g.window.Size()
	g.device, err = gldevice.New(width, height)
	if err != nil {
		g.window.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	surface := session.NewSurface()
	g.world = session.NewWorld(g.device, cfg, assets, surface, g.log)
	g.demo, err = session.Populate(g.world, surface, g.log)
	if err != nil {
		g.Close()
		return nil, err
	}

	g.input = input.New()
	if opts.ScreenshotDir != "" {
		g.shots = debug.NewScreenshots(opts.ScreenshotDir, "worldview")
	}
	g.camera = camera.NewOrbitCamera()
	g.camera.FOV = cfg.Graphics.FOV
	if av, ok := g.world.Registry().Get(g.demo.Avatar); ok {
		g.camera.Center = av.Position.Add(math.Vec3{Y: 1})
	}

	g.log.Info("viewer initialized", zap.Int("width", width), zap.Int("height", height))
	return g, nil
}

// Run drives frames until the window closes or ctx is cancelled.
func (g *Game) Run(ctx context.Context) error {
	last := time.Now()
	frames, frameNo := 0, 0
	fpsTimer := last

	var frameBudget time.Duration
	if g.cfg.Graphics.FPSLimit > 0 {
		frameBudget = time.Second / time.Duration(g.cfg.Graphics.FPSLimit)
	}

	g.log.Info("starting frame loop")
	for ctx.Err() == nil {
		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		if g.input.Update() {
			break
		}
		if g.input.Resized {
			g.device.Resize(g.window.Size())
		}
		g.camera.Advance(dt)
		if err := g.demo.Update(dt); err != nil {
			g.log.Warn("demo script failed", zap.Error(err))
		}
		g.frame(ctx, dt)
		frameNo++
		if g.shots != nil && frameNo == g.opts.ScreenshotFrame {
			g.screenshot()
		}
		g.window.SwapBuffers()

		frames++
		if time.Since(fpsTimer) >= time.Second {
			stats := g.world.Pipeline().Stats()
			g.log.Debug("fps",
				zap.Int("count", frames),
				zap.Int("draws", g.device.Draws()),
				zap.Int("deferrals", stats.Deferrals),
				zap.Int("failures", stats.Failures))
			frames = 0
			fpsTimer = time.Now()
		}

		if frameBudget > 0 {
			if spent := time.Since(now); spent < frameBudget {
				time.Sleep(frameBudget - spent)
			}
		}
	}
	return nil
}

func (g *Game) frame(ctx context.Context, dt float32) {
	ctx, span := g.tracer.Start(ctx, "game.frame")
	defer span.End()

	g.world.Idle(ctx, dt, g.camera.Position())

	width, height := g.window.Size()
	aspect := float32(width) / float32(max(height, 1))
	g.device.SetCamera(g.camera.ViewMatrix(), g.camera.Projection(aspect))
	g.device.BeginFrame()
	g.world.Render(ctx)
}

func (g *Game) screenshot() {
	pixels, width, height := g.device.ReadPixels()
	path, err := g.shots.Save(pixels, width, height)
	if err != nil {
		g.log.Warn("screenshot failed", zap.Error(err))
		return
	}
	g.log.Info("screenshot saved", zap.String("path", path))
}

// Close releases the device and the window.
func (g *Game) Close() {
	g.log.Info("closing viewer")
	if g.device != nil {
		g.device.Close()
	}
	if g.window != nil {
		g.window.Close()
	}
}
