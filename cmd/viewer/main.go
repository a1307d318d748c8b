// Package main is the entry point for the Worldview scene viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/config"
	"github.com/Faultbox/worldview/internal/game"
	"github.com/Faultbox/worldview/internal/game/session"
	"github.com/Faultbox/worldview/internal/logger"
	"github.com/Faultbox/worldview/internal/telemetry"
)

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	headless := flag.Bool("headless", false, "Run without a window on a recording device")
	frames := flag.Int("frames", 120, "Frames to run in headless mode")
	var opts game.Options
	flag.StringVar(&opts.ScreenshotDir, "screenshot", "", "Directory to write a capture of one frame to")
	flag.IntVar(&opts.ScreenshotFrame, "screenshot-frame", 60, "Frame number to capture")
	flag.Parse()

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	fileCfg := logger.FileConfig{}
	if cfg.Logging.LogFile != "" {
		fileCfg = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.InitWithFileConfig(cfg.Logging.Level, fileCfg, true); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== Worldview ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg, opts, *headless, *frames); err != nil {
		logger.Error("viewer error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("viewer closed normally")
}

func run(cfg *config.Config, opts game.Options, headless bool, frames int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	assets, err := session.LoadAssets(cfg, logger.Named("assets"))
	if err != nil {
		return err
	}
	defer assets.Close()

	if headless {
		res, err := session.RunHeadless(ctx, cfg, assets, frames, 1.0/30, logger.Named("headless"))
		if err != nil {
			return err
		}
		logger.Info("draws in last frame", zap.Any("passes", res.Draws))
		return nil
	}

	g, err := game.New(cfg, assets, opts)
	if err != nil {
		return fmt.Errorf("failed to create viewer: %w", err)
	}
	defer g.Close()
	return g.Run(ctx)
}
