package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/config"
	"github.com/Faultbox/worldview/internal/engine/camera"
	"github.com/Faultbox/worldview/internal/engine/pipeline"
)

// HeadlessResult summarizes a headless run.
type HeadlessResult struct {
	Frames  int
	Objects int
	Stats   pipeline.Stats
	// Draws counts issued draws per pass name over the last frame.
	Draws map[string]int
}

// RunHeadless builds the demo world on a recording device and runs frames
// with the camera slowly circling the avatar. Each frame advances dt
// seconds.
func RunHeadless(ctx context.Context, cfg *config.Config, assets *Assets, frames int, dt float32, log *zap.Logger) (*HeadlessResult, error) {
	rec := pipeline.NewRecorder()
	surface := NewSurface()
	w := NewWorld(rec, cfg, assets, surface, log)
	demo, err := Populate(w, surface, log)
	if err != nil {
		return nil, err
	}

	cam := camera.NewOrbitCamera()
	if av, ok := w.Registry().Get(demo.Avatar); ok {
		cam.Center = av.Position
	}

	res := &HeadlessResult{}
	for i := range frames {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("headless run: %w", err)
		}
		cam.Advance(dt)
		if err := demo.Update(dt); err != nil {
			return nil, err
		}
		rec.Reset()
		w.Idle(ctx, dt, cam.Position())
		w.Render(ctx)
		res.Frames = i + 1
	}

	res.Objects = w.Registry().Count()
	res.Stats = w.Pipeline().Stats()
	res.Draws = make(map[string]int)
	for _, p := range rec.Passes() {
		if _, seen := res.Draws[p.String()]; !seen {
			res.Draws[p.String()] = len(rec.Draws(p))
		}
	}
	log.Info("headless run finished",
		zap.Int("frames", res.Frames),
		zap.Int("objects", res.Objects),
		zap.Int("batches", res.Stats.BatchesDrawn),
		zap.Int("deferrals", res.Stats.Deferrals),
		zap.Int("failures", res.Stats.Failures))
	return res, nil
}
