package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Faultbox/worldview/internal/engine/drawable"
)

func noUpdate(*drawable.Drawable) error { return nil }

// readyFace adds a face with allocated storage for one triangle.
func readyFace(d *drawable.Drawable, pass drawable.Pass, streams drawable.StreamMask) *drawable.Face {
	f := d.AddFace(pass, streams)
	f.SetSize(3, 3)
	f.Allocate()
	return f
}

func TestPassOrderIsPinned(t *testing.T) {
	want := []drawable.Pass{
		drawable.PassSimple,
		drawable.PassGrass,
		drawable.PassFullbright,
		drawable.PassGlow,
		drawable.PassInvisible,
	}
	if !slices.Equal(PassOrder, want) {
		t.Fatalf("PassOrder = %v, want %v", PassOrder, want)
	}
	if !slices.Equal(PoolOrder[:len(PassOrder)], PassOrder) || PoolOrder[len(PoolOrder)-1] != drawable.PassHUD {
		t.Errorf("PoolOrder = %v, want PassOrder then hud", PoolOrder)
	}
}

func TestRenderVisitsPassesInOrder(t *testing.T) {
	rec := NewRecorder()
	p := New(rec, noUpdate)

	opaque := drawable.New(1, drawable.TypeVolume)
	of := readyFace(opaque, drawable.PassSimple, drawable.StreamAll)
	grass := drawable.New(2, drawable.TypeGrass)
	gf := readyFace(grass, drawable.PassGrass, drawable.StreamAll)
	glow := drawable.New(3, drawable.TypeVolume)
	wf := readyFace(glow, drawable.PassGlow, drawable.StreamAll)
	invisible := drawable.New(4, drawable.TypeVolume)
	vf := readyFace(invisible, drawable.PassInvisible, drawable.StreamPosition)

	// Register in reverse to show order comes from the pools.
	for _, d := range []*drawable.Drawable{invisible, glow, grass, opaque} {
		p.AddDrawable(d)
	}
	p.Render(context.Background())

	if got := rec.Passes(); !slices.Equal(got, PassOrder) {
		t.Fatalf("passes = %v, want %v", got, PassOrder)
	}
	checks := []struct {
		pass drawable.Pass
		face *drawable.Face
	}{
		{drawable.PassSimple, of},
		{drawable.PassGrass, gf},
		{drawable.PassGlow, wf},
		{drawable.PassInvisible, vf},
	}
	for _, c := range checks {
		if got := rec.Draws(c.pass); len(got) != 1 || got[0] != c.face {
			t.Errorf("%v drew %v, want one face", c.pass, got)
		}
	}
	if got := rec.Draws(drawable.PassFullbright); len(got) != 0 {
		t.Errorf("fullbright drew %d faces, want 0", len(got))
	}
}

func TestPassStateSetupAndRestore(t *testing.T) {
	rec := NewRecorder()
	p := New(rec, noUpdate)

	d := drawable.New(1, drawable.TypeVolume)
	f := readyFace(d, drawable.PassGlow, drawable.StreamAll)
	f.SetGlowColor([4]uint8{10, 20, 30, 255})
	g := drawable.New(2, drawable.TypeGrass)
	readyFace(g, drawable.PassGrass, drawable.StreamAll)
	p.AddDrawable(d)
	p.AddDrawable(g)
	p.Render(context.Background())

	tests := []struct {
		pass drawable.Pass
		want []string
	}{
		{drawable.PassGrass, []string{
			"begin", "streams(1111)", "blend(true)", "blendfunc(2,3)", "alphatest(true)", "alphafunc(0.5)",
			"draw", "alphafunc(0.01)", "blend(false)", "end",
		}},
		{drawable.PassGlow, []string{
			"begin", "streams(0101)", "blend(true)", "blendfunc(2,1)",
			"color(10,20,30,255)", "draw",
			"color(255,255,255,255)", "blendfunc(2,3)", "blend(false)", "end",
		}},
		{drawable.PassInvisible, []string{
			"begin", "streams(0001)", "colormask(false)", "colormask(true)", "end",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.pass.String(), func(t *testing.T) {
			got := rec.Calls(tt.pass)
			// Lighting for the next pool is recorded under this pass.
			got = slices.DeleteFunc(got, func(s string) bool { return len(s) > 8 && s[:8] == "lighting" })
			if !slices.Equal(got, tt.want) {
				t.Errorf("calls = %v\nwant %v", got, tt.want)
			}
		})
	}
}

func TestRenderSkipsBatchMissingStream(t *testing.T) {
	rec := NewRecorder()
	p := New(rec, noUpdate)

	broken := drawable.New(1, drawable.TypeVolume)
	readyFace(broken, drawable.PassSimple, drawable.StreamNormal)
	good := drawable.New(2, drawable.TypeVolume)
	gf := readyFace(good, drawable.PassSimple, drawable.StreamAll)
	p.AddDrawable(broken)
	p.AddDrawable(good)

	p.Render(context.Background())

	if got := rec.Draws(drawable.PassSimple); len(got) != 1 || got[0] != gf {
		t.Errorf("simple drew %v, want only the complete face", got)
	}
	if s := p.Stats(); s.BatchesSkipped != 1 || s.BatchesDrawn != 1 {
		t.Errorf("stats = %+v, want 1 drawn 1 skipped", s)
	}
	if got := rec.Passes(); !slices.Equal(got, PassOrder) {
		t.Errorf("a skipped batch must not abort the frame, passes = %v", got)
	}
}

func TestRenderTypeFiltering(t *testing.T) {
	rec := NewRecorder()
	p := New(rec, noUpdate)

	grass := drawable.New(1, drawable.TypeGrass)
	readyFace(grass, drawable.PassGrass, drawable.StreamAll)
	hidden := drawable.New(2, drawable.TypeNone)
	readyFace(hidden, drawable.PassSimple, drawable.StreamAll)
	p.AddDrawable(grass)
	p.AddDrawable(hidden)

	p.SetRenderTypeEnabled(drawable.TypeGrass, false)
	p.SetRenderTypeEnabled(drawable.TypeNone, true)
	if p.HasRenderType(drawable.TypeGrass) || p.HasRenderType(drawable.TypeNone) {
		t.Fatal("grass should be off and none can never be enabled")
	}
	p.Render(context.Background())

	if n := len(rec.Draws(drawable.PassGrass)) + len(rec.Draws(drawable.PassSimple)); n != 0 {
		t.Errorf("drew %d faces, want 0", n)
	}
}

func TestHUDFacesMoveToOverlay(t *testing.T) {
	rec := NewRecorder()
	p := New(rec, noUpdate)

	d := drawable.New(1, drawable.TypeHUD)
	f := readyFace(d, drawable.PassSimple, drawable.StreamAll)
	p.AddDrawable(d)

	f.SetState(drawable.FaceHUDRender)
	p.MarkTextured(d)
	if !p.Pool(drawable.PassSimple).Contains(f) {
		t.Fatal("membership must not change before UpdateGeometry")
	}
	p.UpdateGeometry()

	if p.Pool(drawable.PassSimple).Contains(f) || !p.Pool(drawable.PassHUD).Contains(f) {
		t.Fatal("HUD-tagged face should live in the overlay pool")
	}
	p.Render(context.Background())
	passes := rec.Passes()
	if passes[len(passes)-1] != drawable.PassHUD {
		t.Errorf("overlay should render last, got %v", passes)
	}
	if calls := rec.Calls(drawable.PassHUD); !slices.Contains(calls, "cleardepth") {
		t.Errorf("overlay should clear depth, calls = %v", calls)
	}

	f.ClearState(drawable.FaceHUDRender)
	p.MarkTextured(d)
	p.UpdateGeometry()
	if !p.Pool(drawable.PassSimple).Contains(f) || p.Pool(drawable.PassHUD).Len() != 0 {
		t.Error("face should return to its material pool")
	}
}

func TestUpdateGeometryDefersUntilStorageReady(t *testing.T) {
	rec := NewRecorder()
	var calls int
	update := func(d *drawable.Drawable) error {
		calls++
		f := d.Face(0)
		f.SetSize(4, 12)
		g, err := f.Geometry()
		if err != nil {
			return err
		}
		g.Indices[0] = 1
		return nil
	}
	p := New(rec, update)

	d := drawable.New(1, drawable.TypeGrass)
	f := d.AddFace(drawable.PassGrass, drawable.StreamAll)
	p.AddDrawable(d)
	p.MarkRebuild(d, drawable.RebuildGeometry)

	p.UpdateGeometry()
	if s := p.Stats(); s.Deferrals != 1 || s.Rebuilds != 0 {
		t.Fatalf("first frame stats = %+v, want one deferral", s)
	}
	if !d.IsState(drawable.RebuildGeometry) {
		t.Fatal("deferred rebuild should be re-armed")
	}
	if f.Allocations() != 1 {
		t.Fatalf("Allocations() = %d, want 1", f.Allocations())
	}

	p.UpdateGeometry()
	if s := p.Stats(); s.Rebuilds != 1 || calls != 2 {
		t.Fatalf("second frame stats = %+v calls = %d, want one rebuild", s, calls)
	}
	if d.IsState(drawable.RebuildGeometry) {
		t.Error("rebuild flag should be clear after success")
	}
}

func TestMarkRebuildDeduplicates(t *testing.T) {
	var calls int
	p := New(NewRecorder(), func(*drawable.Drawable) error { calls++; return nil })

	d := drawable.New(1, drawable.TypeVolume)
	p.AddDrawable(d)
	for range 5 {
		p.MarkRebuild(d, drawable.RebuildAll)
		p.MarkMoved(d)
		p.MarkTextured(d)
	}
	p.UpdateGeometry()

	if calls != 1 {
		t.Errorf("update called %d times, want 1", calls)
	}
	if s := p.Stats(); s.Moves != 1 {
		t.Errorf("Moves = %d, want 1", s.Moves)
	}
	if d.IsAnyState(drawable.RebuildAll | drawable.OnBuildList | drawable.OnMovedList | drawable.OnTexturedList) {
		t.Error("all pending flags should be cleared")
	}
}

func TestRebuildFromCallbackWaitsForNextFrame(t *testing.T) {
	var p *Pipeline
	var calls int
	p = New(NewRecorder(), func(d *drawable.Drawable) error {
		calls++
		if d.IsState(drawable.RebuildGeometry) {
			t.Error("flag must be cleared before the callback runs")
		}
		p.MarkRebuild(d, drawable.RebuildGeometry)
		return nil
	})

	d := drawable.New(1, drawable.TypeVolume)
	p.AddDrawable(d)
	p.MarkRebuild(d, drawable.RebuildGeometry)

	p.UpdateGeometry()
	if calls != 1 {
		t.Fatalf("callback ran %d times in one flush, want 1", calls)
	}
	p.UpdateGeometry()
	if calls != 2 {
		t.Errorf("re-armed rebuild should run next flush, calls = %d", calls)
	}
}

func TestUpdateFailureIsLoggedAndDropped(t *testing.T) {
	p := New(NewRecorder(), func(*drawable.Drawable) error { return errors.New("boom") })
	d := drawable.New(1, drawable.TypeVolume)
	p.AddDrawable(d)
	p.MarkRebuild(d, drawable.RebuildGeometry)

	p.UpdateGeometry()
	p.UpdateGeometry()
	if s := p.Stats(); s.Failures != 1 {
		t.Errorf("Failures = %d, want 1", s.Failures)
	}
}

func TestRemoveDrawableReleasesFaces(t *testing.T) {
	rec := NewRecorder()
	var calls int
	p := New(rec, func(*drawable.Drawable) error { calls++; return nil })

	d := drawable.New(1, drawable.TypeVolume)
	f := readyFace(d, drawable.PassSimple, drawable.StreamAll)
	p.AddDrawable(d)
	p.MarkRebuild(d, drawable.RebuildGeometry)
	p.RemoveDrawable(d)
	p.UpdateGeometry()

	if calls != 0 {
		t.Error("removed drawable should not be rebuilt")
	}
	if p.Pool(drawable.PassSimple).Contains(f) {
		t.Error("face still in pool")
	}
	if len(rec.Released) != 1 || rec.Released[0] != f {
		t.Errorf("released %v, want the face", rec.Released)
	}
}

func TestRenderEmitsSpanPerPass(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	p := New(NewRecorder(), noUpdate, WithTracer(tp.Tracer("test")))
	p.SetPassEnabled(drawable.PassGlow, false)
	p.Render(context.Background())

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	want := []string{
		"pipeline.render.simple",
		"pipeline.render.grass",
		"pipeline.render.fullbright",
		"pipeline.render.invisible",
	}
	if !slices.Equal(names, want) {
		t.Errorf("spans = %v, want %v", names, want)
	}
}
