package session

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/worldview/internal/engine/terrain"
	"github.com/Faultbox/worldview/internal/game/entity"
	"github.com/Faultbox/worldview/internal/game/world"
	"github.com/Faultbox/worldview/pkg/math"
)

// Attachment points the demo uses.
const (
	HatPoint    = "Skull"
	BadgePoint  = "HUD Top Right"
	ShieldPoint = "Left Hand"
)

const (
	// grassTile is the edge length of one grass object.
	grassTile = 4

	// Seconds between the scripted attachment changes.
	hatInterval    = 4
	shieldInterval = 6
)

// Demo is the viewer's sample scene: a grass-covered region with an
// avatar wearing a few attachments.
type Demo struct {
	world *world.World
	log   *zap.Logger

	Avatar entity.ID
	Hat    entity.ID
	Badge  entity.ID
	Shield entity.ID
	Orb    entity.ID
	Grass  []entity.ID

	hatHidden   bool
	hatTimer    float32
	shieldTimer float32
}

// Populate fills w with the demo scene.
func Populate(w *world.World, surface *terrain.Surface, log *zap.Logger) (*Demo, error) {
	d := &Demo{world: w, log: log}

	width, depth := float32(regionCells*cellSize), float32(regionCells*cellSize)
	if surface != nil {
		width, depth = surface.Size()
	}
	ids := w.Species().IDs()
	i := 0
	for x := float32(grassTile / 2); x < width; x += grassTile {
		for z := float32(grassTile / 2); z < depth; z += grassTile {
			species := 0
			if len(ids) > 0 {
				species = ids[i%len(ids)]
			}
			i++
			d.Grass = append(d.Grass, w.ObjectAppeared(entity.Update{
				Kind:     entity.KindGrass,
				Position: math.Vec3{X: x, Z: z},
				Scale:    math.Vec3{X: grassTile, Y: 1, Z: grassTile},
				Species:  species,
			}))
		}
	}

	center := math.Vec3{X: width / 2, Z: depth / 2}
	if surface != nil {
		center.Y = surface.ResolveHeight(center)
	}
	d.Avatar = w.ObjectAppeared(entity.Update{
		Kind:            entity.KindAvatar,
		Position:        center,
		Scale:           math.Vec3{X: 0.5, Y: 1.8, Z: 0.3},
		AngularVelocity: math.Vec3{Y: 0.3},
	})

	sk, _ := w.Skeleton(d.Avatar)
	pointPos := func(name string) math.Vec3 {
		p, ok := sk.Point(name)
		if !ok {
			return center
		}
		pos, _ := p.Node().World()
		return pos
	}

	d.Hat = w.ObjectAppeared(entity.Update{
		Kind:       entity.KindVolume,
		Position:   pointPos(HatPoint).Add(math.Vec3{Y: 0.1}),
		Scale:      math.Vec3{X: 0.3, Y: 0.15, Z: 0.3},
		NameValues: map[string]string{entity.NameAttachItemID: uuid.NewString()},
	})
	d.Shield = w.ObjectAppeared(entity.Update{
		Kind:     entity.KindVolume,
		Position: pointPos(ShieldPoint),
		Scale:    math.Vec3{X: 0.05, Y: 0.6, Z: 0.45},
		Material: entity.MaterialFullbright,
	})
	d.Badge = w.ObjectAppeared(entity.Update{
		Kind:     entity.KindVolume,
		Scale:    math.Vec3{X: 0.1, Y: 0.1, Z: 0.02},
		Material: entity.MaterialAlphaMask,
	})
	d.Orb = w.ObjectAppeared(entity.Update{
		Kind:            entity.KindVolume,
		Position:        center.Add(math.Vec3{X: 3, Y: 1.5}),
		Scale:           math.Vec3{X: 0.4, Y: 0.4, Z: 0.4},
		Material:        entity.MaterialGlow,
		GlowColor:       [4]uint8{255, 200, 80, 255},
		AngularVelocity: math.Vec3{X: 0.5, Y: 1},
	})

	for _, a := range []struct {
		point string
		id    entity.ID
	}{
		{HatPoint, d.Hat},
		{ShieldPoint, d.Shield},
		{BadgePoint, d.Badge},
	} {
		if err := w.AttachObject(d.Avatar, a.point, a.id); err != nil {
			return nil, fmt.Errorf("attach to %s: %w", a.point, err)
		}
	}

	log.Info("demo scene populated",
		zap.Int("grass", len(d.Grass)),
		zap.Int("objects", w.Registry().Count()))
	return d, nil
}

// Update runs the scene script: the hat blinks and the shield comes off
// and goes back on.
func (d *Demo) Update(dt float32) error {
	d.hatTimer += dt
	if d.hatTimer >= hatInterval {
		d.hatTimer -= hatInterval
		d.ToggleHat()
	}
	d.shieldTimer += dt
	if d.shieldTimer >= shieldInterval {
		d.shieldTimer -= shieldInterval
		return d.ToggleShield()
	}
	return nil
}

// ToggleHat hides or shows the hat without releasing its buffers.
func (d *Demo) ToggleHat() {
	sk, ok := d.world.Skeleton(d.Avatar)
	if !ok {
		return
	}
	p, ok := sk.Point(HatPoint)
	if !ok {
		return
	}
	d.hatHidden = !d.hatHidden
	p.SetVisibility(!d.hatHidden)
}

// ToggleShield takes the shield off the avatar or puts it back on.
func (d *Demo) ToggleShield() error {
	if d.world.DetachObject(d.Shield) {
		return nil
	}
	return d.world.AttachObject(d.Avatar, ShieldPoint, d.Shield)
}
