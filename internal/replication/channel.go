// Package replication ships the authority's replicated fields to observers.
//
// Snapshots carry (isPushing, health) in that fixed order and are applied
// verbatim: no sequence, no ack, last write wins. Transforms carry the
// authority body's pose so observer replicas collide in the right place.
package replication

import (
	"fmt"

	"push-arena/internal/game"
	"push-arena/internal/metrics"
	"push-arena/internal/protocol"
)

// Publisher is the outbound half of the message bus.
type Publisher interface {
	Publish(f protocol.Frame) error
}

// Serialize captures the replicated fields of an owned entity.
func Serialize(h *game.AuthorityHandle) protocol.Snapshot {
	p := h.Player()
	return protocol.Snapshot{
		Actor:     p.Actor(),
		IsPushing: p.IsPushing(),
		Health:    p.Health(),
	}
}

// Apply overwrites an observed entity's replicated fields.
func Apply(o *game.ObserverHandle, s protocol.Snapshot) {
	o.ApplySnapshot(s.IsPushing, s.Health)
}

// CaptureTransform reads the pose of an owned entity's body. It reports
// false for entities without a body.
func CaptureTransform(h *game.AuthorityHandle, phys game.Physics) (protocol.Transform, bool) {
	p := h.Player()
	if !p.HasBody() {
		return protocol.Transform{}, false
	}
	return protocol.Transform{
		Actor:    p.Actor(),
		Position: phys.Position(p.Body()),
		Velocity: phys.Velocity(p.Body()),
	}, true
}

// ApplyTransform places an observer replica.
func ApplyTransform(o *game.ObserverHandle, phys game.Physics, t protocol.Transform) bool {
	p := o.Player()
	if !p.HasBody() {
		return false
	}
	phys.SetPose(p.Body(), t.Position, t.Velocity)
	return true
}

// Channel publishes and applies replication frames for one participant.
type Channel struct {
	out     Publisher
	phys    game.Physics
	journal game.Journal
}

// NewChannel creates a replication channel.
func NewChannel(out Publisher, phys game.Physics, journal game.Journal) *Channel {
	if journal == nil {
		journal = game.NopJournal{}
	}
	return &Channel{out: out, phys: phys, journal: journal}
}

// Publish sends the snapshot and, when the entity has a body, its transform.
func (c *Channel) Publish(h *game.AuthorityHandle) error {
	snap := Serialize(h)
	f, err := protocol.NewFrame(protocol.MsgSnapshot, snap.Actor, snap)
	if err != nil {
		return err
	}
	if err := c.out.Publish(f); err != nil {
		return fmt.Errorf("replication: publish snapshot: %w", err)
	}
	metrics.SnapshotSent()

	tr, ok := CaptureTransform(h, c.phys)
	if !ok {
		return nil
	}
	f, err = protocol.NewFrame(protocol.MsgTransform, tr.Actor, tr)
	if err != nil {
		return err
	}
	if err := c.out.Publish(f); err != nil {
		return fmt.Errorf("replication: publish transform: %w", err)
	}
	return nil
}

// ApplySnapshot decodes and applies a snapshot frame to o.
func (c *Channel) ApplySnapshot(o *game.ObserverHandle, body []byte, tick uint64) error {
	s, err := protocol.Decode[protocol.Snapshot](body)
	if err != nil {
		return err
	}
	if s.Actor != o.Actor() {
		return fmt.Errorf("replication: snapshot for actor %d applied to %d", s.Actor, o.Actor())
	}
	Apply(o, s)
	metrics.SnapshotApplied()
	c.journal.Record(game.EventTypeSnapshotApplied, tick, s.Actor, game.SnapshotPayload{
		IsPushing: s.IsPushing,
		Health:    s.Health,
	})
	return nil
}

// ApplyTransform decodes and applies a transform frame to o.
func (c *Channel) ApplyTransform(o *game.ObserverHandle, body []byte) error {
	t, err := protocol.Decode[protocol.Transform](body)
	if err != nil {
		return err
	}
	if t.Actor != o.Actor() {
		return fmt.Errorf("replication: transform for actor %d applied to %d", t.Actor, o.Actor())
	}
	if ApplyTransform(o, c.phys, t) {
		metrics.TransformApplied()
	}
	return nil
}
