package game

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"push-arena/internal/config"
	"push-arena/internal/protocol"
)

// IntentSink accepts push intents for relay. It never applies them locally.
type IntentSink interface {
	SendPush(intent protocol.PushIntent) error
}

// Hazard causes for journal payloads.
const (
	CauseEnter   = "enter"
	CausePersist = "persist"
)

// InteractionDetector evaluates overlap callbacks for locally-authoritative
// entities. A held push emits one intent per tick of overlap; contact with
// another entity's push volume depletes the local entity's health.
type InteractionDetector struct {
	phys    Physics
	tuning  config.TuningSource
	sink    IntentSink
	journal Journal
	dt      float64

	locals map[protocol.ActorID]*AuthorityHandle
	tick   uint64
}

// NewInteractionDetector creates a detector. dt is the fixed tick delta in
// seconds used to scale the continuous drain rate.
func NewInteractionDetector(phys Physics, tuning config.TuningSource, sink IntentSink, journal Journal, dt float64) *InteractionDetector {
	if journal == nil {
		journal = NopJournal{}
	}
	return &InteractionDetector{
		phys:    phys,
		tuning:  tuning,
		sink:    sink,
		journal: journal,
		dt:      dt,
		locals:  make(map[protocol.ActorID]*AuthorityHandle),
	}
}

// Track enables detection for an entity this participant owns.
func (d *InteractionDetector) Track(h *AuthorityHandle) { d.locals[h.Actor()] = h }

// Untrack disables detection for actor.
func (d *InteractionDetector) Untrack(actor protocol.ActorID) { delete(d.locals, actor) }

// BeginTick stamps journal entries for the coming physics step.
func (d *InteractionDetector) BeginTick(tick uint64) { d.tick = tick }

// OnOverlapBegin implements OverlapListener.
func (d *InteractionDetector) OnOverlapBegin(self, other Collider) { d.evaluate(self, other, true) }

// OnOverlapPersist implements OverlapListener.
func (d *InteractionDetector) OnOverlapPersist(self, other Collider) { d.evaluate(self, other, false) }

func (d *InteractionDetector) evaluate(self, other Collider, first bool) {
	if other.Owner == self.Owner {
		return
	}
	h, ok := d.locals[self.Owner]
	if !ok {
		return
	}

	switch self.Kind {
	case VolumePush:
		if other.Kind != VolumeBody || other.Tag != TagPlayer {
			return
		}
		if !h.Player().IsPushing() {
			return
		}
		d.push(h, self, other)
	case VolumeBody:
		if !IsHazard(other) {
			return
		}
		d.deplete(h, first)
	}
}

func (d *InteractionDetector) push(h *AuthorityHandle, self, other Collider) {
	t := d.tuning.Tuning()
	intent := protocol.PushIntent{
		Source:  h.Actor(),
		Target:  other.Owner,
		Impulse: PushImpulse(d.phys.Position(self.Body), d.phys.Position(other.Body), t.PushImpulse, t.PushDirection),
	}
	if err := d.sink.SendPush(intent); err != nil {
		d.journal.Record(EventTypePushDiscarded, d.tick, h.Actor(), PushPayload{
			Source:  intent.Source,
			Target:  intent.Target,
			Impulse: intent.Impulse,
			Reason:  "send: " + err.Error(),
		})
	}
}

func (d *InteractionDetector) deplete(h *AuthorityHandle, first bool) {
	t := d.tuning.Tuning()
	amount, cause := t.HazardDrainPerSecond*d.dt, CausePersist
	if first {
		amount, cause = t.HazardEnterDamage, CauseEnter
	}
	if amount <= 0 || h.Player().IsDepleted() {
		return
	}
	remaining := h.Deplete(amount)
	d.journal.Record(EventTypeHealthDepleted, d.tick, h.Actor(), HealthPayload{
		Amount:    amount,
		Remaining: remaining,
		Cause:     cause,
	})
}

// IsHazard reports whether a collider depletes health on contact.
func IsHazard(c Collider) bool {
	return strings.Contains(strings.ToLower(c.Name), "push")
}

// PushImpulse returns the planar impulse for a push from pusher onto target.
// Coincident positions fall back to +X so an impulse is always produced.
func PushImpulse(pusher, target mgl64.Vec3, magnitude float64, direction string) mgl64.Vec3 {
	d := target.Sub(pusher)
	d[1] = 0
	if d.Len() < 1e-9 {
		d = mgl64.Vec3{1, 0, 0}
	}
	d = d.Normalize()
	if direction == config.PushToward {
		d = d.Mul(-1)
	}
	return d.Mul(magnitude)
}
