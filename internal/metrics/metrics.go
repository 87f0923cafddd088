// Package metrics holds the participant-side prometheus collectors.
// Labels are bounded enums only; actor ids never become label values.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "participant_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.02},
	})

	pushSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_intents_sent_total",
		Help: "Push intents handed to the relay",
	})

	pushReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_intents_received_total",
		Help: "Push intents received, by outcome",
	}, []string{"outcome"}) // Bounded: see relay.Outcome

	snapshotsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_sent_total",
		Help: "Replication snapshots published by authorities",
	})

	snapshotsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_applied_total",
		Help: "Replication snapshots applied to observer entities",
	})

	transformsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transforms_applied_total",
		Help: "Transform updates applied to observer replicas",
	})

	messagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "participant_messages_dropped_total",
		Help: "Inbound messages dropped before handling",
	}, []string{"reason"}) // Bounded: "inbox_full", "malformed", "unknown_actor", "local_actor"

	sessionExits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_exits_total",
		Help: "Session exits requested after health depletion",
	})

	entities = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "participant_entities",
		Help: "Entities known to participants in this process",
	}, []string{"role"}) // Bounded: "authority", "observer"
)

// RecordTick records tick timing
func RecordTick(d time.Duration) { tickDuration.Observe(d.Seconds()) }

func PushSent()                    { pushSent.Inc() }
func PushReceived(outcome string)  { pushReceived.WithLabelValues(outcome).Inc() }
func SnapshotSent()                { snapshotsSent.Inc() }
func SnapshotApplied()             { snapshotsApplied.Inc() }
func TransformApplied()            { transformsApplied.Inc() }
func MessageDropped(reason string) { messagesDropped.WithLabelValues(reason).Inc() }
func SessionExit()                 { sessionExits.Inc() }
func EntityAdded(role string)      { entities.WithLabelValues(role).Inc() }
func EntityRemoved(role string)    { entities.WithLabelValues(role).Dec() }
