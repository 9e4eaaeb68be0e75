// Package metrics holds the Prometheus collectors for the bot pipelines.
// Labels are fixed enumerations so cardinality stays bounded.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dskvich/voice-relay-bot/pkg/domain"
)

// Admission decisions.
const (
	DecisionAllowed  = "allowed"
	DecisionCooldown = "cooldown"
	DecisionBlocked  = "blocked"
	DecisionFailOpen = "fail_open"
)

var (
	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_admission_decisions_total",
			Help: "Admission decisions by outcome.",
		},
		[]string{"decision"},
	)

	moderationRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_moderation_rejections_total",
			Help: "Messages rejected by moderation, by source (text or voice).",
		},
		[]string{"source"},
	)

	strikes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_strikes_total",
			Help: "Strikes recorded against users.",
		},
	)

	blocks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_blocks_total",
			Help: "Users blocked after reaching the strike threshold.",
		},
	)

	failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_pipeline_failures_total",
			Help: "Pipeline failures by error kind.",
		},
		[]string{"kind"},
	)

	replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_replies_total",
			Help: "Replies delivered to Telegram, by type (text or audio).",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(admissions, moderationRejections, strikes, blocks, failures, replies)
}

func ObserveAdmission(decision string) {
	admissions.WithLabelValues(decision).Inc()
}

func ObserveModerationRejection(source string) {
	moderationRejections.WithLabelValues(source).Inc()
}

// ObserveStrike counts a strike and, when it escalated, the resulting block.
func ObserveStrike(escalated bool) {
	strikes.Inc()
	if escalated {
		blocks.Inc()
	}
}

func ObserveFailure(kind domain.ErrorKind) {
	failures.WithLabelValues(string(kind)).Inc()
}

func ObserveReply(replyType string) {
	replies.WithLabelValues(replyType).Inc()
}
