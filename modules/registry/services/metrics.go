package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registryConsentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "consent",
		Name:      "decisions_total",
		Help:      "Total number of recorded consent decisions broken down by status.",
	}, []string{"status"})

	registryVerdictChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "consent",
		Name:      "verdict_changes_total",
		Help:      "Total number of change request verdict changes broken down by kind and new verdict.",
	}, []string{"kind", "verdict"})

	registryTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Total number of change request transitions broken down by action and result.",
	}, []string{"action", "result"})

	registryGuardRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "workflow",
		Name:      "guard_refusals_total",
		Help:      "Total number of transitions refused because consent was incomplete.",
	}, []string{"action"})

	registryCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "commit",
		Name:      "total",
		Help:      "Total number of effect commits broken down by change kind and result.",
	}, []string{"kind", "result"})

	registryWriteConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "registry",
		Subsystem: "write",
		Name:      "conflicts_total",
		Help:      "Total number of registry write conflicts broken down by kind.",
	}, []string{"kind"})
)

func recordTransition(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	registryTransitions.WithLabelValues(action, result).Inc()
}

func recordCommit(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	registryCommits.WithLabelValues(kind, result).Inc()
}

func recordWriteConflict(kind string) {
	if kind == "" {
		kind = "other"
	}
	registryWriteConflicts.WithLabelValues(kind).Inc()
}
