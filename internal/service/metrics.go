package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "docgraph_imports_started_total",
		Help: "Repository imports accepted for processing",
	})

	importsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docgraph_imports_finished_total",
		Help: "Repository imports that reached a terminal state, by status",
	}, []string{"status"})

	importDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "docgraph_import_duration_seconds",
		Help:    "Wall time from import start to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	importsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "docgraph_imports_running",
		Help: "Repository imports currently in progress",
	})

	repositoryActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docgraph_repository_actions_total",
		Help: "Sync and delete actions, by action and outcome",
	}, []string{"action", "outcome"})
)
