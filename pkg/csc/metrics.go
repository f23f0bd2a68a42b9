package csc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	exposuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiberspec_exposures_total",
		Help: "Exposures taken, by final state.",
	}, []string{"state"})

	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiberspec_lfa_uploads_total",
		Help: "Large File Annex upload attempts, by result.",
	}, []string{"result"})

	detectorTemperature = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiberspec_detector_temperature_celsius",
		Help: "Detector temperature from the last telemetry sample.",
	})
)
