/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/


package p3util

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/p3"
)

var (
	registerOnce sync.Once

	stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "p3",
			Subsystem: "driver",
			Name:      "step_duration_seconds",
			Help:      "Wall-clock duration of the column calculations in a time step.",
			Buckets:   prometheus.ExponentialBuckets(1e-4, 4, 10),
		},
		[]string{"strategy"},
	)
	columnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "p3",
			Subsystem: "driver",
			Name:      "columns_total",
			Help:      "Column tasks calculated, by whether they ended early.",
		},
		[]string{"early_exit"},
	)
	checkFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "p3",
			Subsystem: "driver",
			Name:      "check_failures_total",
			Help:      "Steps stopped by a failed consistency check.",
		},
	)
)

// RegisterMetrics registers the microphysics metrics with the default
// Prometheus registry. It is safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(stepDuration, columnsTotal, checkFailures)
	})
}

func recordStep(strategy string, elapsed time.Duration) {
	RegisterMetrics()
	stepDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

func recordColumn(earlyExit bool) {
	RegisterMetrics()
	if earlyExit {
		columnsTotal.WithLabelValues("true").Inc()
	} else {
		columnsTotal.WithLabelValues("false").Inc()
	}
}

// recordStepError counts err as a check failure if a checker caused it.
func recordStepError(err error) {
	if _, ok := err.(*p3.CheckError); ok {
		recordCheckFailure()
	}
}

func recordCheckFailure() {
	RegisterMetrics()
	checkFailures.Inc()
}

// serveMetrics serves the Prometheus metrics at addr until the returned
// server is shut down.
func serveMetrics(addr string, log logrus.FieldLogger) *http.Server {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("p3: metrics server failed")
		}
	}()
	log.WithField("address", addr).Info("serving metrics")
	return srv
}
