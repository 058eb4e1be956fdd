// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts API key authentication attempts by outcome.
	// Result is one of: success, invalid, missing_user, store_error.
	AuthAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forgeflow_auth_attempts_total",
		Help: "Total API key authentication attempts by result",
	}, []string{"result"})

	// RunsCreated counts flow run records created.
	RunsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forgeflow_flow_runs_created_total",
		Help: "Total flow runs created",
	})
)

const (
	ResultSuccess     = "success"
	ResultInvalid     = "invalid"
	ResultMissingUser = "missing_user"
	ResultStoreError  = "store_error"
)
