/*
Package monitoring provides Prometheus metrics for relays and captures.

# Overview

This package tracks relay lifecycle (created, active), drained byte volume,
drain task outcomes (clean EOF, truncation timeout, select/read failure) and
capture run durations.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Hand it to a relay or capturer via their options; they record
	// into it as drains and captures finish.

# Metrics Endpoint

Expose metrics via the standard Prometheus handler:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	http.Handle("/metrics", promhttp.Handler())
*/
package monitoring
