// Package progress carries scrape-run events from workers to pluggable sinks
// (structured logs, Prometheus collectors) through a non-blocking Hub, and
// renders the terminal liveness indicator.
package progress
