// Package sinks implements progress consumers: a structured log sink and a
// Prometheus sink whose registry can be exported as a textfile after a run.
package sinks
