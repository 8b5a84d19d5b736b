// Package metrics records build, step and cache metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics stay
// optional without nil checks at call sites. The watch command swaps in a
// PrometheusRecorder and serves it through HTTPHandler.
package metrics
