// Package pipeline composes the tracing layers into one run: column
// profiles, peaks, tracks, missing-fiber resolution, trace fitting and
// the aperture map.
//
// Responsibilities: typed run configuration (with conversion from the
// JSON tuning file), optional rectification and edge masking of the input
// frame, count-mismatch reporting, and a structured event stream that
// mirrors the ops/diag/trace log levels.
// Key types: Config, Input, Runner, Result, Event.
//
// Dependency rule: pipeline may depend on every layer; no layer depends
// on pipeline.
package pipeline
