// Package monitor renders diagnostic views of a tracing run: a PNG overlay
// of fitted traces over their fit points (gonum/plot) and an HTML page
// with the same overlay plus per-fiber residuals (go-echarts).
//
// Dependency rule: monitor may import internal/apermap and its layer
// packages. The pipeline never imports monitor.
package monitor
