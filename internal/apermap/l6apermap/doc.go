// Package l6apermap owns Layer 6 (Aperture map) of the fiber tracing model.
//
// Responsibilities: rasterising the fitted traces into an integer
// aperture map, clipping it to the valid spectral region of every row,
// and exporting the trace coefficients and midpoint rows as text.
// Key types: ApertureMap, Result.
//
// Dependency rule: L6 may depend on L1-L5; nothing in the core depends on L6.
package l6apermap
