// Package apermap holds the types shared by every layer of the fiber
// tracing pipeline: the detector Frame, the Curvature model, per-profile
// track Entries and the sentinel errors callers match with errors.Is.
//
// Layer packages:
//
//	l1profiles  column-group stacking
//	l2peaks     adaptive peak detection
//	l3tracks    peak alignment and track cleaning
//	l4fibers    IFU templates and missing-fiber resolution
//	l5traces    polynomial trace fitting
//	l6apermap   aperture map rasterisation
//
// The pipeline package is the composition root and the only package that
// imports all layers.
package apermap
