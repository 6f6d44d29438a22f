// Package l1profiles owns Layer 1 (Profiles) of the fiber tracing model.
//
// Responsibilities: partitioning the dispersion axis into column groups,
// inverse-variance stacking of each group into one spatial profile, and
// the optional curvature rectification and edge masking applied to a trace
// frame before stacking.
// Key types: ColumnProfile.
//
// Dependency rule: L1 depends only on the shared apermap types.
package l1profiles
