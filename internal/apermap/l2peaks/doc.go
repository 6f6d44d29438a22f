// Package l2peaks owns Layer 2 (Peaks) of the fiber tracing model.
//
// Responsibilities: one-dimensional peak finding with distance,
// prominence and width criteria; the coarse pre-analysis pass that derives
// the aperture half width and detection thresholds; and the refined pass
// that reports sub-pixel fiber centres for every column profile.
// Key types: Peak, Criteria, Thresholds.
//
// Dependency rule: L2 may depend on L1, never on L3+.
package l2peaks
