// Package l3tracks owns Layer 3 (Tracks) of the fiber tracing model.
//
// Responsibilities: aligning the per-profile peak lists into tracks that
// follow one fiber across the dispersion axis, and cleaning those tracks
// (gap-fraction filter, reference profile selection, ordering by position
// at the reference profile).
// Key types: Track, Cleaned.
//
// Dependency rule: L3 may depend on L1/L2, never on L4+.
package l3tracks
