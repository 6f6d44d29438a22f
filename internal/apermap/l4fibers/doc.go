// Package l4fibers owns Layer 4 (Fibers) of the fiber tracing model.
//
// Responsibilities: the IFU configuration table, loading and binning
// calibration templates, and resolving which expected fibers are missing
// from the reference profile by comparing its detected positions with the
// template layout.
// Key types: IFU, Template, Loader, Resolution, Slot.
//
// Dependency rule: L4 may depend on L1-L3, never on L5+.
package l4fibers
