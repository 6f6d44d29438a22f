// Package l5traces owns Layer 5 (Traces) of the fiber tracing model.
//
// Responsibilities: synthesising the positions of missing fibers in every
// column profile from the template layout, converting profile-local
// positions to absolute detector coordinates through the curvature model,
// and fitting one trace polynomial per fiber.
// Key types: Input, Fiber, Result.
//
// Dependency rule: L5 may depend on L1-L4, never on L6+.
package l5traces
