package apermap

import "errors"

var (
	// ErrConfiguration reports degenerate grouping or shape parameters.
	ErrConfiguration = errors.New("configuration error")

	// ErrSignalNotFound reports an unilluminated or wrong input frame.
	ErrSignalNotFound = errors.New("signal not found")

	// ErrTemplateLoad reports a missing or malformed calibration template.
	ErrTemplateLoad = errors.New("template load error")

	// ErrFit reports degenerate or rank-deficient polynomial fit input.
	// It aborts the whole run so no partially labelled map is produced.
	ErrFit = errors.New("fit error")
)
