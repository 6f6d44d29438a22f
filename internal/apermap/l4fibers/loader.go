package l4fibers

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/banshee-data/ifum-apermap/internal/apermap"
	"github.com/banshee-data/ifum-apermap/internal/fsutil"
)

type templateKey struct {
	ifu  string
	side apermap.Side
}

// Loader reads templates from a directory and caches them by (IFU, side).
// Cached templates are never mutated; Load hands out copies.
type Loader struct {
	fs            fsutil.FileSystem
	dir           string
	nativeBinning int

	mu    sync.RWMutex
	cache map[templateKey]Template
}

// NewLoader creates a loader for templates recorded at nativeBinning.
func NewLoader(fs fsutil.FileSystem, dir string, nativeBinning int) *Loader {
	if nativeBinning <= 0 {
		nativeBinning = 1
	}
	return &Loader{
		fs:            fs,
		dir:           dir,
		nativeBinning: nativeBinning,
		cache:         make(map[templateKey]Template),
	}
}

// TemplateFile is the file name holding the template for (ifu, side).
func TemplateFile(ifu IFU, side apermap.Side) string {
	return fmt.Sprintf("%s_%s.txt", ifu.Label, side)
}

// Load returns the template for (ifu, side) at native binning.
func (l *Loader) Load(ifu IFU, side apermap.Side) (Template, error) {
	key := templateKey{ifu: ifu.Label, side: side}

	l.mu.RLock()
	t, ok := l.cache[key]
	l.mu.RUnlock()
	if ok {
		return clone(t), nil
	}

	path := filepath.Join(l.dir, TemplateFile(ifu, side))
	f, err := l.fs.Open(path)
	if err != nil {
		return Template{}, fmt.Errorf("%w: %v", apermap.ErrTemplateLoad, err)
	}
	defer f.Close()

	positions, err := ParseTemplate(f)
	if err != nil {
		return Template{}, fmt.Errorf("%s: %w", path, err)
	}
	t = Template{IFU: ifu.Label, Side: side, NativeBinning: l.nativeBinning, Positions: positions}
	if n := len(positions); n != ifu.Expected() {
		opsf("template %s holds %d positions, %s expects %d per side", path, n, ifu.Label, ifu.Expected())
	}

	l.mu.Lock()
	if cached, ok := l.cache[key]; ok {
		t = cached
	} else {
		l.cache[key] = t
	}
	l.mu.Unlock()
	diagf("loaded template %s (%d positions, native binning %d)", path, len(t.Positions), t.NativeBinning)
	return clone(t), nil
}

func clone(t Template) Template {
	t.Positions = append([]float64(nil), t.Positions...)
	return t
}
