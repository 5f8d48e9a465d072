package workspace

import "sync"

// Guard removes an ephemeral directory exactly once. A Guard over a nil Dir
// is a no-op, which is how non-ephemeral source trees are handled.
type Guard struct {
	dir      *Dir
	once     sync.Once
	err      error
	onRemove func(dir *Dir, err error)
}

// NewGuard creates a guard for dir. onRemove, if non-nil, is called after the
// removal attempt with its result.
func NewGuard(dir *Dir, onRemove func(dir *Dir, err error)) *Guard {
	return &Guard{dir: dir, onRemove: onRemove}
}

// Release removes the guarded directory. Subsequent calls return the result
// of the first one.
func (g *Guard) Release() error {
	g.once.Do(func() {
		if g.dir == nil {
			return
		}
		g.err = g.dir.Remove()
		if g.onRemove != nil {
			g.onRemove(g.dir, g.err)
		}
	})
	return g.err
}
