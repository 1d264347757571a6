package mapsurface

import "sync"

// Anchor is the container a surface binds to. It remembers which surface last claimed
// it and the child nodes that surface attached, so a remount can find leftovers.
type Anchor struct {
	mu       sync.Mutex
	id       string
	bound    *Surface
	children []string
}

func NewAnchor(id string) *Anchor {
	return &Anchor{id: id}
}

func (a *Anchor) ID() string { return a.id }

// BoundID returns the identifier of the surface that claims the anchor, if any.
func (a *Anchor) BoundID() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound == nil {
		return "", false
	}
	return a.bound.id, true
}

func (a *Anchor) Children() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.children...)
}

func (a *Anchor) claim(s *Surface, children []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound != nil {
		return ErrAlreadyInitialized
	}
	a.bound = s
	a.children = append(a.children, children...)
	return nil
}

// strip removes whatever surface claims the anchor and every child node, returning the
// surface that was stripped.
func (a *Anchor) strip() *Surface {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.bound
	a.bound = nil
	a.children = nil
	return prev
}

// release drops the claim only if s still holds it.
func (a *Anchor) release(s *Surface) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bound != s {
		return
	}
	a.bound = nil
	a.children = nil
}
