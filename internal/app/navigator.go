package app

import "sync"

// ShellNavigator tracks the UI shell's current route and the redirect the
// app core wants it to perform. The shell reports route changes with
// SetPath and drains pending redirects with TakeRedirect.
type ShellNavigator struct {
	mu       sync.Mutex
	path     string
	redirect string
	pending  bool
}

// NewShellNavigator creates a navigator starting at the root route.
func NewShellNavigator() *ShellNavigator {
	return &ShellNavigator{path: "/"}
}

// SetPath records the shell's current route.
func (n *ShellNavigator) SetPath(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.path = path
}

// CurrentPath returns the last reported route.
func (n *ShellNavigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.path
}

// Redirect queues a navigation for the shell. A later redirect replaces an
// undrained earlier one.
func (n *ShellNavigator) Redirect(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirect = path
	n.pending = true
	n.path = path
}

// TakeRedirect returns the queued redirect, if any, and clears it.
func (n *ShellNavigator) TakeRedirect() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.pending {
		return "", false
	}
	n.pending = false
	target := n.redirect
	n.redirect = ""
	return target, true
}
