// Package display owns the two-line status screen: formatting and a
// self-healing handle to the panel.
//
// The panel is optional. Open failures and write failures are logged and
// swallowed; the Manager drops the handle and retries after RetryEvery.
package display

import (
	"time"
)

// Panel is a two-line character display.
type Panel interface {
	WriteLine(line int, s string) error
}

// Opener brings a panel up from scratch.
type Opener func() (Panel, error)

// Manager wraps an Opener with retry and redundant-write suppression.
// It is not safe for concurrent use.
type Manager struct {
	open       Opener
	retryEvery time.Duration
	now        func() time.Time

	panel     Panel
	nextTry   time.Time
	last      [2]string
	lastValid bool
}

// Options for NewManager. Zero values take defaults.
type Options struct {
	RetryEvery time.Duration // default 5 s
	Now        func() time.Time
}

// NewManager creates a Manager and attempts one open immediately.
func NewManager(open Opener, opts Options) *Manager {
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{open: open, retryEvery: opts.RetryEvery, now: opts.Now}
	m.tryOpen()
	return m
}

// Alive reports whether a panel handle is currently held.
func (m *Manager) Alive() bool { return m.panel != nil }

// Show writes both lines. Lines identical to the previous successful write
// are skipped.
func (m *Manager) Show(line0, line1 string) {
	if m.panel == nil {
		if m.now().Before(m.nextTry) {
			return
		}
		if !m.tryOpen() {
			return
		}
	}
	if m.lastValid && m.last[0] == line0 && m.last[1] == line1 {
		return
	}
	if err := m.panel.WriteLine(0, line0); err != nil {
		m.drop(err)
		return
	}
	if err := m.panel.WriteLine(1, line1); err != nil {
		m.drop(err)
		return
	}
	m.last = [2]string{line0, line1}
	m.lastValid = true
}

func (m *Manager) tryOpen() bool {
	if m.open == nil {
		m.nextTry = m.now().Add(m.retryEvery)
		return false
	}
	p, err := m.open()
	if err != nil || p == nil {
		if err != nil {
			println("[display] open failed:", err.Error())
		}
		m.nextTry = m.now().Add(m.retryEvery)
		return false
	}
	m.panel = p
	m.lastValid = false
	return true
}

func (m *Manager) drop(err error) {
	println("[display] write failed, dropping panel:", err.Error())
	m.panel = nil
	m.lastValid = false
	m.nextTry = m.now().Add(m.retryEvery)
}
