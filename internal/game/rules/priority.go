package rules

import (
	"fmt"
	"time"

	"github.com/Miszion/riftbound-online-backend/internal/apperr"
)

// ChainState is Open when nothing is pending and Closed while one or more
// chain items await resolution.
type ChainState int

const (
	ChainOpen ChainState = iota
	ChainClosed
)

func (s ChainState) String() string {
	if s == ChainClosed {
		return "CLOSED"
	}
	return "OPEN"
}

// MarshalText encodes the state by name.
func (s ChainState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// WindowKind distinguishes a chain response window from a combat window.
type WindowKind string

const (
	WindowChain  WindowKind = "chain"
	WindowCombat WindowKind = "combat"
)

// Window is a time-bounded right for one player to act.
type Window struct {
	Kind     WindowKind `json:"kind"`
	Holder   string     `json:"holder"`
	OpenedAt time.Time  `json:"opened_at"`
	Deadline time.Time  `json:"deadline"`
	Passes   int        `json:"passes"`
}

// Expired reports whether the window deadline has elapsed at now.
func (w *Window) Expired(now time.Time) bool {
	return w != nil && !w.Deadline.IsZero() && !now.Before(w.Deadline)
}

// PassOutcome tells the caller what a pass requires next.
type PassOutcome int

const (
	// PassContinue hands the window to the other player.
	PassContinue PassOutcome = iota
	// PassResolveChain means every player passed in succession; the caller
	// must resolve the whole stack and then call Settle.
	PassResolveChain
	// PassCloseCombat means the defender declined to respond to an attack.
	PassCloseCombat
)

// Chain is the priority/reaction state machine for one match.
type Chain struct {
	Stack
	Window *Window `json:"window,omitempty"`
}

// NewChain creates an open chain with no window.
func NewChain() *Chain {
	return &Chain{Stack: Stack{Items: make([]ChainItem, 0, 4)}}
}

// State returns Open or Closed.
func (c *Chain) State() ChainState {
	if len(c.Items) > 0 {
		return ChainClosed
	}
	return ChainOpen
}

// Holder returns the player holding the current window, or "".
func (c *Chain) Holder() string {
	if c.Window == nil {
		return ""
	}
	return c.Window.Holder
}

// Push adds a reaction-eligible item and grants responder a window that
// lapses after d.
func (c *Chain) Push(item ChainItem, responder string, now time.Time, d time.Duration) {
	c.Stack.Push(item)
	c.Window = &Window{
		Kind:     WindowChain,
		Holder:   responder,
		OpenedAt: now,
		Deadline: now.Add(d),
	}
}

// OpenCombatWindow grants the defender a window to respond to an attack.
func (c *Chain) OpenCombatWindow(defender string, now time.Time, d time.Duration) error {
	if c.Window != nil {
		return fmt.Errorf("priority window already open for %s", c.Window.Holder)
	}
	c.Window = &Window{
		Kind:     WindowCombat,
		Holder:   defender,
		OpenedAt: now,
		Deadline: now.Add(d),
	}
	return nil
}

// Pass records a pass by player. other is the player who receives the
// window if the chain continues.
func (c *Chain) Pass(player, other string, now time.Time, d time.Duration) (PassOutcome, error) {
	if c.Window == nil {
		return PassContinue, apperr.New(apperr.CodeInvalidPhaseAction, "no priority window is open")
	}
	if c.Window.Holder != player {
		return PassContinue, apperr.New(apperr.CodePriorityViolation, "priority is held by %s", c.Window.Holder)
	}

	if c.Window.Kind == WindowCombat {
		c.Window = nil
		return PassCloseCombat, nil
	}

	c.Window.Passes++
	if c.Window.Passes >= 2 {
		return PassResolveChain, nil
	}
	c.Window.Holder = other
	c.Window.OpenedAt = now
	c.Window.Deadline = now.Add(d)
	return PassContinue, nil
}

// Settle closes the window once the stack has been resolved.
func (c *Chain) Settle() {
	c.Window = nil
}

// Expired returns the holder of a lapsed window.
func (c *Chain) Expired(now time.Time) (string, bool) {
	if c.Window.Expired(now) {
		return c.Window.Holder, true
	}
	return "", false
}

// Clone returns an independent copy of the chain.
func (c *Chain) Clone() *Chain {
	out := &Chain{Stack: Stack{Items: c.List()}}
	if c.Window != nil {
		w := *c.Window
		out.Window = &w
	}
	return out
}
