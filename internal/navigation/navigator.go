package navigation

import (
	"errors"
	"fmt"
	"sync"

	"kingk/internal/domain"
)

// Screen is the single active screen of a client.
type Screen int

const (
	ScreenOnboarding Screen = iota
	ScreenAuth
	ScreenDashboard
	ScreenAnalysis
	ScreenAssistant
	ScreenProfile
)

var screenNames = map[Screen]string{
	ScreenOnboarding: "Onboarding",
	ScreenAuth:       "Auth",
	ScreenDashboard:  "Dashboard",
	ScreenAnalysis:   "Analysis",
	ScreenAssistant:  "Assistant",
	ScreenProfile:    "Profile",
}

func (s Screen) String() string {
	if name, ok := screenNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Screen(%d)", int(s))
}

var (
	ErrNotBootstrapped   = errors.New("navigator not bootstrapped")
	ErrInvalidTransition = errors.New("invalid screen transition")
)

// Transition describes one emitted screen change.
type Transition struct {
	From  Screen
	To    Screen
	Cause string
}

// Navigator is the screen state machine. It is owned by one controller and is
// not safe for concurrent use; only the subscriber registry is locked.
type Navigator struct {
	current      Screen
	bootstrapped bool
	hasSession   bool
	pendingChat  string

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Transition)
}

func New() *Navigator {
	return &Navigator{
		current: ScreenOnboarding,
		subs:    make(map[int]func(Transition)),
	}
}

func (n *Navigator) Current() Screen { return n.current }
func (n *Navigator) Bootstrapped() bool { return n.bootstrapped }
func (n *Navigator) HasSession() bool { return n.hasSession }

// ShowNav reports whether the bottom navigation is visible.
func (n *Navigator) ShowNav() bool {
	if !n.hasSession {
		return false
	}
	switch n.current {
	case ScreenOnboarding, ScreenAuth, ScreenAssistant:
		return false
	}
	return true
}

// Bootstrap completes the initial session check. Nothing is emitted before it.
func (n *Navigator) Bootstrap(hasSession bool) {
	if n.bootstrapped {
		return
	}
	n.bootstrapped = true
	n.hasSession = hasSession
	if hasSession {
		n.moveTo(ScreenDashboard, "bootstrap")
	}
}

func (n *Navigator) CompleteOnboarding() error {
	return n.leaveOnboarding("onboarding-complete")
}

func (n *Navigator) SkipOnboarding() error {
	return n.leaveOnboarding("onboarding-skip")
}

func (n *Navigator) leaveOnboarding(cause string) error {
	if !n.bootstrapped {
		return ErrNotBootstrapped
	}
	if n.current != ScreenOnboarding {
		return fmt.Errorf("%w: %s -> Auth", ErrInvalidTransition, n.current)
	}
	n.moveTo(ScreenAuth, cause)
	return nil
}

// HandleAuthEvent applies an auth collaborator event. Only explicit sign-in
// and sign-out move the screen; everything else only updates session state.
// Returns whether the screen changed.
func (n *Navigator) HandleAuthEvent(ev domain.AuthEvent) bool {
	if !n.bootstrapped {
		return false
	}
	switch ev.Kind {
	case domain.AuthSignedIn:
		n.hasSession = true
		if n.current == ScreenDashboard {
			return false
		}
		n.moveTo(ScreenDashboard, string(ev.Kind))
		return true
	case domain.AuthSignedOut:
		n.hasSession = false
		n.pendingChat = ""
		if n.current == ScreenOnboarding || n.current == ScreenAuth {
			return false
		}
		n.moveTo(ScreenAuth, string(ev.Kind))
		return true
	default:
		if ev.Session != nil {
			n.hasSession = true
		}
		return false
	}
}

// Open performs explicit user navigation from the dashboard, or between
// bottom-nav destinations while the nav is visible.
func (n *Navigator) Open(target Screen) error {
	if !n.bootstrapped {
		return ErrNotBootstrapped
	}
	if target == n.current {
		return nil
	}
	allowed := false
	switch n.current {
	case ScreenDashboard:
		allowed = target == ScreenAnalysis || target == ScreenAssistant || target == ScreenProfile
	case ScreenAnalysis, ScreenProfile:
		allowed = n.ShowNav() && (target == ScreenDashboard || target == ScreenAnalysis || target == ScreenProfile)
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, n.current, target)
	}
	n.moveTo(target, "open")
	return nil
}

// StartChat opens the assistant with a message to send once it is ready.
func (n *Navigator) StartChat(message string) error {
	if err := n.Open(ScreenAssistant); err != nil {
		return err
	}
	n.pendingChat = message
	return nil
}

// TakePendingMessage returns the pending chat message at most once.
func (n *Navigator) TakePendingMessage() (string, bool) {
	msg := n.pendingChat
	n.pendingChat = ""
	return msg, msg != ""
}

func (n *Navigator) Back() error {
	if !n.bootstrapped {
		return ErrNotBootstrapped
	}
	switch n.current {
	case ScreenAnalysis, ScreenAssistant, ScreenProfile:
		n.moveTo(ScreenDashboard, "back")
		return nil
	}
	return fmt.Errorf("%w: back from %s", ErrInvalidTransition, n.current)
}

// Subscription is returned by Subscribe and must be released with Unsubscribe.
type Subscription struct {
	once   sync.Once
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

func (n *Navigator) Subscribe(fn func(Transition)) *Subscription {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	return &Subscription{cancel: func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}}
}

func (n *Navigator) SubscriberCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (n *Navigator) moveTo(to Screen, cause string) {
	tr := Transition{From: n.current, To: to, Cause: cause}
	n.current = to

	n.mu.Lock()
	fns := make([]func(Transition), 0, len(n.subs))
	for i := 0; i < n.nextID; i++ {
		if fn, ok := n.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(tr)
	}
}
