package identity

import "sync"

// ID is an opaque identity supplied by the identity provider.
type ID string

// Provider exposes the current identity, or its absence, and notifies on
// identity changes (sign-in, sign-out, account switch).
type Provider interface {
	// Current returns the active identity and whether one is present.
	Current() (ID, bool)

	// OnChange registers a callback fired on every identity change. The
	// returned func removes the registration.
	OnChange(fn func(id ID, present bool)) (remove func())
}

// Static is a provider with a fixed, always-present identity.
type Static ID

func (s Static) Current() (ID, bool) { return ID(s), true }

func (s Static) OnChange(fn func(ID, bool)) func() { return func() {} }

// SessionProvider is a manually driven provider: callers sign an identity in
// and out and registered listeners observe each transition.
type SessionProvider struct {
	mu        sync.Mutex
	id        ID
	present   bool
	listeners map[int]func(ID, bool)
	next      int
}

func NewSessionProvider() *SessionProvider {
	return &SessionProvider{listeners: make(map[int]func(ID, bool))}
}

func (p *SessionProvider) Current() (ID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.id, p.present
}

func (p *SessionProvider) OnChange(fn func(ID, bool)) func() {
	p.mu.Lock()
	n := p.next
	p.next++
	p.listeners[n] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, n)
		p.mu.Unlock()
	}
}

// SignIn makes id the active identity and notifies listeners.
func (p *SessionProvider) SignIn(id ID) {
	p.mu.Lock()
	p.id = id
	p.present = true
	fns := p.snapshotListeners()
	p.mu.Unlock()

	for _, fn := range fns {
		fn(id, true)
	}
}

// SignOut clears the active identity and notifies listeners.
func (p *SessionProvider) SignOut() {
	p.mu.Lock()
	p.id = ""
	p.present = false
	fns := p.snapshotListeners()
	p.mu.Unlock()

	for _, fn := range fns {
		fn("", false)
	}
}

func (p *SessionProvider) snapshotListeners() []func(ID, bool) {
	fns := make([]func(ID, bool), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	return fns
}
