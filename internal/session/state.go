package session

// Kind enumerates the session lifecycle states.
type Kind int

const (
	Uninitialized Kind = iota
	Initializing
	Authenticated
	Unauthenticated
	Errored
)

func (k Kind) String() string {
	switch k {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session status is known.
func (k Kind) Terminal() bool {
	return k == Authenticated || k == Unauthenticated || k == Errored
}

// State is the single source of truth for "who is the current user".
// Session is set only when Kind is Authenticated; Reason only when Errored.
type State struct {
	Kind    Kind
	Session *Session
	Reason  string
}

func authenticated(s Session) State {
	return State{Kind: Authenticated, Session: &s}
}
