package domain

// State is the session lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateInitialized
	StateActivating
	StateActivated
	StateDeactivating
	StateDeactivated
)

var stateNames = [...]string{"empty", "initialized", "activating", "activated", "deactivating", "deactivated"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// CanInitialize reports whether Initialize is legal from s.
func (s State) CanInitialize() bool {
	return s == StateEmpty || s == StateInitialized || s == StateDeactivated
}

// CanActivate reports whether Activate is legal from s.
func (s State) CanActivate() bool {
	return s == StateInitialized || s == StateDeactivated || s == StateActivated || s == StateActivating
}

// CanDeactivate reports whether Deactivate is legal from s.
func (s State) CanDeactivate() bool {
	return s == StateActivated || s == StateDeactivating || s == StateDeactivated
}

// LifecycleState is the host application's visibility as observed by the host.
type LifecycleState string

const (
	LifecycleOnscreen   LifecycleState = "onscreen"
	LifecycleBackground LifecycleState = "background"
	LifecycleClosed     LifecycleState = "closed"
)

// Valid reports whether l is one of the known lifecycle states.
func (l LifecycleState) Valid() bool {
	switch l {
	case LifecycleOnscreen, LifecycleBackground, LifecycleClosed:
		return true
	}
	return false
}

// Active reports whether the application is in the foreground.
func (l LifecycleState) Active() bool {
	return l == LifecycleOnscreen
}
