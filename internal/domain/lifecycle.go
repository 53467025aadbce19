package domain

// LifecycleObserver delivers host foreground/background/terminate transitions.
// OnTransition registers fn and returns a function that unregisters it.
type LifecycleObserver interface {
	OnTransition(fn func(to LifecycleState)) (cancel func())
}
