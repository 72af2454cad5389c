package resources

import (
	"context"
)

type LazyState int

const (
	NotRequested LazyState = iota
	Absent
	Present
)

func (s LazyState) String() string {
	switch s {
	case Absent:
		return "absent"
	case Present:
		return "present"
	default:
		return "not requested"
	}
}

// Lazy is an attribute that is only part of a payload when it has been
// explicitly asked for. The zero value is NotRequested.
type Lazy[T any] struct {
	state LazyState
	value T
}

func LazyValue[T any](value T) Lazy[T] {
	return Lazy[T]{state: Present, value: value}
}

func LazyAbsent[T any]() Lazy[T] {
	return Lazy[T]{state: Absent}
}

func (l Lazy[T]) State() LazyState {
	return l.state
}

// Value returns the value and true if it is present. It never triggers a
// fetch.
func (l Lazy[T]) Value() (T, bool) {
	return l.value, l.state == Present
}

func (l *Lazy[T]) Set(value T) {
	l.state = Present
	l.value = value
}

func (l *Lazy[T]) SetAbsent() {
	var zero T
	l.state = Absent
	l.value = zero
}

// Resolve returns the value, calling fetch first if it has not been
// requested yet. Only this attribute is replaced by what fetch returns.
// A fetch that still does not carry the attribute leaves it Absent.
func (l *Lazy[T]) Resolve(ctx context.Context, fetch func(context.Context) (Lazy[T], error)) (T, error) {
	if l.state == NotRequested {
		resolved, err := fetch(ctx)
		if err != nil {
			var zero T
			return zero, err
		}

		if resolved.state == NotRequested {
			resolved.state = Absent
		}

		*l = resolved
	}

	return l.value, nil
}
