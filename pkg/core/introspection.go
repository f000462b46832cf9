package core

import (
	"github.com/aretw0/introspection"
)

// ComponentName reports the introspection component type of v, or fallback.
func ComponentName(v any, fallback string) string {
	if u, ok := v.(interface{ Unwrap() Store }); ok {
		v = u.Unwrap()
	}
	if comp, ok := v.(introspection.Component); ok {
		return comp.ComponentType()
	}
	return fallback
}

// StateOf returns the introspection state of v, if it exposes one.
func StateOf(v any) any {
	if u, ok := v.(interface{ Unwrap() Store }); ok {
		v = u.Unwrap()
	}
	if in, ok := v.(introspection.Introspectable); ok {
		return in.State()
	}
	return nil
}
