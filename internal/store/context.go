package store

import "context"

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *IntentStore) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the store carried by ctx, if any.
func FromContext(ctx context.Context) (*IntentStore, bool) {
	s, ok := ctx.Value(contextKey{}).(*IntentStore)
	return s, ok && s != nil
}

// MustFromContext is FromContext for code that only runs behind the session
// middleware. A missing store is a wiring bug and panics.
func MustFromContext(ctx context.Context) *IntentStore {
	s, ok := FromContext(ctx)
	if !ok {
		panic("store: no IntentStore in context; handler is not wrapped by the session middleware")
	}
	return s
}
