package auth

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNotAuthorized is returned when the named principal has not authorized the
// current invocation.
var ErrNotAuthorized = errors.New("auth: principal has not authorized this call")

// Authorizer is the identity/signature capability required by the engines.
// Every mutating engine method calls RequireAuthorization exactly once, at the
// top, with the principal whose standing the call depends on. Implementations
// are expected to fail the whole call when authorization is absent.
type Authorizer interface {
	RequireAuthorization(principal [20]byte) error
}

// CallScope is an Authorizer carrying the set of principals that signed off on
// the current invocation. It stands in for the signature-verification
// substrate, which lives outside this module.
type CallScope struct {
	authorized map[[20]byte]struct{}
}

// NewCallScope builds a scope authorizing the supplied principals.
func NewCallScope(principals ...[20]byte) *CallScope {
	scope := &CallScope{authorized: make(map[[20]byte]struct{}, len(principals))}
	for _, p := range principals {
		scope.authorized[p] = struct{}{}
	}
	return scope
}

// Grant adds a principal to the scope.
func (s *CallScope) Grant(principal [20]byte) {
	if s.authorized == nil {
		s.authorized = make(map[[20]byte]struct{})
	}
	s.authorized[principal] = struct{}{}
}

// RequireAuthorization implements Authorizer.
func (s *CallScope) RequireAuthorization(principal [20]byte) error {
	if s == nil {
		return ErrNotAuthorized
	}
	if _, ok := s.authorized[principal]; !ok {
		return fmt.Errorf("%w: %s", ErrNotAuthorized, hex.EncodeToString(principal[:]))
	}
	return nil
}

// AllowAll authorizes every principal. Intended for wiring paths where the
// transport layer has already verified signatures.
type AllowAll struct{}

// RequireAuthorization implements Authorizer.
func (AllowAll) RequireAuthorization([20]byte) error { return nil }
