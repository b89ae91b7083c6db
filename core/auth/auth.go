package auth

import "errors"

// ErrUnauthorized is returned whenever a required authorization check fails.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Authorizer answers whether a given identity authorized the current
// invocation. The hosting platform verifies signatures before an engine
// operation runs; engines only consult this capability check.
type Authorizer interface {
	Require(addr [20]byte) error
}

// Static is an Authorizer backed by a fixed set of identities. The host (or a
// test harness) registers every identity that signed the current call.
type Static struct {
	approved map[[20]byte]struct{}
}

// NewStatic builds an authorizer approving exactly the supplied identities.
func NewStatic(addrs ...[20]byte) *Static {
	approved := make(map[[20]byte]struct{}, len(addrs))
	for _, addr := range addrs {
		approved[addr] = struct{}{}
	}
	return &Static{approved: approved}
}

// Approve adds an identity to the approved set.
func (s *Static) Approve(addr [20]byte) {
	if s.approved == nil {
		s.approved = make(map[[20]byte]struct{})
	}
	s.approved[addr] = struct{}{}
}

// Revoke removes an identity from the approved set.
func (s *Static) Revoke(addr [20]byte) {
	delete(s.approved, addr)
}

// Require implements the Authorizer interface.
func (s *Static) Require(addr [20]byte) error {
	if s == nil {
		return ErrUnauthorized
	}
	if _, ok := s.approved[addr]; !ok {
		return ErrUnauthorized
	}
	return nil
}
