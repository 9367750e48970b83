// Package identity provisions and deletes authentication identities for the
// registration saga. The rest of auth (sessions, tokens, password reset) is
// handled elsewhere; the saga consumes exactly create and delete.
package identity

import (
	"context"
	"errors"
)

var (
	// ErrEmailConflict is returned when the provider rejects a create
	// because the email is already registered.
	ErrEmailConflict = errors.New("identity email already registered")

	// ErrIdentityNotFound is returned when deleting an unknown identity.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Metadata is attached to a new identity at creation time
type Metadata struct {
	Role               string `json:"role"`
	FullName           string `json:"full_name"`
	MustChangePassword bool   `json:"must_change_password"`
}

// Identity is the provider-side account record the saga cares about
type Identity struct {
	ID    string
	Email string
}

// Provisioner creates and deletes authentication identities. Both calls are
// blocking network operations with no built-in retry; callers make one
// logical attempt per saga step and compensate on failure.
type Provisioner interface {
	// CreateIdentity registers an email with the given credential and
	// metadata and returns the provider-assigned id.
	CreateIdentity(ctx context.Context, email, password string, meta Metadata) (*Identity, error)

	// DeleteIdentity removes an identity. Used only for saga compensation;
	// callers log failures instead of propagating them.
	DeleteIdentity(ctx context.Context, id string) error
}
