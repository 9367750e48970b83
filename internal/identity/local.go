package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/ssemanda/scholaris/internal/pkg/dberrors"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

// LocalProvisioner stores identities in the application database. Used by
// self-hosted deployments that run without the managed auth backend. The
// auth_accounts table mirrors the provider contract: unique email, hashed
// credential, metadata with the must-change-password flag.
type LocalProvisioner struct {
	db *pgxpool.Pool
}

// NewLocalProvisioner creates a LocalProvisioner on the given pool
func NewLocalProvisioner(db *pgxpool.Pool) *LocalProvisioner {
	return &LocalProvisioner{db: db}
}

// CreateIdentity inserts an auth account with a bcrypt-hashed credential
func (p *LocalProvisioner) CreateIdentity(ctx context.Context, email, password string, meta Metadata) (*Identity, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing credential: %w", err)
	}

	id := uuid.NewString()
	_, err = p.db.Exec(ctx, `
		INSERT INTO auth_accounts (id, email, password, role, full_name, must_change_password)
		VALUES ($1, lower($2), $3, $4, $5, $6)`,
		id, email, string(hashed), meta.Role, meta.FullName, meta.MustChangePassword)
	if err != nil {
		if dberrors.IsUniqueViolation(err) {
			return nil, ErrEmailConflict
		}
		return nil, fmt.Errorf("error creating auth account: %w", err)
	}

	logger.Info().Str("identityID", id).Msg("Local identity created")
	return &Identity{ID: id, Email: email}, nil
}

// DeleteIdentity removes an auth account
func (p *LocalProvisioner) DeleteIdentity(ctx context.Context, id string) error {
	tag, err := p.db.Exec(ctx, `DELETE FROM auth_accounts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("error deleting auth account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIdentityNotFound
	}
	return nil
}
