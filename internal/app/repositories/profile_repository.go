package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/pkg/dberrors"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmailExists     = errors.New("email already in use")
)

// ProfileRepository handles profile directory operations
type ProfileRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewProfileRepository creates a new ProfileRepository
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert inserts a profile keyed by its identity id, or updates the row if
// one already exists for that id. Provisioning triggers can pre-create the
// row, so this must stay an idempotent upsert rather than a plain insert.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO profiles (id, email, first_name, last_name, phone, role)
		VALUES ($1, lower($2), $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			role = EXCLUDED.role,
			updated_at = now()`,
		profile.ID, profile.Email, profile.FirstName, profile.LastName, profile.Phone, profile.Role)

	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "profiles_email_key") {
			logger.Warn().Str("email", profile.Email).Msg("Attempted to upsert profile with duplicate email")
			return ErrEmailExists
		}
		logger.Error().Err(err).Str("profileID", profile.ID).Msg("Error upserting profile")
		return fmt.Errorf("error upserting profile: %w", err)
	}

	return nil
}

// GetByID retrieves a profile by its identity id
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	sql, args, err := r.sb.Select("id", "email", "first_name", "last_name", "phone", "role", "created_at", "updated_at").
		From("profiles").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get profile query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&profile.ID, &profile.Email, &profile.FirstName, &profile.LastName,
		&profile.Phone, &profile.Role, &profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("error retrieving profile: %w", err)
	}

	return &profile, nil
}

// EmailExists checks case-insensitively whether an email is already taken
func (r *ProfileRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM profiles WHERE lower(email) = lower($1))`,
		email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking email existence: %w", err)
	}
	return exists, nil
}

// ListEmailsIn returns, lowercased, the subset of the given emails that
// already exist. One round trip regardless of candidate count; the bulk
// duplicate prescan depends on that.
func (r *ProfileRepository) ListEmailsIn(ctx context.Context, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT lower(email) FROM profiles WHERE lower(email) = ANY($1)`,
		lowercaseAll(emails))
	if err != nil {
		logger.Error().Err(err).Int("candidates", len(emails)).Msg("Error prescanning existing emails")
		return nil, fmt.Errorf("error listing existing emails: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("error scanning email row: %w", err)
		}
		existing = append(existing, email)
	}
	return existing, rows.Err()
}

// Delete removes a profile row. Used by saga compensation.
func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting profile: %w", err)
	}
	return nil
}
