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
	ErrGuardianNotFound  = errors.New("guardian not found")
	ErrNationalIDExists  = errors.New("national ID already in use")
	ErrUnknownLinkTarget = errors.New("guardian link references unknown student")
)

// GuardianRepository handles guardian role-record and link operations
type GuardianRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewGuardianRepository creates a new GuardianRepository
func NewGuardianRepository(db *pgxpool.Pool) *GuardianRepository {
	return &GuardianRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a guardian role record keyed by the profile id
func (r *GuardianRepository) Create(ctx context.Context, guardian *models.Guardian) error {
	sql, args, err := r.sb.Insert("guardians").
		Columns("id", "national_id", "occupation").
		Values(guardian.ID, guardian.NationalID, guardian.Occupation).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create guardian query: %w", err)
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "guardians_national_id_key") {
			logger.Warn().Str("nationalID", guardian.NationalID).Msg("Attempted to create guardian with duplicate national ID")
			return ErrNationalIDExists
		}
		logger.Error().Err(err).Str("guardianID", guardian.ID).Msg("Error executing create guardian query")
		return fmt.Errorf("error creating guardian: %w", err)
	}

	return nil
}

// GetByID retrieves a guardian by profile id
func (r *GuardianRepository) GetByID(ctx context.Context, id string) (*models.Guardian, error) {
	var guardian models.Guardian
	err := r.db.QueryRow(ctx, `
		SELECT id, national_id, occupation FROM guardians WHERE id = $1`,
		id).Scan(&guardian.ID, &guardian.NationalID, &guardian.Occupation)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGuardianNotFound
		}
		return nil, fmt.Errorf("error retrieving guardian: %w", err)
	}
	return &guardian, nil
}

// NationalIDExists checks if a national ID already exists
func (r *GuardianRepository) NationalIDExists(ctx context.Context, nationalID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM guardians WHERE national_id = $1)`,
		nationalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking national ID existence: %w", err)
	}
	return exists, nil
}

// ListNationalIDsIn returns the subset of the given national IDs that
// already exist, in one round trip
func (r *GuardianRepository) ListNationalIDsIn(ctx context.Context, nationalIDs []string) ([]string, error) {
	if len(nationalIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT national_id FROM guardians WHERE national_id = ANY($1)`,
		nationalIDs)
	if err != nil {
		return nil, fmt.Errorf("error listing existing national IDs: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning national ID row: %w", err)
		}
		existing = append(existing, id)
	}
	return existing, rows.Err()
}

// LinkStudents creates the guardian-student join rows with their flags
func (r *GuardianRepository) LinkStudents(ctx context.Context, links []models.StudentGuardian) error {
	if len(links) == 0 {
		return nil
	}

	insert := r.sb.Insert("student_guardians").
		Columns("student_id", "guardian_id", "relationship", "is_primary", "can_pickup")
	for _, link := range links {
		insert = insert.Values(link.StudentID, link.GuardianID, link.Relationship, link.IsPrimary, link.CanPickup)
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build link students query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return ErrUnknownLinkTarget
		}
		return fmt.Errorf("error linking guardian students: %w", err)
	}
	return nil
}

// Delete removes a guardian role record and its links. Used by saga
// compensation.
func (r *GuardianRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM student_guardians WHERE guardian_id = $1`, id); err != nil {
		return fmt.Errorf("error deleting guardian links: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM guardians WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error deleting guardian: %w", err)
	}
	return nil
}
