package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/pkg/dberrors"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

var (
	ErrStudentNotFound = errors.New("student not found")
	ErrStudentNoExists = errors.New("student number already in use")
)

// StudentRepository handles student role-record operations
type StudentRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewStudentRepository creates a new StudentRepository
func NewStudentRepository(db *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a student role record keyed by the profile id
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	sql, args, err := r.sb.Insert("students").
		Columns("id", "student_no", "class_id", "admission_date").
		Values(student.ID, student.StudentNo, student.ClassID, student.AdmissionDate).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create student query: %w", err)
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "students_student_no_key") {
			logger.Warn().Str("studentNo", student.StudentNo).Msg("Attempted to create student with duplicate student number")
			return ErrStudentNoExists
		}
		logger.Error().Err(err).Str("studentID", student.ID).Msg("Error executing create student query")
		return fmt.Errorf("error creating student: %w", err)
	}

	return nil
}

// GetByID retrieves a student by profile id
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	sql, args, err := r.sb.Select("id", "student_no", "class_id", "admission_date").
		From("students").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build get student query: %w", err)
	}

	err = r.db.QueryRow(ctx, sql, args...).Scan(
		&student.ID, &student.StudentNo, &student.ClassID, &student.AdmissionDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("error retrieving student: %w", err)
	}

	return &student, nil
}

// IDByStudentNo resolves a student number to the profile id
func (r *StudentRepository) IDByStudentNo(ctx context.Context, studentNo string) (string, error) {
	var id string
	err := r.db.QueryRow(ctx, `SELECT id FROM students WHERE student_no = $1`, studentNo).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrStudentNotFound
		}
		return "", fmt.Errorf("error resolving student number: %w", err)
	}
	return id, nil
}

// StudentNoExists checks if a student number already exists
func (r *StudentRepository) StudentNoExists(ctx context.Context, studentNo string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM students WHERE student_no = $1)`,
		studentNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking student number existence: %w", err)
	}
	return exists, nil
}

// ListStudentNosIn returns the subset of the given student numbers that
// already exist, in one round trip
func (r *StudentRepository) ListStudentNosIn(ctx context.Context, studentNos []string) ([]string, error) {
	if len(studentNos) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT student_no FROM students WHERE student_no = ANY($1)`,
		studentNos)
	if err != nil {
		return nil, fmt.Errorf("error listing existing student numbers: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			return nil, fmt.Errorf("error scanning student number row: %w", err)
		}
		existing = append(existing, no)
	}
	return existing, rows.Err()
}

// Delete removes a student role record. Used by saga compensation.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting student: %w", err)
	}
	return nil
}

// lowercaseAll returns a lowercased copy of the given strings
func lowercaseAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
