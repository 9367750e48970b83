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
	ErrTeacherNotFound  = errors.New("teacher not found")
	ErrEmployeeNoExists = errors.New("employee number already in use")
)

// TeacherRepository handles teacher role-record and assignment operations
type TeacherRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewTeacherRepository creates a new TeacherRepository
func NewTeacherRepository(db *pgxpool.Pool) *TeacherRepository {
	return &TeacherRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a teacher role record keyed by the profile id
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	sql, args, err := r.sb.Insert("teachers").
		Columns("id", "employee_no", "department_id").
		Values(teacher.ID, teacher.EmployeeNo, teacher.DepartmentID).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build create teacher query: %w", err)
	}

	_, err = r.db.Exec(ctx, sql, args...)
	if err != nil {
		if dberrors.IsDuplicateConstraintError(err, "teachers_employee_no_key") {
			logger.Warn().Str("employeeNo", teacher.EmployeeNo).Msg("Attempted to create teacher with duplicate employee number")
			return ErrEmployeeNoExists
		}
		logger.Error().Err(err).Str("teacherID", teacher.ID).Msg("Error executing create teacher query")
		return fmt.Errorf("error creating teacher: %w", err)
	}

	return nil
}

// GetByID retrieves a teacher by profile id
func (r *TeacherRepository) GetByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	err := r.db.QueryRow(ctx, `
		SELECT id, employee_no, department_id FROM teachers WHERE id = $1`,
		id).Scan(&teacher.ID, &teacher.EmployeeNo, &teacher.DepartmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTeacherNotFound
		}
		return nil, fmt.Errorf("error retrieving teacher: %w", err)
	}
	return &teacher, nil
}

// EmployeeNoExists checks if an employee number already exists
func (r *TeacherRepository) EmployeeNoExists(ctx context.Context, employeeNo string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM teachers WHERE employee_no = $1)`,
		employeeNo).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error checking employee number existence: %w", err)
	}
	return exists, nil
}

// ListEmployeeNosIn returns the subset of the given employee numbers that
// already exist, in one round trip
func (r *TeacherRepository) ListEmployeeNosIn(ctx context.Context, employeeNos []string) ([]string, error) {
	if len(employeeNos) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT employee_no FROM teachers WHERE employee_no = ANY($1)`,
		employeeNos)
	if err != nil {
		return nil, fmt.Errorf("error listing existing employee numbers: %w", err)
	}
	defer rows.Close()

	var existing []string
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			return nil, fmt.Errorf("error scanning employee number row: %w", err)
		}
		existing = append(existing, no)
	}
	return existing, rows.Err()
}

// AddSubjects links a teacher to the given subjects
func (r *TeacherRepository) AddSubjects(ctx context.Context, teacherID string, subjectIDs []int64) error {
	if len(subjectIDs) == 0 {
		return nil
	}

	insert := r.sb.Insert("teacher_subjects").Columns("teacher_id", "subject_id")
	for _, subjectID := range subjectIDs {
		insert = insert.Values(teacherID, subjectID)
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build add subjects query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return fmt.Errorf("unknown subject in assignment: %w", err)
		}
		return fmt.Errorf("error adding teacher subjects: %w", err)
	}
	return nil
}

// AddClasses links a teacher to the given classes
func (r *TeacherRepository) AddClasses(ctx context.Context, teacherID string, classIDs []int64) error {
	if len(classIDs) == 0 {
		return nil
	}

	insert := r.sb.Insert("teacher_classes").Columns("teacher_id", "class_id")
	for _, classID := range classIDs {
		insert = insert.Values(teacherID, classID)
	}

	sql, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build add classes query: %w", err)
	}

	if _, err := r.db.Exec(ctx, sql, args...); err != nil {
		if dberrors.IsForeignKeyViolation(err) {
			return fmt.Errorf("unknown class in assignment: %w", err)
		}
		return fmt.Errorf("error adding teacher classes: %w", err)
	}
	return nil
}

// Delete removes a teacher role record and its assignment rows. Used by
// saga compensation; assignments go first so the role row never dangles.
func (r *TeacherRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM teacher_subjects WHERE teacher_id = $1`, id); err != nil {
		return fmt.Errorf("error deleting teacher subjects: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM teacher_classes WHERE teacher_id = $1`, id); err != nil {
		return fmt.Errorf("error deleting teacher classes: %w", err)
	}
	if _, err := r.db.Exec(ctx, `DELETE FROM teachers WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error deleting teacher: %w", err)
	}
	return nil
}
