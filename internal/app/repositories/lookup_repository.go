package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrClassNotFound      = errors.New("class not found")
	ErrDepartmentNotFound = errors.New("department not found")
	ErrSubjectNotFound    = errors.New("subject not found")
)

// LookupRepository resolves human-entered reference names (class, department,
// subject) to ids with a definite cardinality: one name resolves to exactly
// one id or the lookup fails, never to an ambiguous shape.
type LookupRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewLookupRepository creates a new LookupRepository
func NewLookupRepository(db *pgxpool.Pool) *LookupRepository {
	return &LookupRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ClassIDByName resolves a class name to its id
func (r *LookupRepository) ClassIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM classes WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %q", ErrClassNotFound, name)
		}
		return 0, fmt.Errorf("error resolving class name: %w", err)
	}
	return id, nil
}

// DepartmentIDByName resolves a department name to its id
func (r *LookupRepository) DepartmentIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM departments WHERE lower(name) = lower($1)`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %q", ErrDepartmentNotFound, name)
		}
		return 0, fmt.Errorf("error resolving department name: %w", err)
	}
	return id, nil
}

// SubjectIDsByNames resolves subject names to ids. Every name must resolve;
// a single unknown name fails the whole lookup so callers never get a
// partial assignment.
func (r *LookupRepository) SubjectIDsByNames(ctx context.Context, names []string) ([]int64, error) {
	return r.idsByNames(ctx, "subjects", names, ErrSubjectNotFound)
}

// ClassIDsByNames resolves class names to ids with the same all-or-nothing
// contract as SubjectIDsByNames
func (r *LookupRepository) ClassIDsByNames(ctx context.Context, names []string) ([]int64, error) {
	return r.idsByNames(ctx, "classes", names, ErrClassNotFound)
}

func (r *LookupRepository) idsByNames(ctx context.Context, table string, names []string, notFound error) ([]int64, error) {
	if len(names) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT lower(name), id FROM %s WHERE lower(name) = ANY($1)`, table),
		lowercaseAll(names))
	if err != nil {
		return nil, fmt.Errorf("error resolving names from %s: %w", table, err)
	}
	defer rows.Close()

	byName := make(map[string]int64, len(names))
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, fmt.Errorf("error scanning name row: %w", err)
		}
		byName[name] = id
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(names))
	for _, name := range lowercaseAll(names) {
		id, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", notFound, name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
