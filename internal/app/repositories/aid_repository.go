package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

var ErrAidNotFound = errors.New("financial aid award not found")

// AidRepository handles student financial aid awards
type AidRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewAidRepository creates a new AidRepository
func NewAidRepository(db *pgxpool.Pool) *AidRepository {
	return &AidRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

const aidColumns = `id, student_id, sponsor_id, coverage_type, coverage_value, coverage_items,
	valid_from, valid_until, status, calculated_aid_amount, created_at`

// ListQualifying returns the student's awards that count toward coverage for
// a billing period anchored at asOf: status active or approved, and asOf
// inside the validity window.
func (r *AidRepository) ListQualifying(ctx context.Context, studentID string, asOf time.Time) ([]models.StudentFinancialAid, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+aidColumns+`
		FROM student_financial_aid
		WHERE student_id = $1
		  AND status = ANY($2)
		  AND valid_from <= $3 AND valid_until >= $3
		ORDER BY created_at ASC, id ASC`,
		studentID, []string{string(models.AidActive), string(models.AidApproved)}, asOf)
	if err != nil {
		return nil, fmt.Errorf("error querying qualifying aid: %w", err)
	}
	defer rows.Close()

	return scanAidRows(rows)
}

// UpdateCalculatedAmount writes an award's recomputed share. Plain
// read-then-write with no version guard; concurrent invoice runs for
// overlapping periods race here and the last writer wins (accepted).
func (r *AidRepository) UpdateCalculatedAmount(ctx context.Context, aidID int64, amount decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE student_financial_aid SET calculated_aid_amount = $2 WHERE id = $1`,
		aidID, amount)
	if err != nil {
		return fmt.Errorf("error updating calculated aid amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAidNotFound
	}
	return nil
}

// ListAllocatableBySponsor returns the sponsor's qualifying awards joined to
// the outstanding fee balance of each aided student, ordered by award
// creation time. The explicit ordering makes greedy allocation
// deterministic across runs.
func (r *AidRepository) ListAllocatableBySponsor(ctx context.Context, sponsorID int64, asOf time.Time) ([]models.SponsorAidBalance, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.student_id, a.sponsor_id, a.coverage_type, a.coverage_value, a.coverage_items,
			a.valid_from, a.valid_until, a.status, a.calculated_aid_amount, a.created_at,
			f.id, f.balance
		FROM student_financial_aid a
		JOIN student_fees f ON f.student_id = a.student_id AND f.balance > 0
		WHERE a.sponsor_id = $1
		  AND a.status = ANY($2)
		  AND a.valid_until >= $3
		ORDER BY a.created_at ASC, a.id ASC, f.due_date ASC, f.id ASC`,
		sponsorID, []string{string(models.AidActive), string(models.AidApproved)}, asOf)
	if err != nil {
		logger.Error().Err(err).Int64("sponsorID", sponsorID).Msg("Error querying allocatable aid")
		return nil, fmt.Errorf("error querying allocatable aid: %w", err)
	}
	defer rows.Close()

	var results []models.SponsorAidBalance
	for rows.Next() {
		var row models.SponsorAidBalance
		if err := rows.Scan(
			&row.Aid.ID, &row.Aid.StudentID, &row.Aid.SponsorID, &row.Aid.CoverageType,
			&row.Aid.CoverageValue, &row.Aid.CoverageItems, &row.Aid.ValidFrom, &row.Aid.ValidUntil,
			&row.Aid.Status, &row.Aid.CalculatedAidAmount, &row.Aid.CreatedAt,
			&row.FeeID, &row.FeeBalance); err != nil {
			return nil, fmt.Errorf("error scanning allocatable aid row: %w", err)
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

type aidRowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAidRows(rows aidRowScanner) ([]models.StudentFinancialAid, error) {
	var awards []models.StudentFinancialAid
	for rows.Next() {
		var aid models.StudentFinancialAid
		if err := rows.Scan(
			&aid.ID, &aid.StudentID, &aid.SponsorID, &aid.CoverageType, &aid.CoverageValue,
			&aid.CoverageItems, &aid.ValidFrom, &aid.ValidUntil, &aid.Status,
			&aid.CalculatedAidAmount, &aid.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning aid row: %w", err)
		}
		awards = append(awards, aid)
	}
	return awards, rows.Err()
}
