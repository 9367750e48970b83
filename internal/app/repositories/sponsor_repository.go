package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ssemanda/scholaris/internal/app/models"
)

var (
	ErrPaymentNotFound         = errors.New("sponsor payment not found")
	ErrInsufficientUnallocated = errors.New("allocation exceeds payment's unallocated amount")
)

// SponsorRepository handles sponsor payments and their allocations
type SponsorRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewSponsorRepository creates a new SponsorRepository
func NewSponsorRepository(db *pgxpool.Pool) *SponsorRepository {
	return &SponsorRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetPayment retrieves a sponsor payment
func (r *SponsorRepository) GetPayment(ctx context.Context, id int64) (*models.SponsorPayment, error) {
	var payment models.SponsorPayment
	err := r.db.QueryRow(ctx, `
		SELECT id, sponsor_id, amount, unallocated_amount, reference, payment_date, created_at
		FROM sponsor_payments WHERE id = $1`,
		id).Scan(&payment.ID, &payment.SponsorID, &payment.Amount, &payment.UnallocatedAmount,
		&payment.Reference, &payment.PaymentDate, &payment.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("error retrieving sponsor payment: %w", err)
	}
	return &payment, nil
}

// InsertAllocation records one allocation row inside a transaction
func (r *SponsorRepository) InsertAllocation(ctx context.Context, tx pgx.Tx, alloc *models.SponsorPaymentAllocation) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO sponsor_payment_allocations (sponsor_payment_id, student_id, student_fee_id, allocated_amount)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		alloc.SponsorPaymentID, alloc.StudentID, alloc.StudentFeeID, alloc.AllocatedAmount).
		Scan(&alloc.ID, &alloc.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting allocation: %w", err)
	}
	return nil
}

// DecrementUnallocated reduces a payment's unallocated amount inside a
// transaction. The conditional update is what keeps the sum of allocations
// from exceeding the payment amount.
func (r *SponsorRepository) DecrementUnallocated(ctx context.Context, tx pgx.Tx, paymentID int64, amount decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE sponsor_payments
		SET unallocated_amount = unallocated_amount - $2
		WHERE id = $1 AND unallocated_amount >= $2`,
		paymentID, amount)
	if err != nil {
		return fmt.Errorf("error decrementing unallocated amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientUnallocated
	}
	return nil
}

// ListAllocations returns all allocations recorded against a payment
func (r *SponsorRepository) ListAllocations(ctx context.Context, paymentID int64) ([]models.SponsorPaymentAllocation, error) {
	sql, args, err := r.sb.Select("id", "sponsor_payment_id", "student_id", "student_fee_id", "allocated_amount", "created_at").
		From("sponsor_payment_allocations").
		Where(squirrel.Eq{"sponsor_payment_id": paymentID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build allocations query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying allocations: %w", err)
	}
	defer rows.Close()

	var allocations []models.SponsorPaymentAllocation
	for rows.Next() {
		var alloc models.SponsorPaymentAllocation
		if err := rows.Scan(&alloc.ID, &alloc.SponsorPaymentID, &alloc.StudentID,
			&alloc.StudentFeeID, &alloc.AllocatedAmount, &alloc.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning allocation row: %w", err)
		}
		allocations = append(allocations, alloc)
	}
	return allocations, rows.Err()
}
