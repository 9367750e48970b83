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

var ErrFeeNotFound = errors.New("student fee not found")

// FeeRepository handles student-fee ledger reads and the discount annotation
// written during invoice generation
type FeeRepository struct {
	db *pgxpool.Pool
	sb squirrel.StatementBuilderType
}

// NewFeeRepository creates a new FeeRepository
func NewFeeRepository(db *pgxpool.Pool) *FeeRepository {
	return &FeeRepository{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a student fee
func (r *FeeRepository) GetByID(ctx context.Context, id int64) (*models.StudentFee, error) {
	fees, err := r.queryFees(ctx, squirrel.Eq{"id": id})
	if err != nil {
		return nil, err
	}
	if len(fees) == 0 {
		return nil, ErrFeeNotFound
	}
	return &fees[0], nil
}

// ListByPeriod returns all student fees for one billing period
func (r *FeeRepository) ListByPeriod(ctx context.Context, academicYear, term string) ([]models.StudentFee, error) {
	return r.queryFees(ctx, squirrel.Eq{"academic_year": academicYear, "term": term})
}

func (r *FeeRepository) queryFees(ctx context.Context, where squirrel.Eq) ([]models.StudentFee, error) {
	sql, args, err := r.sb.Select(
		"id", "student_id", "fee_structure_id", "academic_year", "term",
		"total_amount", "discount_amount", "balance", "due_date", "created_at").
		From("student_fees").
		Where(where).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build fee query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying student fees: %w", err)
	}
	defer rows.Close()

	var fees []models.StudentFee
	for rows.Next() {
		var fee models.StudentFee
		if err := rows.Scan(
			&fee.ID, &fee.StudentID, &fee.FeeStructureID, &fee.AcademicYear, &fee.Term,
			&fee.TotalAmount, &fee.DiscountAmount, &fee.Balance, &fee.DueDate, &fee.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning fee row: %w", err)
		}
		fees = append(fees, fee)
	}
	return fees, rows.Err()
}

// ApplyDiscount writes the aid-adjusted amounts onto a fee record
func (r *FeeRepository) ApplyDiscount(ctx context.Context, feeID int64, discount, balance decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE student_fees SET discount_amount = $2, balance = $3 WHERE id = $1`,
		feeID, discount, balance)
	if err != nil {
		return fmt.Errorf("error applying fee discount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFeeNotFound
	}
	return nil
}

// StructureItems returns the billable line items of a fee structure
func (r *FeeRepository) StructureItems(ctx context.Context, feeStructureID int64) ([]models.FeeStructureItem, error) {
	sql, args, err := r.sb.Select("id", "fee_structure_id", "name", "quantity", "unit_price", "total").
		From("fee_structure_items").
		Where(squirrel.Eq{"fee_structure_id": feeStructureID}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build structure items query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying fee structure items: %w", err)
	}
	defer rows.Close()

	var items []models.FeeStructureItem
	for rows.Next() {
		var item models.FeeStructureItem
		if err := rows.Scan(&item.ID, &item.FeeStructureID, &item.Name, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return nil, fmt.Errorf("error scanning structure item row: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// DecrementBalance reduces a fee's outstanding balance inside an allocation
// transaction. The guard keeps the balance from going negative, which also
// enforces the per-fee allocation cap.
func (r *FeeRepository) DecrementBalance(ctx context.Context, tx pgx.Tx, feeID int64, amount decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE student_fees SET balance = balance - $2 WHERE id = $1 AND balance >= $2`,
		feeID, amount)
	if err != nil {
		return fmt.Errorf("error decrementing fee balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("fee %d has insufficient balance for %s", feeID, amount.StringFixed(2))
	}
	return nil
}

// ReduceBalanceClamped reduces a fee's balance, flooring at zero instead of
// rejecting. Manual allocations may intentionally exceed what a single fee
// still owes.
func (r *FeeRepository) ReduceBalanceClamped(ctx context.Context, tx pgx.Tx, feeID int64, amount decimal.Decimal) error {
	tag, err := tx.Exec(ctx, `
		UPDATE student_fees SET balance = GREATEST(balance - $2, 0) WHERE id = $1`,
		feeID, amount)
	if err != nil {
		return fmt.Errorf("error reducing fee balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFeeNotFound
	}
	return nil
}
