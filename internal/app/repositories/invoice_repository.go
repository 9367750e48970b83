package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

// ErrInvoiceNotFound is returned when an invoice does not exist
var ErrInvoiceNotFound = errors.New("invoice not found")

// InvoiceRepository handles invoice and invoice-item persistence. Invoice
// numbers come from a database sequence so they stay globally unique and
// traceable across application restarts.
type InvoiceRepository struct {
	db     *pgxpool.Pool
	sb     squirrel.StatementBuilderType
	prefix string
}

// NewInvoiceRepository creates a new InvoiceRepository
func NewInvoiceRepository(db *pgxpool.Pool, prefix string) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		sb:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		prefix: prefix,
	}
}

// ListByPeriod returns all invoices for one billing period
func (r *InvoiceRepository) ListByPeriod(ctx context.Context, academicYear, term string) ([]models.Invoice, error) {
	sql, args, err := r.sb.Select(
		"id", "invoice_number", "student_fee_id", "student_id", "academic_year",
		"term", "total_amount", "amount_paid", "balance", "status", "issued_at").
		From("invoices").
		Where(squirrel.Eq{"academic_year": academicYear, "term": term}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying invoices: %w", err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		var inv models.Invoice
		if err := rows.Scan(
			&inv.ID, &inv.InvoiceNumber, &inv.StudentFeeID, &inv.StudentID, &inv.AcademicYear,
			&inv.Term, &inv.TotalAmount, &inv.AmountPaid, &inv.Balance, &inv.Status, &inv.IssuedAt); err != nil {
			return nil, fmt.Errorf("error scanning invoice row: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// GetByStudentFee returns the invoice issued against one student fee, or
// ErrInvoiceNotFound when the fee has not been invoiced yet
func (r *InvoiceRepository) GetByStudentFee(ctx context.Context, studentFeeID int64) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.QueryRow(ctx, `
		SELECT id, invoice_number, student_fee_id, student_id, academic_year,
			term, total_amount, amount_paid, balance, status, issued_at
		FROM invoices WHERE student_fee_id = $1`,
		studentFeeID).Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.StudentFeeID, &inv.StudentID, &inv.AcademicYear,
		&inv.Term, &inv.TotalAmount, &inv.AmountPaid, &inv.Balance, &inv.Status, &inv.IssuedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("error retrieving invoice: %w", err)
	}
	return &inv, nil
}

// BulkInsert persists invoice drafts, assigning each a sequence-backed
// invoice number, and fills in the generated ids and numbers.
func (r *InvoiceRepository) BulkInsert(ctx context.Context, invoices []*models.Invoice) error {
	for _, inv := range invoices {
		err := r.db.QueryRow(ctx, `
			INSERT INTO invoices (invoice_number, student_fee_id, student_id, academic_year, term,
				total_amount, amount_paid, balance, status)
			VALUES ($1 || '-' || $2 || '-' || lpad(nextval('invoice_number_seq')::text, 6, '0'),
				$3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, invoice_number, issued_at`,
			r.prefix, inv.AcademicYear, inv.StudentFeeID, inv.StudentID, inv.AcademicYear, inv.Term,
			inv.TotalAmount, inv.AmountPaid, inv.Balance, inv.Status).
			Scan(&inv.ID, &inv.InvoiceNumber, &inv.IssuedAt)
		if err != nil {
			return fmt.Errorf("error inserting invoice for fee %d: %w", inv.StudentFeeID, err)
		}
	}
	return nil
}

// InsertItems snapshots line items for one invoice in a single batch
func (r *InvoiceRepository) InsertItems(ctx context.Context, items []models.InvoiceItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO invoice_items (invoice_id, name, quantity, unit_price, total)
			VALUES ($1, $2, $3, $4, $5)`,
			item.InvoiceID, item.Name, item.Quantity, item.UnitPrice, item.Total)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("error inserting invoice items: %w", err)
		}
	}
	return nil
}

// ListItems returns the line items of one invoice
func (r *InvoiceRepository) ListItems(ctx context.Context, invoiceID int64) ([]models.InvoiceItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, name, quantity, unit_price, total
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id ASC`,
		invoiceID)
	if err != nil {
		return nil, fmt.Errorf("error querying invoice items: %w", err)
	}
	defer rows.Close()

	var items []models.InvoiceItem
	for rows.Next() {
		var item models.InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Name, &item.Quantity, &item.UnitPrice, &item.Total); err != nil {
			return nil, fmt.Errorf("error scanning invoice item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Int64("invoiceID", invoiceID).Msg("Error iterating invoice items")
		return nil, err
	}
	return items, nil
}
