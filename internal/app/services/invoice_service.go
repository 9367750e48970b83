package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/app/repositories"
	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

type feeStore interface {
	ListByPeriod(ctx context.Context, academicYear, term string) ([]models.StudentFee, error)
	ApplyDiscount(ctx context.Context, feeID int64, discount, balance decimal.Decimal) error
	StructureItems(ctx context.Context, feeStructureID int64) ([]models.FeeStructureItem, error)
}

type invoiceStore interface {
	ListByPeriod(ctx context.Context, academicYear, term string) ([]models.Invoice, error)
	BulkInsert(ctx context.Context, invoices []*models.Invoice) error
	InsertItems(ctx context.Context, items []models.InvoiceItem) error
	GetByStudentFee(ctx context.Context, studentFeeID int64) (*models.Invoice, error)
}

type aidComputer interface {
	ComputeAid(ctx context.Context, input ComputeAidInput) (decimal.Decimal, error)
}

// InvoiceRunSummary reports one invoice generation run
type InvoiceRunSummary struct {
	AcademicYear string          `json:"academicYear"`
	Term         string          `json:"term"`
	Created      int             `json:"created"`
	Skipped      int             `json:"skipped"`
	TotalBilled  decimal.Decimal `json:"totalBilled"`
}

// InvoiceService issues invoices for every student fee of a billing period
// that does not already carry one. Reruns are safe: already-invoiced fees
// are skipped.
type InvoiceService struct {
	fees     feeStore
	invoices invoiceStore
	aid      aidComputer
	logger   zerolog.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(fees feeStore, invoices invoiceStore, aid aidComputer, logger zerolog.Logger) *InvoiceService {
	return &InvoiceService{fees: fees, invoices: invoices, aid: aid, logger: logger}
}

// GenerateInvoices creates invoices for all uninvoiced student fees of the
// given period. Aid is computed per fee before insertion; the invoice
// balance is the fee total minus aid, floored at zero, and a fully covered
// fee yields an invoice already marked paid.
func (s *InvoiceService) GenerateInvoices(ctx context.Context, academicYear, term string) (*InvoiceRunSummary, error) {
	fees, err := s.fees.ListByPeriod(ctx, academicYear, term)
	if err != nil {
		return nil, fmt.Errorf("error listing student fees: %w", err)
	}
	existing, err := s.invoices.ListByPeriod(ctx, academicYear, term)
	if err != nil {
		return nil, fmt.Errorf("error listing existing invoices: %w", err)
	}
	invoiced := make(map[int64]struct{}, len(existing))
	for i := range existing {
		invoiced[existing[i].StudentFeeID] = struct{}{}
	}

	summary := &InvoiceRunSummary{AcademicYear: academicYear, Term: term, TotalBilled: decimal.Zero}
	drafts := make([]*models.Invoice, 0, len(fees))
	itemsByStructure := make(map[int64][]models.FeeStructureItem)

	for i := range fees {
		fee := &fees[i]
		if _, ok := invoiced[fee.ID]; ok {
			summary.Skipped++
			continue
		}

		items, ok := itemsByStructure[fee.FeeStructureID]
		if !ok {
			items, err = s.fees.StructureItems(ctx, fee.FeeStructureID)
			if err != nil {
				return nil, fmt.Errorf("error loading fee structure %d items: %w", fee.FeeStructureID, err)
			}
			itemsByStructure[fee.FeeStructureID] = items
		}

		aidAmount, err := s.aid.ComputeAid(ctx, ComputeAidInput{
			StudentID: fee.StudentID,
			TotalFees: fee.TotalAmount,
			Items:     items,
			AsOf:      fee.DueDate,
		})
		if err != nil {
			return nil, fmt.Errorf("error computing aid for student %s: %w", fee.StudentID, err)
		}

		balance := fee.TotalAmount.Sub(aidAmount)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
		if err := s.fees.ApplyDiscount(ctx, fee.ID, aidAmount, balance); err != nil {
			return nil, fmt.Errorf("error recording aid discount on fee %d: %w", fee.ID, err)
		}

		status := models.InvoiceUnpaid
		if balance.IsZero() {
			status = models.InvoicePaid
		}
		drafts = append(drafts, &models.Invoice{
			StudentFeeID: fee.ID,
			StudentID:    fee.StudentID,
			AcademicYear: academicYear,
			Term:         term,
			TotalAmount:  fee.TotalAmount,
			AmountPaid:   decimal.Zero,
			Balance:      balance,
			Status:       status,
		})
		summary.TotalBilled = summary.TotalBilled.Add(balance)
	}

	if len(drafts) == 0 {
		s.logger.Info().Str("academicYear", academicYear).Str("term", term).
			Int("skipped", summary.Skipped).Msg("No new invoices to generate")
		return summary, nil
	}

	if err := s.invoices.BulkInsert(ctx, drafts); err != nil {
		return nil, fmt.Errorf("error inserting invoices: %w", err)
	}
	summary.Created = len(drafts)

	// Snapshot the structure lines onto each invoice. A failure here leaves
	// the invoice valid but without line detail, so log and keep going.
	for _, inv := range drafts {
		structureID := feeStructureIDFor(fees, inv.StudentFeeID)
		items := itemsByStructure[structureID]
		if len(items) == 0 {
			continue
		}
		snapshot := make([]models.InvoiceItem, 0, len(items))
		for j := range items {
			snapshot = append(snapshot, models.InvoiceItem{
				InvoiceID: inv.ID,
				Name:      items[j].Name,
				Quantity:  items[j].Quantity,
				UnitPrice: items[j].UnitPrice,
				Total:     items[j].Total,
			})
		}
		if err := s.invoices.InsertItems(ctx, snapshot); err != nil {
			s.logger.Error().Int64("invoiceID", inv.ID).Err(err).Msg("Failed to snapshot invoice items")
		}
	}

	s.logger.Info().Str("academicYear", academicYear).Str("term", term).
		Int("created", summary.Created).Int("skipped", summary.Skipped).
		Str("totalBilled", summary.TotalBilled.StringFixed(2)).Msg("Invoice generation finished")
	return summary, nil
}

// InvoiceForFee returns the invoice issued against one student fee.
func (s *InvoiceService) InvoiceForFee(ctx context.Context, studentFeeID int64) (*models.Invoice, error) {
	invoice, err := s.invoices.GetByStudentFee(ctx, studentFeeID)
	if err != nil {
		if errors.Is(err, repositories.ErrInvoiceNotFound) {
			return nil, fmt.Errorf("%w: invoice for student fee %d", apperrors.ErrNotFound, studentFeeID)
		}
		return nil, err
	}
	return invoice, nil
}

func feeStructureIDFor(fees []models.StudentFee, feeID int64) int64 {
	for i := range fees {
		if fees[i].ID == feeID {
			return fees[i].FeeStructureID
		}
	}
	return 0
}
