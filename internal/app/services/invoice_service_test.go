package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/app/repositories"
	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

type fakeFees struct {
	fees      []models.StudentFee
	items     map[int64][]models.FeeStructureItem
	discounts map[int64]decimal.Decimal
}

func newFakeFees() *fakeFees {
	return &fakeFees{items: map[int64][]models.FeeStructureItem{}, discounts: map[int64]decimal.Decimal{}}
}

func (f *fakeFees) ListByPeriod(_ context.Context, academicYear, term string) ([]models.StudentFee, error) {
	var out []models.StudentFee
	for _, fee := range f.fees {
		if fee.AcademicYear == academicYear && fee.Term == term {
			out = append(out, fee)
		}
	}
	return out, nil
}

func (f *fakeFees) ApplyDiscount(_ context.Context, feeID int64, discount, balance decimal.Decimal) error {
	f.discounts[feeID] = discount
	for i := range f.fees {
		if f.fees[i].ID == feeID {
			f.fees[i].DiscountAmount = discount
			f.fees[i].Balance = balance
		}
	}
	return nil
}

func (f *fakeFees) StructureItems(_ context.Context, feeStructureID int64) ([]models.FeeStructureItem, error) {
	return f.items[feeStructureID], nil
}

type fakeInvoices struct {
	nextID   int64
	invoices []models.Invoice
	items    map[int64][]models.InvoiceItem
	itemsErr error
}

func newFakeInvoices() *fakeInvoices {
	return &fakeInvoices{items: map[int64][]models.InvoiceItem{}}
}

func (f *fakeInvoices) ListByPeriod(_ context.Context, academicYear, term string) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range f.invoices {
		if inv.AcademicYear == academicYear && inv.Term == term {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvoices) BulkInsert(_ context.Context, invoices []*models.Invoice) error {
	for _, inv := range invoices {
		f.nextID++
		inv.ID = f.nextID
		inv.IssuedAt = time.Now()
		f.invoices = append(f.invoices, *inv)
	}
	return nil
}

func (f *fakeInvoices) InsertItems(_ context.Context, items []models.InvoiceItem) error {
	if f.itemsErr != nil {
		return f.itemsErr
	}
	for _, item := range items {
		f.items[item.InvoiceID] = append(f.items[item.InvoiceID], item)
	}
	return nil
}

func (f *fakeInvoices) GetByStudentFee(_ context.Context, studentFeeID int64) (*models.Invoice, error) {
	for i := range f.invoices {
		if f.invoices[i].StudentFeeID == studentFeeID {
			copied := f.invoices[i]
			return &copied, nil
		}
	}
	return nil, repositories.ErrInvoiceNotFound
}

func newInvoiceFixture() (*fakeFees, *fakeInvoices, *fakeAids, *InvoiceService) {
	fees := newFakeFees()
	invoices := newFakeInvoices()
	aids := newFakeAids()
	calc := NewAidCalculator(aids, zerolog.Nop())
	svc := NewInvoiceService(fees, invoices, calc, zerolog.Nop())
	return fees, invoices, aids, svc
}

func studentFee(id int64, studentID string, total int64) models.StudentFee {
	return models.StudentFee{
		ID:             id,
		StudentID:      studentID,
		FeeStructureID: 1,
		AcademicYear:   "2026",
		Term:           "1",
		TotalAmount:    decimal.NewFromInt(total),
		Balance:        decimal.NewFromInt(total),
		DueDate:        termStart.AddDate(0, 1, 0),
	}
}

func TestGenerateInvoices(t *testing.T) {
	fees, invoices, _, svc := newInvoiceFixture()
	fees.fees = []models.StudentFee{
		studentFee(1, "student-1", 500000),
		studentFee(2, "student-2", 450000),
	}
	fees.items[1] = []models.FeeStructureItem{
		{Name: "Tuition", Quantity: 1, UnitPrice: decimal.NewFromInt(300000), Total: decimal.NewFromInt(300000)},
		{Name: "Boarding", Quantity: 1, UnitPrice: decimal.NewFromInt(200000), Total: decimal.NewFromInt(200000)},
	}

	summary, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Created)
	assert.Equal(t, 0, summary.Skipped)
	require.Len(t, invoices.invoices, 2)

	inv := invoices.invoices[0]
	assert.Equal(t, models.InvoiceUnpaid, inv.Status)
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(500000)))
	assert.Len(t, invoices.items[inv.ID], 2, "structure lines snapshotted onto the invoice")
}

func TestGenerateInvoicesIdempotentRerun(t *testing.T) {
	fees, invoices, _, svc := newInvoiceFixture()
	fees.fees = []models.StudentFee{studentFee(1, "student-1", 500000)}

	first, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	second, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 1, second.Skipped)
	assert.Len(t, invoices.invoices, 1, "rerunning must not duplicate invoices")
}

func TestGenerateInvoicesAppliesAid(t *testing.T) {
	fees, invoices, aids, svc := newInvoiceFixture()
	fees.fees = []models.StudentFee{studentFee(1, "student-1", 500000)}
	aids.awards["student-1"] = []models.StudentFinancialAid{
		award(1, models.CoveragePercentage, 40, models.AidActive),
	}

	summary, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Created)

	inv := invoices.invoices[0]
	assert.True(t, inv.TotalAmount.Equal(decimal.NewFromInt(500000)), "invoice keeps the gross amount")
	assert.True(t, inv.Balance.Equal(decimal.NewFromInt(300000)), "balance is net of aid, got %s", inv.Balance)
	assert.True(t, fees.discounts[1].Equal(decimal.NewFromInt(200000)), "aid recorded on the fee as discount")
}

func TestGenerateInvoicesFullAidMarksPaid(t *testing.T) {
	fees, invoices, aids, svc := newInvoiceFixture()
	fees.fees = []models.StudentFee{studentFee(1, "student-1", 500000)}
	aids.awards["student-1"] = []models.StudentFinancialAid{
		award(1, models.CoverageFull, 0, models.AidActive),
	}

	_, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)

	inv := invoices.invoices[0]
	assert.Equal(t, models.InvoicePaid, inv.Status)
	assert.True(t, inv.Balance.IsZero())
}

func TestGenerateInvoicesItemSnapshotFailureNonFatal(t *testing.T) {
	fees, invoices, _, svc := newInvoiceFixture()
	fees.fees = []models.StudentFee{studentFee(1, "student-1", 500000)}
	fees.items[1] = []models.FeeStructureItem{
		{Name: "Tuition", Quantity: 1, UnitPrice: decimal.NewFromInt(500000), Total: decimal.NewFromInt(500000)},
	}
	invoices.itemsErr = errors.New("items table unavailable")

	summary, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err, "a failed item snapshot must not fail the run")
	assert.Equal(t, 1, summary.Created)
	require.Len(t, invoices.invoices, 1)
	assert.Empty(t, invoices.items[invoices.invoices[0].ID])
}

func TestGenerateInvoicesOtherPeriodUntouched(t *testing.T) {
	fees, invoices, _, svc := newInvoiceFixture()
	other := studentFee(1, "student-1", 500000)
	other.Term = "2"
	fees.fees = []models.StudentFee{other}

	summary, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Created)
	assert.Empty(t, invoices.invoices)
}

func TestInvoiceForFee(t *testing.T) {
	fees, _, _, svc := newInvoiceFixture()
	fees.fees = []models.StudentFee{studentFee(1, "student-1", 500000)}

	_, err := svc.GenerateInvoices(context.Background(), "2026", "1")
	require.NoError(t, err)

	invoice, err := svc.InvoiceForFee(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "student-1", invoice.StudentID)
	assert.True(t, invoice.TotalAmount.Equal(decimal.NewFromInt(500000)))

	_, err = svc.InvoiceForFee(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
