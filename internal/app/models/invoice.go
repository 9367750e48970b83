package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus tracks how much of an invoice has been settled
type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "unpaid"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// Invoice defines one bill issued against a student fee. At most one invoice
// exists per student fee; the generator enforces this with an existence
// check, not a database constraint.
type Invoice struct {
	ID            int64           `json:"id" db:"id"`
	InvoiceNumber string          `json:"invoiceNumber" db:"invoice_number"`
	StudentFeeID  int64           `json:"studentFeeId" db:"student_fee_id"`
	StudentID     string          `json:"studentId" db:"student_id"`
	AcademicYear  string          `json:"academicYear" db:"academic_year"`
	Term          string          `json:"term" db:"term"`
	TotalAmount   decimal.Decimal `json:"totalAmount" db:"total_amount"`
	AmountPaid    decimal.Decimal `json:"amountPaid" db:"amount_paid"`
	Balance       decimal.Decimal `json:"balance" db:"balance"`
	Status        InvoiceStatus   `json:"status" db:"status"`
	IssuedAt      time.Time       `json:"issuedAt" db:"issued_at"`
}

// InvoiceItem is a denormalized snapshot of one fee-structure line at
// generation time. Immutable once written.
type InvoiceItem struct {
	ID        int64           `json:"id" db:"id"`
	InvoiceID int64           `json:"invoiceId" db:"invoice_id"`
	Name      string          `json:"name" db:"name"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Total     decimal.Decimal `json:"total" db:"total"`
}
