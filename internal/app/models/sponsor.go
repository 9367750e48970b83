package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sponsor defines an organization or person funding student aid
type Sponsor struct {
	ID      int64   `json:"id" db:"id"`
	Name    string  `json:"name" db:"name"`
	Contact *string `json:"contact,omitempty" db:"contact"`
}

// SponsorPayment defines one lump payment received from a sponsor.
// UnallocatedAmount is the payment amount minus the sum of its allocations
// and must never go negative.
type SponsorPayment struct {
	ID                int64           `json:"id" db:"id"`
	SponsorID         int64           `json:"sponsorId" db:"sponsor_id"`
	Amount            decimal.Decimal `json:"amount" db:"amount"`
	UnallocatedAmount decimal.Decimal `json:"unallocatedAmount" db:"unallocated_amount"`
	Reference         *string         `json:"reference,omitempty" db:"reference"`
	PaymentDate       time.Time       `json:"paymentDate" db:"payment_date"`
	CreatedAt         time.Time       `json:"createdAt" db:"created_at"`
}

// SponsorPaymentAllocation assigns a portion of a sponsor payment to one
// student's fee balance
type SponsorPaymentAllocation struct {
	ID               int64           `json:"id" db:"id"`
	SponsorPaymentID int64           `json:"sponsorPaymentId" db:"sponsor_payment_id"`
	StudentID        string          `json:"studentId" db:"student_id"`
	StudentFeeID     int64           `json:"studentFeeId" db:"student_fee_id"`
	AllocatedAmount  decimal.Decimal `json:"allocatedAmount" db:"allocated_amount"`
	CreatedAt        time.Time       `json:"createdAt" db:"created_at"`
}

// SponsorAidBalance joins a qualifying award to the outstanding balance of
// the student's fee for allocation purposes
type SponsorAidBalance struct {
	Aid        StudentFinancialAid `json:"aid"`
	FeeID      int64               `json:"feeId"`
	FeeBalance decimal.Decimal     `json:"feeBalance"`
}
