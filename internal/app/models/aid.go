package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CoverageType is the shape of a financial aid award
type CoverageType string

const (
	CoverageFull          CoverageType = "full"
	CoveragePercentage    CoverageType = "percentage"
	CoverageFixedAmount   CoverageType = "fixed_amount"
	CoverageSpecificItems CoverageType = "specific_items"
)

// AidStatus is the lifecycle state of an award
type AidStatus string

const (
	AidPending   AidStatus = "pending"
	AidApproved  AidStatus = "approved"
	AidActive    AidStatus = "active"
	AidSuspended AidStatus = "suspended"
	AidCompleted AidStatus = "completed"
	AidRejected  AidStatus = "rejected"
)

// StudentFinancialAid defines one sponsor award for one student.
// CalculatedAidAmount is recomputed at invoicing time; the write is
// unguarded, so concurrent invoice runs for overlapping periods race on it
// (last writer wins, accepted).
type StudentFinancialAid struct {
	ID                  int64           `json:"id" db:"id"`
	StudentID           string          `json:"studentId" db:"student_id"`
	SponsorID           int64           `json:"sponsorId" db:"sponsor_id"`
	CoverageType        CoverageType    `json:"coverageType" db:"coverage_type"`
	CoverageValue       decimal.Decimal `json:"coverageValue" db:"coverage_value"`
	CoverageItems       []string        `json:"coverageItems,omitempty" db:"coverage_items"`
	ValidFrom           time.Time       `json:"validFrom" db:"valid_from"`
	ValidUntil          time.Time       `json:"validUntil" db:"valid_until"`
	Status              AidStatus       `json:"status" db:"status"`
	CalculatedAidAmount decimal.Decimal `json:"calculatedAidAmount" db:"calculated_aid_amount"`
	CreatedAt           time.Time       `json:"createdAt" db:"created_at"`
}

// Qualifies reports whether the award counts toward coverage for a billing
// period anchored at the given date: status active or approved, and the
// date inside the validity window.
func (a *StudentFinancialAid) Qualifies(at time.Time) bool {
	if a.Status != AidActive && a.Status != AidApproved {
		return false
	}
	if at.Before(a.ValidFrom) || at.After(a.ValidUntil) {
		return false
	}
	return true
}
