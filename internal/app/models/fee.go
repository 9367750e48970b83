package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentFee defines the amount a student owes for one fee structure in one
// billing period, before financial aid. Rows are created upstream when fees
// are applied; invoicing only reads and annotates them.
type StudentFee struct {
	ID             int64           `json:"id" db:"id"`
	StudentID      string          `json:"studentId" db:"student_id"`
	FeeStructureID int64           `json:"feeStructureId" db:"fee_structure_id"`
	AcademicYear   string          `json:"academicYear" db:"academic_year"`
	Term           string          `json:"term" db:"term"`
	TotalAmount    decimal.Decimal `json:"totalAmount" db:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discountAmount" db:"discount_amount"`
	Balance        decimal.Decimal `json:"balance" db:"balance"`
	DueDate        time.Time       `json:"dueDate" db:"due_date"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

// FeeStructure defines a named set of billable items for a period
type FeeStructure struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name"`
	AcademicYear string `json:"academicYear" db:"academic_year"`
	Term         string `json:"term" db:"term"`
}

// FeeStructureItem defines one billable line of a fee structure
type FeeStructureItem struct {
	ID             int64           `json:"id" db:"id"`
	FeeStructureID int64           `json:"feeStructureId" db:"fee_structure_id"`
	Name           string          `json:"name" db:"name"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Total          decimal.Decimal `json:"total" db:"total"`
}
