package repositories

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all the repository instances
type Repositories struct {
	ProfileRepository  *ProfileRepository
	StudentRepository  *StudentRepository
	TeacherRepository  *TeacherRepository
	GuardianRepository *GuardianRepository
	LookupRepository   *LookupRepository
	FeeRepository      *FeeRepository
	InvoiceRepository  *InvoiceRepository
	AidRepository      *AidRepository
	SponsorRepository  *SponsorRepository
}

// NewRepositories initializes all repositories
func NewRepositories(db *pgxpool.Pool, invoicePrefix string) *Repositories {
	return &Repositories{
		ProfileRepository:  NewProfileRepository(db),
		StudentRepository:  NewStudentRepository(db),
		TeacherRepository:  NewTeacherRepository(db),
		GuardianRepository: NewGuardianRepository(db),
		LookupRepository:   NewLookupRepository(db),
		FeeRepository:      NewFeeRepository(db),
		InvoiceRepository:  NewInvoiceRepository(db, invoicePrefix),
		AidRepository:      NewAidRepository(db),
		SponsorRepository:  NewSponsorRepository(db),
	}
}
