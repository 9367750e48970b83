package services

import (
	"github.com/rs/zerolog"

	"github.com/ssemanda/scholaris/internal/app/repositories"
	"github.com/ssemanda/scholaris/internal/config"
	"github.com/ssemanda/scholaris/internal/db"
	"github.com/ssemanda/scholaris/internal/identity"
)

// Services holds all the service instances
type Services struct {
	Registration *RegistrationService
	Bulk         *BulkRegistrationService
	Aid          *AidCalculator
	Invoices     *InvoiceService
	Allocations  *AllocationService
}

// NewServices wires the service layer onto the repositories
func NewServices(
	repos *repositories.Repositories,
	database *db.PostgresDB,
	provisioner identity.Provisioner,
	cfg *config.Config,
	logger zerolog.Logger,
) *Services {
	registration := NewRegistrationService(
		repos.ProfileRepository,
		repos.StudentRepository,
		repos.TeacherRepository,
		repos.GuardianRepository,
		repos.LookupRepository,
		provisioner,
		cfg.Identity.DefaultPassword,
		logger.With().Str("service", "registration").Logger(),
	)
	bulk := NewBulkRegistrationService(
		registration,
		repos.ProfileRepository,
		repos.StudentRepository,
		repos.TeacherRepository,
		repos.GuardianRepository,
		BatchSizes{
			Student:  cfg.Batch.StudentSize,
			Teacher:  cfg.Batch.TeacherSize,
			Guardian: cfg.Batch.GuardianSize,
		},
		logger.With().Str("service", "bulk_registration").Logger(),
	)
	aid := NewAidCalculator(repos.AidRepository, logger.With().Str("service", "aid_calculator").Logger())
	invoices := NewInvoiceService(
		repos.FeeRepository,
		repos.InvoiceRepository,
		aid,
		logger.With().Str("service", "invoices").Logger(),
	)
	allocations := NewAllocationService(
		repos.SponsorRepository,
		repos.AidRepository,
		repos.FeeRepository,
		database,
		logger.With().Str("service", "allocations").Logger(),
	)

	return &Services{
		Registration: registration,
		Bulk:         bulk,
		Aid:          aid,
		Invoices:     invoices,
		Allocations:  allocations,
	}
}
