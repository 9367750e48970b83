package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/app/repositories"
	"github.com/ssemanda/scholaris/internal/db"
	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

type sponsorStore interface {
	GetPayment(ctx context.Context, id int64) (*models.SponsorPayment, error)
	InsertAllocation(ctx context.Context, tx pgx.Tx, alloc *models.SponsorPaymentAllocation) error
	DecrementUnallocated(ctx context.Context, tx pgx.Tx, paymentID int64, amount decimal.Decimal) error
	ListAllocations(ctx context.Context, paymentID int64) ([]models.SponsorPaymentAllocation, error)
}

type allocatableLister interface {
	ListAllocatableBySponsor(ctx context.Context, sponsorID int64, asOf time.Time) ([]models.SponsorAidBalance, error)
}

type feeBalancer interface {
	DecrementBalance(ctx context.Context, tx pgx.Tx, feeID int64, amount decimal.Decimal) error
	ReduceBalanceClamped(ctx context.Context, tx pgx.Tx, feeID int64, amount decimal.Decimal) error
}

type txRunner interface {
	WithTransaction(ctx context.Context, fn db.TransactionFn) error
}

// ManualAllocationInput directs part of a sponsor payment at one fee
type ManualAllocationInput struct {
	StudentID    string          `validate:"required"`
	StudentFeeID int64           `validate:"required"`
	Amount       decimal.Decimal `validate:"required"`
}

// AllocationService spreads sponsor payments across the outstanding fees of
// the sponsor's aided students.
type AllocationService struct {
	payments sponsorStore
	aid      allocatableLister
	fees     feeBalancer
	tx       txRunner
	logger   zerolog.Logger
	// now is swappable so tests can pin the allocation cutoff date.
	now func() time.Time
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(payments sponsorStore, aid allocatableLister, fees feeBalancer, tx txRunner, logger zerolog.Logger) *AllocationService {
	return &AllocationService{
		payments: payments,
		aid:      aid,
		fees:     fees,
		tx:       tx,
		logger:   logger,
		now:      time.Now,
	}
}

// AutoAllocate greedily spreads a payment's unallocated amount across the
// sponsor's aided students in award-creation order, oldest first. Each
// student receives at most min(their calculated aid, the remaining payment,
// their fee balance). Rerunning on the same payment allocates only what is
// still unallocated.
func (s *AllocationService) AutoAllocate(ctx context.Context, paymentID int64) ([]models.SponsorPaymentAllocation, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: sponsor payment %d", apperrors.ErrNotFound, paymentID)
		}
		return nil, err
	}

	remaining := payment.UnallocatedAmount
	if !remaining.IsPositive() {
		s.logger.Info().Int64("paymentID", paymentID).Msg("Payment already fully allocated")
		return nil, nil
	}

	candidates, err := s.aid.ListAllocatableBySponsor(ctx, payment.SponsorID, s.now())
	if err != nil {
		return nil, fmt.Errorf("error listing allocatable aid: %w", err)
	}

	var allocations []models.SponsorPaymentAllocation
	for i := range candidates {
		candidate := &candidates[i]

		limit := candidate.Aid.CalculatedAidAmount
		if !limit.IsPositive() {
			// Awards never touched by an invoice run fall back to what the
			// fee still owes.
			limit = candidate.FeeBalance
		}
		amount := decimal.Min(limit, remaining, candidate.FeeBalance)
		if !amount.IsPositive() {
			continue
		}

		alloc := models.SponsorPaymentAllocation{
			SponsorPaymentID: paymentID,
			StudentID:        candidate.Aid.StudentID,
			StudentFeeID:     candidate.FeeID,
			AllocatedAmount:  amount,
		}
		err := s.tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
			if err := s.payments.InsertAllocation(ctx, tx, &alloc); err != nil {
				return err
			}
			if err := s.payments.DecrementUnallocated(ctx, tx, paymentID, amount); err != nil {
				return err
			}
			return s.fees.DecrementBalance(ctx, tx, candidate.FeeID, amount)
		})
		if err != nil {
			return allocations, fmt.Errorf("error allocating %s to fee %d: %w", amount.StringFixed(2), candidate.FeeID, err)
		}

		allocations = append(allocations, alloc)
		remaining = remaining.Sub(amount)
		s.logger.Debug().Int64("paymentID", paymentID).Str("studentID", candidate.Aid.StudentID).
			Int64("feeID", candidate.FeeID).Str("amount", amount.StringFixed(2)).Msg("Allocated payment share")
		if !remaining.IsPositive() {
			break
		}
	}

	s.logger.Info().Int64("paymentID", paymentID).Int("allocations", len(allocations)).
		Str("remaining", remaining.StringFixed(2)).Msg("Auto allocation finished")
	return allocations, nil
}

// AllocateManual applies operator-chosen allocations. The only cap enforced
// is the payment's unallocated amount; per-student aid limits do not apply.
func (s *AllocationService) AllocateManual(ctx context.Context, paymentID int64, entries []ManualAllocationInput) ([]models.SponsorPaymentAllocation, error) {
	if len(entries) == 0 {
		return nil, apperrors.NewValidationError("allocations", "no allocations given")
	}
	total := decimal.Zero
	for i := range entries {
		if !entries[i].Amount.IsPositive() {
			return nil, apperrors.NewValidationError("amount", "allocation amounts must be positive")
		}
		total = total.Add(entries[i].Amount)
	}

	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repositories.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: sponsor payment %d", apperrors.ErrNotFound, paymentID)
		}
		return nil, err
	}
	if total.GreaterThan(payment.UnallocatedAmount) {
		return nil, apperrors.NewValidationError("amount",
			fmt.Sprintf("allocations total %s exceeds unallocated %s",
				total.StringFixed(2), payment.UnallocatedAmount.StringFixed(2)))
	}

	allocations := make([]models.SponsorPaymentAllocation, len(entries))
	err = s.tx.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for i := range entries {
			allocations[i] = models.SponsorPaymentAllocation{
				SponsorPaymentID: paymentID,
				StudentID:        entries[i].StudentID,
				StudentFeeID:     entries[i].StudentFeeID,
				AllocatedAmount:  entries[i].Amount,
			}
			if err := s.payments.InsertAllocation(ctx, tx, &allocations[i]); err != nil {
				return err
			}
			if err := s.fees.ReduceBalanceClamped(ctx, tx, entries[i].StudentFeeID, entries[i].Amount); err != nil {
				return err
			}
		}
		return s.payments.DecrementUnallocated(ctx, tx, paymentID, total)
	})
	if err != nil {
		return nil, fmt.Errorf("error applying manual allocations: %w", err)
	}

	s.logger.Info().Int64("paymentID", paymentID).Int("allocations", len(allocations)).
		Str("total", total.StringFixed(2)).Msg("Manual allocation finished")
	return allocations, nil
}

// Allocations lists the allocations recorded against a payment, oldest first.
func (s *AllocationService) Allocations(ctx context.Context, paymentID int64) ([]models.SponsorPaymentAllocation, error) {
	allocations, err := s.payments.ListAllocations(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("error listing allocations: %w", err)
	}
	return allocations, nil
}
