package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ssemanda/scholaris/internal/app/models"
)

type aidStore interface {
	ListQualifying(ctx context.Context, studentID string, asOf time.Time) ([]models.StudentFinancialAid, error)
	UpdateCalculatedAmount(ctx context.Context, aidID int64, amount decimal.Decimal) error
}

// ComputeAidInput describes one student's fees for one billing period
type ComputeAidInput struct {
	StudentID string
	TotalFees decimal.Decimal
	Items     []models.FeeStructureItem
	// AsOf anchors the billing period when testing award validity windows.
	AsOf time.Time
}

// AidCalculator turns a student's qualifying financial aid awards into a
// single amount deductible from their fees for a billing period.
type AidCalculator struct {
	aid    aidStore
	logger zerolog.Logger
}

// NewAidCalculator creates a new AidCalculator
func NewAidCalculator(aid aidStore, logger zerolog.Logger) *AidCalculator {
	return &AidCalculator{aid: aid, logger: logger}
}

// ComputeAid sums the contribution of every qualifying award and clamps the
// result to [0, TotalFees]. As a side effect it writes each award's share of
// the final amount back, split equally with two decimal places, so sponsor
// allocation later knows what each award is expected to cover.
func (c *AidCalculator) ComputeAid(ctx context.Context, input ComputeAidInput) (decimal.Decimal, error) {
	awards, err := c.aid.ListQualifying(ctx, input.StudentID, input.AsOf)
	if err != nil {
		return decimal.Zero, fmt.Errorf("error listing qualifying aid: %w", err)
	}
	if len(awards) == 0 {
		return decimal.Zero, nil
	}

	total := decimal.Zero
	for i := range awards {
		total = total.Add(c.coverageAmount(&awards[i], input))
	}

	if total.IsNegative() {
		total = decimal.Zero
	}
	if total.GreaterThan(input.TotalFees) {
		total = input.TotalFees
	}

	// Last writer wins when two billing runs overlap; the column is a
	// denormalized hint, not a ledger entry.
	share := total.DivRound(decimal.NewFromInt(int64(len(awards))), 2)
	for i := range awards {
		if err := c.aid.UpdateCalculatedAmount(ctx, awards[i].ID, share); err != nil {
			c.logger.Warn().Int64("aidID", awards[i].ID).Err(err).Msg("Failed to write back calculated aid amount")
		}
	}

	c.logger.Debug().Str("studentID", input.StudentID).Int("awards", len(awards)).
		Str("aidAmount", total.String()).Msg("Computed financial aid")
	return total, nil
}

func (c *AidCalculator) coverageAmount(award *models.StudentFinancialAid, input ComputeAidInput) decimal.Decimal {
	switch award.CoverageType {
	case models.CoverageFull:
		return input.TotalFees
	case models.CoveragePercentage:
		return input.TotalFees.Mul(award.CoverageValue).Div(decimal.NewFromInt(100))
	case models.CoverageFixedAmount:
		if award.CoverageValue.GreaterThan(input.TotalFees) {
			return input.TotalFees
		}
		return award.CoverageValue
	case models.CoverageSpecificItems:
		covered := make(map[string]struct{}, len(award.CoverageItems))
		for _, name := range award.CoverageItems {
			covered[strings.ToLower(name)] = struct{}{}
		}
		sum := decimal.Zero
		for i := range input.Items {
			if _, ok := covered[strings.ToLower(input.Items[i].Name)]; ok {
				sum = sum.Add(input.Items[i].Total)
			}
		}
		return sum
	default:
		c.logger.Warn().Int64("aidID", award.ID).Str("coverageType", string(award.CoverageType)).
			Msg("Unknown coverage type, contributing nothing")
		return decimal.Zero
	}
}
