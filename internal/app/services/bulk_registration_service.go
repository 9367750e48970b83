package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
	"github.com/ssemanda/scholaris/internal/pkg/validation"
)

// Row statuses of a bulk run
const (
	RowStatusSuccess = "success"
	RowStatusFailed  = "failed"
	RowStatusSkipped = "skipped"
)

// firstDataRow is the row number of the first record in an uploaded file:
// rows are 1-indexed and row 1 is the header.
const firstDataRow = 2

// RowResult reports the outcome of one record in a bulk run
type RowResult struct {
	Row       int            `json:"row"`
	Status    string         `json:"status"`
	ErrorType apperrors.Kind `json:"errorType,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// BatchSummary aggregates the per-row outcomes of a bulk run
type BatchSummary struct {
	Total   int         `json:"total"`
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Rows    []RowResult `json:"rows"`
}

// Message renders the one-line summary shown to the operator
func (s *BatchSummary) Message() string {
	return fmt.Sprintf("Processed %d records: %d created, %d failed, %d skipped as duplicates",
		s.Total, s.Success, s.Failed, s.Skipped)
}

// batchContext tracks emails and natural keys already consumed during one
// bulk run. It is seeded from a single prescan round trip and grows with
// each success, so later rows see duplicates without another query.
type batchContext struct {
	emails map[string]struct{}
	keys   map[string]struct{}
}

func newBatchContext(existingEmails, existingKeys []string) *batchContext {
	b := &batchContext{
		emails: make(map[string]struct{}, len(existingEmails)),
		keys:   make(map[string]struct{}, len(existingKeys)),
	}
	for _, e := range existingEmails {
		b.emails[validation.NormalizeEmail(e)] = struct{}{}
	}
	for _, k := range existingKeys {
		b.keys[k] = struct{}{}
	}
	return b
}

func (b *batchContext) seen(email, key string) bool {
	if _, ok := b.emails[validation.NormalizeEmail(email)]; ok {
		return true
	}
	_, ok := b.keys[key]
	return ok
}

func (b *batchContext) add(email, key string) {
	b.emails[validation.NormalizeEmail(email)] = struct{}{}
	b.keys[key] = struct{}{}
}

// bulkRow is one record of a bulk run in the shape the shared loop consumes
type bulkRow struct {
	email    string
	key      string
	register func(ctx context.Context) error
}

// BatchSizes bounds how many rows each bulk loop holds in flight per chunk
type BatchSizes struct {
	Student  int
	Teacher  int
	Guardian int
}

// BulkRegistrationService runs file-sized registration batches on top of the
// single-record flows. Rows never abort the run; each failure is recorded
// and the loop moves on.
type BulkRegistrationService struct {
	registration *RegistrationService
	profiles     profileStore
	students     studentStore
	teachers     teacherStore
	guardians    guardianStore
	sizes        BatchSizes
	logger       zerolog.Logger
}

// NewBulkRegistrationService creates a new BulkRegistrationService
func NewBulkRegistrationService(
	registration *RegistrationService,
	profiles profileStore,
	students studentStore,
	teachers teacherStore,
	guardians guardianStore,
	sizes BatchSizes,
	logger zerolog.Logger,
) *BulkRegistrationService {
	return &BulkRegistrationService{
		registration: registration,
		profiles:     profiles,
		students:     students,
		teachers:     teachers,
		guardians:    guardians,
		sizes:        sizes,
		logger:       logger,
	}
}

// BulkRegisterStudents registers every row of a student import file
func (s *BulkRegistrationService) BulkRegisterStudents(ctx context.Context, inputs []StudentInput) (*BatchSummary, error) {
	emails := make([]string, 0, len(inputs))
	studentNos := make([]string, 0, len(inputs))
	for i := range inputs {
		emails = append(emails, inputs[i].Email)
		studentNos = append(studentNos, inputs[i].StudentNo)
	}

	existingEmails, err := s.profiles.ListEmailsIn(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("error prescanning emails: %w", err)
	}
	existingNos, err := s.students.ListStudentNosIn(ctx, studentNos)
	if err != nil {
		return nil, fmt.Errorf("error prescanning student numbers: %w", err)
	}

	rows := make([]bulkRow, len(inputs))
	for i := range inputs {
		input := inputs[i]
		rows[i] = bulkRow{
			email: input.Email,
			key:   input.StudentNo,
			register: func(ctx context.Context) error {
				_, err := s.registration.RegisterStudent(ctx, &input)
				return err
			},
		}
	}

	return s.process(ctx, "students", rows, s.sizes.Student, newBatchContext(existingEmails, existingNos)), nil
}

// BulkRegisterTeachers registers every row of a teacher import file
func (s *BulkRegistrationService) BulkRegisterTeachers(ctx context.Context, inputs []TeacherInput) (*BatchSummary, error) {
	emails := make([]string, 0, len(inputs))
	employeeNos := make([]string, 0, len(inputs))
	for i := range inputs {
		emails = append(emails, inputs[i].Email)
		employeeNos = append(employeeNos, inputs[i].EmployeeNo)
	}

	existingEmails, err := s.profiles.ListEmailsIn(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("error prescanning emails: %w", err)
	}
	existingNos, err := s.teachers.ListEmployeeNosIn(ctx, employeeNos)
	if err != nil {
		return nil, fmt.Errorf("error prescanning employee numbers: %w", err)
	}

	rows := make([]bulkRow, len(inputs))
	for i := range inputs {
		input := inputs[i]
		rows[i] = bulkRow{
			email: input.Email,
			key:   input.EmployeeNo,
			register: func(ctx context.Context) error {
				_, err := s.registration.RegisterTeacher(ctx, &input)
				return err
			},
		}
	}

	return s.process(ctx, "teachers", rows, s.sizes.Teacher, newBatchContext(existingEmails, existingNos)), nil
}

// BulkRegisterGuardians registers every row of a guardian import file
func (s *BulkRegistrationService) BulkRegisterGuardians(ctx context.Context, inputs []GuardianInput) (*BatchSummary, error) {
	emails := make([]string, 0, len(inputs))
	nationalIDs := make([]string, 0, len(inputs))
	for i := range inputs {
		emails = append(emails, inputs[i].Email)
		nationalIDs = append(nationalIDs, inputs[i].NationalID)
	}

	existingEmails, err := s.profiles.ListEmailsIn(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("error prescanning emails: %w", err)
	}
	existingIDs, err := s.guardians.ListNationalIDsIn(ctx, nationalIDs)
	if err != nil {
		return nil, fmt.Errorf("error prescanning national IDs: %w", err)
	}

	rows := make([]bulkRow, len(inputs))
	for i := range inputs {
		input := inputs[i]
		rows[i] = bulkRow{
			email: input.Email,
			key:   input.NationalID,
			register: func(ctx context.Context) error {
				_, err := s.registration.RegisterGuardian(ctx, &input)
				return err
			},
		}
	}

	return s.process(ctx, "guardians", rows, s.sizes.Guardian, newBatchContext(existingEmails, existingIDs)), nil
}

// process walks the rows in chunks of batchSize. Chunking only bounds the
// working set; rows still register one at a time.
func (s *BulkRegistrationService) process(ctx context.Context, kind string, rows []bulkRow, batchSize int, bctx *batchContext) *BatchSummary {
	summary := &BatchSummary{
		Total: len(rows),
		Rows:  make([]RowResult, 0, len(rows)),
	}

	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		s.logger.Debug().Str("kind", kind).Int("from", start+firstDataRow).Int("to", end+firstDataRow-1).Msg("Processing batch")

		for i := start; i < end; i++ {
			rowNum := i + firstDataRow
			row := rows[i]

			if bctx.seen(row.email, row.key) {
				summary.Skipped++
				summary.Rows = append(summary.Rows, RowResult{
					Row:       rowNum,
					Status:    RowStatusSkipped,
					ErrorType: apperrors.KindDuplicate,
					Message:   "already registered",
				})
				continue
			}

			if err := row.register(ctx); err != nil {
				errKind := apperrors.Classify(err)
				summary.Failed++
				summary.Rows = append(summary.Rows, RowResult{
					Row:       rowNum,
					Status:    RowStatusFailed,
					ErrorType: errKind,
					Message:   err.Error(),
				})
				s.logger.Warn().Int("row", rowNum).Str("errorType", string(errKind)).Err(err).Msg("Bulk row failed")
				continue
			}

			bctx.add(row.email, row.key)
			summary.Success++
			summary.Rows = append(summary.Rows, RowResult{Row: rowNum, Status: RowStatusSuccess})
		}
	}

	s.logger.Info().Str("kind", kind).Int("total", summary.Total).Int("success", summary.Success).
		Int("failed", summary.Failed).Int("skipped", summary.Skipped).Msg("Bulk run finished")
	return summary
}
