package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

func newBulkFixture() (*registrationFixture, *BulkRegistrationService) {
	f := newRegistrationFixture()
	bulk := NewBulkRegistrationService(
		f.service, f.profiles, f.students, f.teachers, f.guardians,
		BatchSizes{Student: 100, Teacher: 25, Guardian: 25},
		zerolog.Nop(),
	)
	return f, bulk
}

func TestBulkRegisterStudentsMixedOutcomes(t *testing.T) {
	f, bulk := newBulkFixture()

	inputs := []StudentInput{
		*studentInput("a@school.ug", "STU-2026-001"),
		*studentInput("b@school.ug", "STU-2026-002"),
		*studentInput("c@school.ug", "STU-2026-003"),
	}
	inputs[1].ClassName = "P9 Nowhere"

	summary, err := bulk.BulkRegisterStudents(context.Background(), inputs)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	require.Len(t, summary.Rows, 3)

	// Row numbers account for the header: the first record is row 2.
	assert.Equal(t, 2, summary.Rows[0].Row)
	assert.Equal(t, RowStatusSuccess, summary.Rows[0].Status)
	assert.Equal(t, 3, summary.Rows[1].Row)
	assert.Equal(t, RowStatusFailed, summary.Rows[1].Status)
	assert.Equal(t, apperrors.KindValidation, summary.Rows[1].ErrorType)
	assert.Equal(t, RowStatusSuccess, summary.Rows[2].Status)

	assert.Len(t, f.students.rows, 2)
	assert.Equal(t, "Processed 3 records: 2 created, 1 failed, 0 skipped as duplicates", summary.Message())
}

func TestBulkRegisterStudentsSkipsPreexisting(t *testing.T) {
	f, bulk := newBulkFixture()
	_, err := f.service.RegisterStudent(context.Background(), studentInput("a@school.ug", "STU-2026-001"))
	require.NoError(t, err)

	summary, err := bulk.BulkRegisterStudents(context.Background(), []StudentInput{
		*studentInput("a@school.ug", "STU-2026-001"),
		*studentInput("b@school.ug", "STU-2026-002"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, RowStatusSkipped, summary.Rows[0].Status)
	assert.Equal(t, apperrors.KindDuplicate, summary.Rows[0].ErrorType)
}

func TestBulkRegisterStudentsSkipsDuplicateWithinFile(t *testing.T) {
	_, bulk := newBulkFixture()

	summary, err := bulk.BulkRegisterStudents(context.Background(), []StudentInput{
		*studentInput("a@school.ug", "STU-2026-001"),
		*studentInput("A@SCHOOL.UG", "STU-2026-002"),
		*studentInput("b@school.ug", "STU-2026-001"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 2, summary.Skipped, "same email and same student number both count as duplicates")
}

func TestBulkRegisterStudentsChunked(t *testing.T) {
	f := newRegistrationFixture()
	bulk := NewBulkRegistrationService(
		f.service, f.profiles, f.students, f.teachers, f.guardians,
		BatchSizes{Student: 2, Teacher: 2, Guardian: 2},
		zerolog.Nop(),
	)

	inputs := []StudentInput{
		*studentInput("a@school.ug", "STU-2026-001"),
		*studentInput("b@school.ug", "STU-2026-002"),
		*studentInput("c@school.ug", "STU-2026-003"),
		*studentInput("d@school.ug", "STU-2026-004"),
		*studentInput("e@school.ug", "STU-2026-005"),
	}

	summary, err := bulk.BulkRegisterStudents(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Success)
	assert.Len(t, f.students.rows, 5)
}

func TestBulkRegisterTeachers(t *testing.T) {
	f, bulk := newBulkFixture()

	teacher := func(email, no string) TeacherInput {
		return TeacherInput{
			PersonInput: PersonInput{
				FirstName: "Daniel",
				LastName:  "Okello",
				Email:     email,
			},
			EmployeeNo:     no,
			DepartmentName: "Sciences",
		}
	}

	summary, err := bulk.BulkRegisterTeachers(context.Background(), []TeacherInput{
		teacher("t1@school.ug", "EMP-001"),
		teacher("t1@school.ug", "EMP-002"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Skipped)
	assert.Len(t, f.teachers.rows, 1)
}

func TestBulkRegisterGuardians(t *testing.T) {
	f, bulk := newBulkFixture()
	_, err := f.service.RegisterStudent(context.Background(), studentInput("a@school.ug", "STU-2026-001"))
	require.NoError(t, err)

	guardian := func(email, nid, studentNo string) GuardianInput {
		return GuardianInput{
			PersonInput: PersonInput{
				FirstName: "Grace",
				LastName:  "Ssemanda",
				Email:     email,
			},
			NationalID: nid,
			Links: []GuardianLinkInput{
				{StudentNo: studentNo, Relationship: "mother"},
			},
		}
	}

	summary, err := bulk.BulkRegisterGuardians(context.Background(), []GuardianInput{
		guardian("g1@home.ug", "CF9204410NV3KE", "STU-2026-001"),
		guardian("g2@home.ug", "CM8811223QX9AB", "STU-2026-999"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Success)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, apperrors.KindValidation, summary.Rows[1].ErrorType)
	assert.Len(t, f.guardians.links, 1)
}
