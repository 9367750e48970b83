package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

type registrationFixture struct {
	provisioner *fakeProvisioner
	profiles    *fakeProfiles
	students    *fakeStudents
	teachers    *fakeTeachers
	guardians   *fakeGuardians
	lookups     *fakeLookups
	service     *RegistrationService
}

func newRegistrationFixture() *registrationFixture {
	f := &registrationFixture{
		provisioner: &fakeProvisioner{},
		profiles:    newFakeProfiles(),
		students:    newFakeStudents(),
		teachers:    newFakeTeachers(),
		guardians:   newFakeGuardians(),
		lookups:     newFakeLookups(),
	}
	f.service = NewRegistrationService(
		f.profiles, f.students, f.teachers, f.guardians, f.lookups,
		f.provisioner, "ChangeMe123!", zerolog.Nop(),
	)
	return f
}

func studentInput(email, no string) *StudentInput {
	return &StudentInput{
		PersonInput: PersonInput{
			FirstName: "Amina",
			LastName:  "Ssemanda",
			Email:     email,
			Phone:     nil,
		},
		StudentNo: no,
		ClassName: "P1 East",
	}
}

func TestRegisterStudent(t *testing.T) {
	f := newRegistrationFixture()

	result, err := f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.NoError(t, err)
	require.NotNil(t, result)

	profile, ok := f.profiles.rows[result.ID]
	require.True(t, ok, "profile row should exist")
	assert.Equal(t, "amina@school.ug", profile.Email)

	student, ok := f.students.rows[result.ID]
	require.True(t, ok, "student row should exist")
	assert.Equal(t, "STU-2026-001", student.StudentNo)
	assert.Equal(t, int64(1), student.ClassID)
	assert.Empty(t, f.provisioner.deleted)
}

func TestRegisterStudentUppercaseEmailNormalized(t *testing.T) {
	f := newRegistrationFixture()

	result, err := f.service.RegisterStudent(context.Background(), studentInput("Amina@School.UG", "STU-2026-001"))
	require.NoError(t, err)
	assert.Equal(t, "amina@school.ug", f.profiles.rows[result.ID].Email)
}

func TestRegisterStudentCompensatesOnLateFailure(t *testing.T) {
	f := newRegistrationFixture()
	f.students.failWith = errors.New("unique constraint blew up")

	_, err := f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDirectory, apperrors.Classify(err))

	// The profile and the identity written before the failing step must be
	// rolled back, in reverse order of creation.
	assert.Equal(t, []string{"identity-1"}, f.profiles.deleted)
	assert.Equal(t, []string{"identity-1"}, f.provisioner.deleted)
	assert.Empty(t, f.profiles.rows)

	// With no residue left behind, the same person registers cleanly once
	// the underlying fault is gone.
	f.students.failWith = nil
	_, err = f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.NoError(t, err)
}

func TestRegisterStudentDuplicateEmail(t *testing.T) {
	f := newRegistrationFixture()
	_, err := f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.NoError(t, err)

	_, err = f.service.RegisterStudent(context.Background(), studentInput("AMINA@school.ug", "STU-2026-002"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDuplicate, apperrors.Classify(err))
	assert.Equal(t, "email", apperrors.FieldOf(err))
	// Pre-check rejections happen before any side effect.
	assert.Len(t, f.provisioner.created, 1)
}

func TestRegisterStudentDuplicateStudentNo(t *testing.T) {
	f := newRegistrationFixture()
	_, err := f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.NoError(t, err)

	_, err = f.service.RegisterStudent(context.Background(), studentInput("ben@school.ug", "STU-2026-001"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDuplicate, apperrors.Classify(err))
	assert.Equal(t, "student_no", apperrors.FieldOf(err))
}

func TestRegisterStudentUnknownClass(t *testing.T) {
	f := newRegistrationFixture()
	input := studentInput("amina@school.ug", "STU-2026-001")
	input.ClassName = "P9 Nowhere"

	_, err := f.service.RegisterStudent(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.Classify(err))
	assert.Empty(t, f.provisioner.created)
}

func TestRegisterStudentInvalidInput(t *testing.T) {
	f := newRegistrationFixture()
	input := studentInput("not-an-email", "STU-2026-001")

	_, err := f.service.RegisterStudent(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.Classify(err))
}

func TestRegisterStudentProviderConflict(t *testing.T) {
	f := newRegistrationFixture()
	// Known to the provider but absent from the directory, so the pre-check
	// passes and the provider itself rejects.
	f.provisioner.existing = map[string]struct{}{"amina@school.ug": {}}

	_, err := f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindIdentity, apperrors.Classify(err))
	assert.Empty(t, f.provisioner.deleted, "nothing to compensate when the first step fails")
}

func TestRegisterTeacher(t *testing.T) {
	f := newRegistrationFixture()
	input := &TeacherInput{
		PersonInput: PersonInput{
			FirstName: "Daniel",
			LastName:  "Okello",
			Email:     "okello@school.ug",
		},
		EmployeeNo:     "EMP-042",
		DepartmentName: "Sciences",
		SubjectNames:   []string{"Mathematics", "Physics"},
		ClassNames:     []string{"P1 East"},
	}

	result, err := f.service.RegisterTeacher(context.Background(), input)
	require.NoError(t, err)

	teacher := f.teachers.rows[result.ID]
	require.NotNil(t, teacher)
	assert.Equal(t, "EMP-042", teacher.EmployeeNo)
	assert.Equal(t, int64(10), teacher.DepartmentID)
	assert.ElementsMatch(t, []int64{100, 101}, f.teachers.subjects[result.ID])
	assert.Equal(t, []int64{1}, f.teachers.classes[result.ID])
}

func TestRegisterTeacherAssignmentFailureCompensatesEverything(t *testing.T) {
	f := newRegistrationFixture()
	f.teachers.assignErr = errors.New("fk violation")
	input := &TeacherInput{
		PersonInput: PersonInput{
			FirstName: "Daniel",
			LastName:  "Okello",
			Email:     "okello@school.ug",
		},
		EmployeeNo:     "EMP-042",
		DepartmentName: "Sciences",
		SubjectNames:   []string{"Mathematics"},
	}

	_, err := f.service.RegisterTeacher(context.Background(), input)
	require.Error(t, err)
	assert.Empty(t, f.teachers.rows, "teacher record rolled back")
	assert.Empty(t, f.profiles.rows, "profile rolled back")
	assert.Equal(t, []string{"identity-1"}, f.provisioner.deleted)
}

func TestRegisterTeacherUnknownSubject(t *testing.T) {
	f := newRegistrationFixture()
	input := &TeacherInput{
		PersonInput: PersonInput{
			FirstName: "Daniel",
			LastName:  "Okello",
			Email:     "okello@school.ug",
		},
		EmployeeNo:     "EMP-042",
		DepartmentName: "Sciences",
		SubjectNames:   []string{"Alchemy"},
	}

	_, err := f.service.RegisterTeacher(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.Classify(err))
	assert.Empty(t, f.provisioner.created)
}

func TestRegisterGuardian(t *testing.T) {
	f := newRegistrationFixture()
	studentResult, err := f.service.RegisterStudent(context.Background(), studentInput("amina@school.ug", "STU-2026-001"))
	require.NoError(t, err)

	input := &GuardianInput{
		PersonInput: PersonInput{
			FirstName: "Grace",
			LastName:  "Ssemanda",
			Email:     "grace@home.ug",
		},
		NationalID: "CF9204410NV3KE",
		Links: []GuardianLinkInput{
			{StudentNo: "STU-2026-001", Relationship: "mother", IsPrimary: true, CanPickup: true},
		},
	}

	result, err := f.service.RegisterGuardian(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, f.guardians.links, 1)
	assert.Equal(t, result.ID, f.guardians.links[0].GuardianID)
	assert.Equal(t, studentResult.ID, f.guardians.links[0].StudentID)
	assert.True(t, f.guardians.links[0].IsPrimary)
}

func TestRegisterGuardianUnknownStudent(t *testing.T) {
	f := newRegistrationFixture()
	input := &GuardianInput{
		PersonInput: PersonInput{
			FirstName: "Grace",
			LastName:  "Ssemanda",
			Email:     "grace@home.ug",
		},
		NationalID: "CF9204410NV3KE",
		Links: []GuardianLinkInput{
			{StudentNo: "STU-2026-999", Relationship: "mother"},
		},
	}

	_, err := f.service.RegisterGuardian(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.Classify(err))
	assert.Empty(t, f.provisioner.created, "link resolution happens before any side effect")
}

func TestRegisterGuardianRequiresLinks(t *testing.T) {
	f := newRegistrationFixture()
	input := &GuardianInput{
		PersonInput: PersonInput{
			FirstName: "Grace",
			LastName:  "Ssemanda",
			Email:     "grace@home.ug",
		},
		NationalID: "CF9204410NV3KE",
	}

	_, err := f.service.RegisterGuardian(context.Background(), input)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.Classify(err))
}
