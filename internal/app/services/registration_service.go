package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/app/repositories"
	"github.com/ssemanda/scholaris/internal/app/saga"
	"github.com/ssemanda/scholaris/internal/identity"
	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
	"github.com/ssemanda/scholaris/internal/pkg/validation"
)

// Narrow store interfaces the registration flows consume. The concrete
// repositories satisfy them; tests substitute fakes.

type profileStore interface {
	Upsert(ctx context.Context, profile *models.Profile) error
	EmailExists(ctx context.Context, email string) (bool, error)
	ListEmailsIn(ctx context.Context, emails []string) ([]string, error)
	Delete(ctx context.Context, id string) error
}

type studentStore interface {
	Create(ctx context.Context, student *models.Student) error
	StudentNoExists(ctx context.Context, studentNo string) (bool, error)
	ListStudentNosIn(ctx context.Context, studentNos []string) ([]string, error)
	IDByStudentNo(ctx context.Context, studentNo string) (string, error)
	Delete(ctx context.Context, id string) error
}

type teacherStore interface {
	Create(ctx context.Context, teacher *models.Teacher) error
	EmployeeNoExists(ctx context.Context, employeeNo string) (bool, error)
	ListEmployeeNosIn(ctx context.Context, employeeNos []string) ([]string, error)
	AddSubjects(ctx context.Context, teacherID string, subjectIDs []int64) error
	AddClasses(ctx context.Context, teacherID string, classIDs []int64) error
	Delete(ctx context.Context, id string) error
}

type guardianStore interface {
	Create(ctx context.Context, guardian *models.Guardian) error
	NationalIDExists(ctx context.Context, nationalID string) (bool, error)
	ListNationalIDsIn(ctx context.Context, nationalIDs []string) ([]string, error)
	LinkStudents(ctx context.Context, links []models.StudentGuardian) error
	Delete(ctx context.Context, id string) error
}

type lookupStore interface {
	ClassIDByName(ctx context.Context, name string) (int64, error)
	DepartmentIDByName(ctx context.Context, name string) (int64, error)
	SubjectIDsByNames(ctx context.Context, names []string) ([]int64, error)
	ClassIDsByNames(ctx context.Context, names []string) ([]int64, error)
}

// PersonInput carries the fields shared by every registration
type PersonInput struct {
	FirstName string  `validate:"required,min=2,max=100"`
	LastName  string  `validate:"required,min=2,max=100"`
	Email     string  `validate:"required,email"`
	Phone     *string `validate:"omitempty,min=7,max=20"`
}

// StudentInput is the input for registering one student
type StudentInput struct {
	PersonInput
	StudentNo     string `validate:"required,student_no"`
	ClassName     string `validate:"required"`
	AdmissionDate *time.Time
}

// TeacherInput is the input for registering one teacher
type TeacherInput struct {
	PersonInput
	EmployeeNo     string `validate:"required,employee_no"`
	DepartmentName string `validate:"required"`
	SubjectNames   []string
	ClassNames     []string
}

// GuardianLinkInput names one student a guardian is responsible for
type GuardianLinkInput struct {
	StudentNo    string `validate:"required,student_no"`
	Relationship string `validate:"required"`
	IsPrimary    bool
	CanPickup    bool
}

// GuardianInput is the input for registering one guardian
type GuardianInput struct {
	PersonInput
	NationalID string  `validate:"required,national_id"`
	Occupation *string `validate:"omitempty,max=100"`
	Links      []GuardianLinkInput `validate:"required,min=1,dive"`
}

// RegistrationResult reports a successful registration
type RegistrationResult struct {
	ID string `json:"id"`
}

// RegistrationService creates one person as an ordered sequence of writes
// across the identity provisioner and the directory store. Each write is
// paired with a compensating delete so a failure partway leaves no residue.
type RegistrationService struct {
	profiles    profileStore
	students    studentStore
	teachers    teacherStore
	guardians   guardianStore
	lookups     lookupStore
	provisioner identity.Provisioner
	// tempPassword is the shared default credential for new accounts; every
	// identity is created with a must-change-password flag next to it.
	tempPassword string
	logger       zerolog.Logger
}

// NewRegistrationService creates a new RegistrationService
func NewRegistrationService(
	profiles profileStore,
	students studentStore,
	teachers teacherStore,
	guardians guardianStore,
	lookups lookupStore,
	provisioner identity.Provisioner,
	tempPassword string,
	logger zerolog.Logger,
) *RegistrationService {
	return &RegistrationService{
		profiles:     profiles,
		students:     students,
		teachers:     teachers,
		guardians:    guardians,
		lookups:      lookups,
		provisioner:  provisioner,
		tempPassword: tempPassword,
		logger:       logger,
	}
}

// RegisterStudent registers a new student
func (s *RegistrationService) RegisterStudent(ctx context.Context, input *StudentInput) (*RegistrationResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	classID, err := s.lookups.ClassIDByName(ctx, input.ClassName)
	if err != nil {
		if errors.Is(err, repositories.ErrClassNotFound) {
			return nil, apperrors.NewValidationError("class", fmt.Sprintf("unknown class %q", input.ClassName))
		}
		return nil, fmt.Errorf("error resolving class: %w", err)
	}

	if err := s.checkEmailFree(ctx, input.Email); err != nil {
		return nil, err
	}
	exists, err := s.students.StudentNoExists(ctx, input.StudentNo)
	if err != nil {
		return nil, fmt.Errorf("error checking student number: %w", err)
	}
	if exists {
		return nil, apperrors.NewDuplicateError("student_no", fmt.Sprintf("student number %s already registered", input.StudentNo))
	}

	var identityID string

	sg := saga.New("register_student", s.logger)
	s.addIdentitySteps(sg, &identityID, input.PersonInput, models.RoleStudent)
	sg.AddStep("create student record",
		func(ctx context.Context) error {
			student := &models.Student{
				ID:            identityID,
				StudentNo:     input.StudentNo,
				ClassID:       classID,
				AdmissionDate: input.AdmissionDate,
			}
			if err := s.students.Create(ctx, student); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("create student record: %v", err))
			}
			return nil
		},
		func(ctx context.Context) error { return s.students.Delete(ctx, identityID) })

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().Str("identityID", identityID).Str("studentNo", input.StudentNo).Msg("Student registered")
	return &RegistrationResult{ID: identityID}, nil
}

// RegisterTeacher registers a new teacher with subject and class assignments
func (s *RegistrationService) RegisterTeacher(ctx context.Context, input *TeacherInput) (*RegistrationResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	departmentID, err := s.lookups.DepartmentIDByName(ctx, input.DepartmentName)
	if err != nil {
		if errors.Is(err, repositories.ErrDepartmentNotFound) {
			return nil, apperrors.NewValidationError("department", fmt.Sprintf("unknown department %q", input.DepartmentName))
		}
		return nil, fmt.Errorf("error resolving department: %w", err)
	}
	subjectIDs, err := s.lookups.SubjectIDsByNames(ctx, input.SubjectNames)
	if err != nil {
		if errors.Is(err, repositories.ErrSubjectNotFound) {
			return nil, apperrors.NewValidationError("subjects", err.Error())
		}
		return nil, fmt.Errorf("error resolving subjects: %w", err)
	}
	classIDs, err := s.lookups.ClassIDsByNames(ctx, input.ClassNames)
	if err != nil {
		if errors.Is(err, repositories.ErrClassNotFound) {
			return nil, apperrors.NewValidationError("classes", err.Error())
		}
		return nil, fmt.Errorf("error resolving classes: %w", err)
	}

	if err := s.checkEmailFree(ctx, input.Email); err != nil {
		return nil, err
	}
	exists, err := s.teachers.EmployeeNoExists(ctx, input.EmployeeNo)
	if err != nil {
		return nil, fmt.Errorf("error checking employee number: %w", err)
	}
	if exists {
		return nil, apperrors.NewDuplicateError("employee_no", fmt.Sprintf("employee number %s already registered", input.EmployeeNo))
	}

	var identityID string

	sg := saga.New("register_teacher", s.logger)
	s.addIdentitySteps(sg, &identityID, input.PersonInput, models.RoleTeacher)
	sg.AddStep("create teacher record",
		func(ctx context.Context) error {
			teacher := &models.Teacher{
				ID:           identityID,
				EmployeeNo:   input.EmployeeNo,
				DepartmentID: departmentID,
			}
			if err := s.teachers.Create(ctx, teacher); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("create teacher record: %v", err))
			}
			return nil
		},
		// Delete also removes any assignment rows written by the next step.
		func(ctx context.Context) error { return s.teachers.Delete(ctx, identityID) })
	sg.AddStep("assign subjects and classes",
		func(ctx context.Context) error {
			if err := s.teachers.AddSubjects(ctx, identityID, subjectIDs); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("assign subjects: %v", err))
			}
			if err := s.teachers.AddClasses(ctx, identityID, classIDs); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("assign classes: %v", err))
			}
			return nil
		},
		nil)

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().Str("identityID", identityID).Str("employeeNo", input.EmployeeNo).Msg("Teacher registered")
	return &RegistrationResult{ID: identityID}, nil
}

// RegisterGuardian registers a new guardian and links them to their students
func (s *RegistrationService) RegisterGuardian(ctx context.Context, input *GuardianInput) (*RegistrationResult, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	// Resolve the linked students before any side effect so an unknown
	// student number fails as plain validation.
	links := make([]models.StudentGuardian, 0, len(input.Links))
	for _, link := range input.Links {
		studentID, err := s.students.IDByStudentNo(ctx, link.StudentNo)
		if err != nil {
			if errors.Is(err, repositories.ErrStudentNotFound) {
				return nil, apperrors.NewValidationError("links", fmt.Sprintf("unknown student number %q", link.StudentNo))
			}
			return nil, fmt.Errorf("error resolving student number: %w", err)
		}
		links = append(links, models.StudentGuardian{
			StudentID:    studentID,
			Relationship: link.Relationship,
			IsPrimary:    link.IsPrimary,
			CanPickup:    link.CanPickup,
		})
	}

	if err := s.checkEmailFree(ctx, input.Email); err != nil {
		return nil, err
	}
	exists, err := s.guardians.NationalIDExists(ctx, input.NationalID)
	if err != nil {
		return nil, fmt.Errorf("error checking national ID: %w", err)
	}
	if exists {
		return nil, apperrors.NewDuplicateError("national_id", fmt.Sprintf("national ID %s already registered", input.NationalID))
	}

	var identityID string

	sg := saga.New("register_guardian", s.logger)
	s.addIdentitySteps(sg, &identityID, input.PersonInput, models.RoleGuardian)
	sg.AddStep("create guardian record",
		func(ctx context.Context) error {
			guardian := &models.Guardian{
				ID:         identityID,
				NationalID: input.NationalID,
				Occupation: input.Occupation,
			}
			if err := s.guardians.Create(ctx, guardian); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("create guardian record: %v", err))
			}
			return nil
		},
		// Delete also removes link rows written by the next step.
		func(ctx context.Context) error { return s.guardians.Delete(ctx, identityID) })
	sg.AddStep("link students",
		func(ctx context.Context) error {
			for i := range links {
				links[i].GuardianID = identityID
			}
			if err := s.guardians.LinkStudents(ctx, links); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("link students: %v", err))
			}
			return nil
		},
		nil)

	if err := sg.Execute(ctx); err != nil {
		return nil, err
	}

	s.logger.Info().Str("identityID", identityID).Str("nationalID", input.NationalID).Msg("Guardian registered")
	return &RegistrationResult{ID: identityID}, nil
}

// addIdentitySteps appends the two steps every registration starts with:
// provision the identity, then upsert the profile row keyed by its id.
func (s *RegistrationService) addIdentitySteps(sg *saga.Saga, identityID *string, person PersonInput, role models.RoleType) {
	email := validation.NormalizeEmail(person.Email)

	sg.AddStep("create identity",
		func(ctx context.Context) error {
			created, err := s.provisioner.CreateIdentity(ctx, email, s.tempPassword, identity.Metadata{
				Role:               string(role),
				FullName:           person.FirstName + " " + person.LastName,
				MustChangePassword: true,
			})
			if err != nil {
				if errors.Is(err, identity.ErrEmailConflict) {
					return apperrors.NewIdentityError(fmt.Sprintf("provider reports email %s already registered", email))
				}
				return apperrors.NewIdentityError(fmt.Sprintf("create identity: %v", err))
			}
			*identityID = created.ID
			return nil
		},
		func(ctx context.Context) error { return s.provisioner.DeleteIdentity(ctx, *identityID) })

	sg.AddStep("upsert profile",
		func(ctx context.Context) error {
			profile := &models.Profile{
				ID:        *identityID,
				Email:     email,
				FirstName: person.FirstName,
				LastName:  person.LastName,
				Phone:     person.Phone,
				Role:      role,
			}
			if err := s.profiles.Upsert(ctx, profile); err != nil {
				return apperrors.NewDirectoryError(fmt.Sprintf("upsert profile: %v", err))
			}
			return nil
		},
		func(ctx context.Context) error { return s.profiles.Delete(ctx, *identityID) })
}

// checkEmailFree enforces the case-insensitive email pre-check
func (s *RegistrationService) checkEmailFree(ctx context.Context, email string) error {
	exists, err := s.profiles.EmailExists(ctx, validation.NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("error checking email: %w", err)
	}
	if exists {
		return apperrors.NewDuplicateError("email", fmt.Sprintf("email %s already registered", validation.NormalizeEmail(email)))
	}
	return nil
}

// validateInput maps struct-tag violations to the validation bucket of the
// error taxonomy
func validateInput(input interface{}) error {
	if err := validation.Struct(input); err != nil {
		field := validation.FirstFieldError(err)
		return apperrors.NewValidationError(field, fmt.Sprintf("invalid input: %v", err))
	}
	return nil
}
