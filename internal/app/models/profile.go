package models

import "time"

// Profile defines the directory profile row for one provisioned identity.
// Its id is the identity id assigned by the provisioner; the lifecycle of
// the two is tied one to one.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"firstName" db:"first_name"`
	LastName  string    `json:"lastName" db:"last_name"`
	Phone     *string   `json:"phone,omitempty" db:"phone"`
	Role      RoleType  `json:"role" db:"role"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Student defines the student role record, keyed by the profile id
type Student struct {
	ID            string     `json:"id" db:"id"`
	StudentNo     string     `json:"studentNo" db:"student_no"`
	ClassID       int64      `json:"classId" db:"class_id"`
	AdmissionDate *time.Time `json:"admissionDate,omitempty" db:"admission_date"`
	Profile       *Profile   `json:"profile,omitempty"`
	Class         *Class     `json:"class,omitempty"`
}

// Teacher defines the teacher role record, keyed by the profile id
type Teacher struct {
	ID           string      `json:"id" db:"id"`
	EmployeeNo   string      `json:"employeeNo" db:"employee_no"`
	DepartmentID int64       `json:"departmentId" db:"department_id"`
	Profile      *Profile    `json:"profile,omitempty"`
	Department   *Department `json:"department,omitempty"`
}

// Guardian defines the guardian role record, keyed by the profile id
type Guardian struct {
	ID         string   `json:"id" db:"id"`
	NationalID string   `json:"nationalId" db:"national_id"`
	Occupation *string  `json:"occupation,omitempty" db:"occupation"`
	Profile    *Profile `json:"profile,omitempty"`
}

// TeacherSubject links a teacher to a subject they teach
type TeacherSubject struct {
	TeacherID string `json:"teacherId" db:"teacher_id"`
	SubjectID int64  `json:"subjectId" db:"subject_id"`
}

// TeacherClass links a teacher to a class they are assigned to
type TeacherClass struct {
	TeacherID string `json:"teacherId" db:"teacher_id"`
	ClassID   int64  `json:"classId" db:"class_id"`
}

// StudentGuardian links a student to a guardian. The flags travel with the
// link, not with either person.
type StudentGuardian struct {
	StudentID    string `json:"studentId" db:"student_id"`
	GuardianID   string `json:"guardianId" db:"guardian_id"`
	Relationship string `json:"relationship" db:"relationship"`
	IsPrimary    bool   `json:"isPrimary" db:"is_primary"`
	CanPickup    bool   `json:"canPickup" db:"can_pickup"`
}

// Class defines a school class (form/stream)
type Class struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Department defines a staff department
type Department struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Subject defines a taught subject
type Subject struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
