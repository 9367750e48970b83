package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ssemanda/scholaris/internal/app/models"
	"github.com/ssemanda/scholaris/internal/app/repositories"
	"github.com/ssemanda/scholaris/internal/db"
	"github.com/ssemanda/scholaris/internal/identity"
)

// In-memory fakes standing in for the repositories and the identity
// provider. Each records the calls it sees so the tests can assert on
// ordering and on compensation.

type fakeProvisioner struct {
	nextID   int
	failWith error
	created  []string
	deleted  []string
	existing map[string]struct{}
}

func (f *fakeProvisioner) CreateIdentity(_ context.Context, email, _ string, _ identity.Metadata) (*identity.Identity, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	if _, ok := f.existing[email]; ok {
		return nil, identity.ErrEmailConflict
	}
	f.nextID++
	id := fmt.Sprintf("identity-%d", f.nextID)
	f.created = append(f.created, id)
	return &identity.Identity{ID: id, Email: email}, nil
}

func (f *fakeProvisioner) DeleteIdentity(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeProfiles struct {
	rows     map[string]*models.Profile
	emails   map[string]struct{}
	deleted  []string
	failWith error
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{rows: map[string]*models.Profile{}, emails: map[string]struct{}{}}
}

func (f *fakeProfiles) Upsert(_ context.Context, p *models.Profile) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.rows[p.ID] = p
	f.emails[p.Email] = struct{}{}
	return nil
}

func (f *fakeProfiles) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := f.emails[email]
	return ok, nil
}

func (f *fakeProfiles) ListEmailsIn(_ context.Context, emails []string) ([]string, error) {
	var found []string
	for _, e := range emails {
		if _, ok := f.emails[e]; ok {
			found = append(found, e)
		}
	}
	return found, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	if p, ok := f.rows[id]; ok {
		delete(f.emails, p.Email)
		delete(f.rows, id)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeStudents struct {
	rows     map[string]*models.Student
	byNo     map[string]string
	deleted  []string
	failWith error
}

func newFakeStudents() *fakeStudents {
	return &fakeStudents{rows: map[string]*models.Student{}, byNo: map[string]string{}}
}

func (f *fakeStudents) Create(_ context.Context, s *models.Student) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.rows[s.ID] = s
	f.byNo[s.StudentNo] = s.ID
	return nil
}

func (f *fakeStudents) StudentNoExists(_ context.Context, no string) (bool, error) {
	_, ok := f.byNo[no]
	return ok, nil
}

func (f *fakeStudents) ListStudentNosIn(_ context.Context, nos []string) ([]string, error) {
	var found []string
	for _, n := range nos {
		if _, ok := f.byNo[n]; ok {
			found = append(found, n)
		}
	}
	return found, nil
}

func (f *fakeStudents) IDByStudentNo(_ context.Context, no string) (string, error) {
	id, ok := f.byNo[no]
	if !ok {
		return "", repositories.ErrStudentNotFound
	}
	return id, nil
}

func (f *fakeStudents) Delete(_ context.Context, id string) error {
	if s, ok := f.rows[id]; ok {
		delete(f.byNo, s.StudentNo)
		delete(f.rows, id)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeTeachers struct {
	rows     map[string]*models.Teacher
	byNo     map[string]string
	subjects map[string][]int64
	classes  map[string][]int64
	deleted  []string
	failWith error
	assignErr error
}

func newFakeTeachers() *fakeTeachers {
	return &fakeTeachers{
		rows:     map[string]*models.Teacher{},
		byNo:     map[string]string{},
		subjects: map[string][]int64{},
		classes:  map[string][]int64{},
	}
}

func (f *fakeTeachers) Create(_ context.Context, t *models.Teacher) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.rows[t.ID] = t
	f.byNo[t.EmployeeNo] = t.ID
	return nil
}

func (f *fakeTeachers) EmployeeNoExists(_ context.Context, no string) (bool, error) {
	_, ok := f.byNo[no]
	return ok, nil
}

func (f *fakeTeachers) ListEmployeeNosIn(_ context.Context, nos []string) ([]string, error) {
	var found []string
	for _, n := range nos {
		if _, ok := f.byNo[n]; ok {
			found = append(found, n)
		}
	}
	return found, nil
}

func (f *fakeTeachers) AddSubjects(_ context.Context, teacherID string, ids []int64) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.subjects[teacherID] = append(f.subjects[teacherID], ids...)
	return nil
}

func (f *fakeTeachers) AddClasses(_ context.Context, teacherID string, ids []int64) error {
	if f.assignErr != nil {
		return f.assignErr
	}
	f.classes[teacherID] = append(f.classes[teacherID], ids...)
	return nil
}

func (f *fakeTeachers) Delete(_ context.Context, id string) error {
	if t, ok := f.rows[id]; ok {
		delete(f.byNo, t.EmployeeNo)
		delete(f.rows, id)
	}
	delete(f.subjects, id)
	delete(f.classes, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeGuardians struct {
	rows     map[string]*models.Guardian
	byNID    map[string]string
	links    []models.StudentGuardian
	deleted  []string
	failWith error
	linkErr  error
}

func newFakeGuardians() *fakeGuardians {
	return &fakeGuardians{rows: map[string]*models.Guardian{}, byNID: map[string]string{}}
}

func (f *fakeGuardians) Create(_ context.Context, g *models.Guardian) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.rows[g.ID] = g
	f.byNID[g.NationalID] = g.ID
	return nil
}

func (f *fakeGuardians) NationalIDExists(_ context.Context, nid string) (bool, error) {
	_, ok := f.byNID[nid]
	return ok, nil
}

func (f *fakeGuardians) ListNationalIDsIn(_ context.Context, nids []string) ([]string, error) {
	var found []string
	for _, n := range nids {
		if _, ok := f.byNID[n]; ok {
			found = append(found, n)
		}
	}
	return found, nil
}

func (f *fakeGuardians) LinkStudents(_ context.Context, links []models.StudentGuardian) error {
	if f.linkErr != nil {
		return f.linkErr
	}
	f.links = append(f.links, links...)
	return nil
}

func (f *fakeGuardians) Delete(_ context.Context, id string) error {
	if g, ok := f.rows[id]; ok {
		delete(f.byNID, g.NationalID)
		delete(f.rows, id)
	}
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeLookups struct {
	classes     map[string]int64
	departments map[string]int64
	subjects    map[string]int64
}

func newFakeLookups() *fakeLookups {
	return &fakeLookups{
		classes:     map[string]int64{"p1 east": 1, "p2 west": 2},
		departments: map[string]int64{"sciences": 10},
		subjects:    map[string]int64{"mathematics": 100, "physics": 101},
	}
}

func (f *fakeLookups) ClassIDByName(_ context.Context, name string) (int64, error) {
	id, ok := f.classes[normalize(name)]
	if !ok {
		return 0, repositories.ErrClassNotFound
	}
	return id, nil
}

func (f *fakeLookups) DepartmentIDByName(_ context.Context, name string) (int64, error) {
	id, ok := f.departments[normalize(name)]
	if !ok {
		return 0, repositories.ErrDepartmentNotFound
	}
	return id, nil
}

func (f *fakeLookups) SubjectIDsByNames(_ context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := f.subjects[normalize(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", repositories.ErrSubjectNotFound, n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLookups) ClassIDsByNames(_ context.Context, names []string) ([]int64, error) {
	ids := make([]int64, 0, len(names))
	for _, n := range names {
		id, ok := f.classes[normalize(n)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", repositories.ErrClassNotFound, n)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func normalize(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r += 'a' - 'A'
		}
		out = append(out, r)
	}
	return string(out)
}

type fakeAids struct {
	awards   map[string][]models.StudentFinancialAid
	written  map[int64]decimal.Decimal
	listErr  error
}

func newFakeAids() *fakeAids {
	return &fakeAids{awards: map[string][]models.StudentFinancialAid{}, written: map[int64]decimal.Decimal{}}
}

func (f *fakeAids) ListQualifying(_ context.Context, studentID string, asOf time.Time) ([]models.StudentFinancialAid, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.StudentFinancialAid
	for _, a := range f.awards[studentID] {
		if a.Qualifies(asOf) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAids) UpdateCalculatedAmount(_ context.Context, aidID int64, amount decimal.Decimal) error {
	f.written[aidID] = amount
	return nil
}

// fakeTx runs the function directly with a nil transaction; the fakes on
// the other side never touch it.
type fakeTx struct{}

func (fakeTx) WithTransaction(ctx context.Context, fn db.TransactionFn) error {
	var tx pgx.Tx
	return fn(ctx, tx)
}
