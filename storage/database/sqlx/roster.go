package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/roster"
)

type (
	userRow struct {
		ID      int    `db:"id"`
		Course  string `db:"course"`
		Email   string `db:"email"`
		Name    string `db:"name"`
		IsStaff bool   `db:"is_staff"`
		IsAdmin bool   `db:"is_admin"`
	}

	sectionRow struct {
		ID             int         `db:"id"`
		Course         string      `db:"course"`
		Type           string      `db:"type"`
		Description    string      `db:"description"`
		Capacity       int         `db:"capacity"`
		CanSelfEnroll  bool        `db:"can_self_enroll"`
		EnrollmentCode null.String `db:"enrollment_code"`
		StaffID        null.Int    `db:"staff_id"`
		Tags           string      `db:"tags"`
		Location       string      `db:"location"`
		StartTime      time.Time   `db:"start_time"`
		EndTime        time.Time   `db:"end_time"`
		CallLink       null.String `db:"call_link"`
	}

	sessionRow struct {
		ID        int       `db:"id"`
		Course    string    `db:"course"`
		SectionID int       `db:"section_id"`
		StartTime time.Time `db:"start_time"`
	}

	attendanceRow struct {
		ID        int    `db:"id"`
		Course    string `db:"course"`
		SessionID int    `db:"session_id"`
		StudentID int    `db:"student_id"`
		Status    string `db:"status"`
	}
)

var (
	userColumns       = []string{"id", "course", "email", "name", "is_staff", "is_admin"}
	sectionColumns    = []string{"id", "course", "type", "description", "capacity", "can_self_enroll", "enrollment_code", "staff_id", "tags", "location", "start_time", "end_time", "call_link"}
	sessionColumns    = []string{"id", "course", "section_id", "start_time"}
	attendanceColumns = []string{"id", "course", "session_id", "student_id", "status"}
)

func (r userRow) toModel() roster.User {
	return roster.User{ID: r.ID, Course: r.Course, Email: r.Email, Name: r.Name, IsStaff: r.IsStaff, IsAdmin: r.IsAdmin}
}

func (r sectionRow) toModel() roster.Section {
	return roster.Section{
		ID:             r.ID,
		Course:         r.Course,
		Type:           core.ParseSectionType(r.Type),
		Description:    r.Description,
		Capacity:       r.Capacity,
		CanSelfEnroll:  r.CanSelfEnroll,
		EnrollmentCode: r.EnrollmentCode.String,
		StaffID:        r.StaffID.Int,
		Tags:           roster.SplitTags(r.Tags),
		Location:       r.Location,
		StartTime:      r.StartTime.UTC(),
		EndTime:        r.EndTime.UTC(),
		CallLink:       r.CallLink.String,
	}
}

// sectionValues maps a section to its columns, without id.
func sectionValues(sec roster.Section) map[string]interface{} {
	return map[string]interface{}{
		"course":          sec.Course,
		"type":            sec.Type.String(),
		"description":     sec.Description,
		"capacity":        sec.Capacity,
		"can_self_enroll": sec.CanSelfEnroll,
		"enrollment_code": null.NewString(sec.EnrollmentCode, sec.EnrollmentCode != ""),
		"staff_id":        null.NewInt(sec.StaffID, sec.StaffID != 0),
		"tags":            sec.TagString(),
		"location":        sec.Location,
		"start_time":      sec.StartTime.UTC(),
		"end_time":        sec.EndTime.UTC(),
		"call_link":       null.NewString(sec.CallLink, sec.CallLink != ""),
	}
}

func (r sessionRow) toModel() roster.Session {
	return roster.Session{ID: r.ID, Course: r.Course, SectionID: r.SectionID, StartTime: r.StartTime.UTC()}
}

func (r attendanceRow) toModel() roster.Attendance {
	return roster.Attendance{
		ID:        r.ID,
		Course:    r.Course,
		SessionID: r.SessionID,
		StudentID: r.StudentID,
		Status:    roster.AttendanceStatus(r.Status),
	}
}

// lock takes a row lock that serializes engines checking the same row but leaves
// foreign key checks (KEY SHARE) of concurrent inserts unblocked.
func lock(b sq.SelectBuilder, forUpdate bool) sq.SelectBuilder {
	if forUpdate {
		return b.Suffix("FOR NO KEY UPDATE")
	}
	return b
}

func userByID(course string, id int, forUpdate bool) sq.SelectBuilder {
	return lock(psql.Select(userColumns...).From(`"user"`).Where(sq.Eq{"course": course, "id": id}), forUpdate)
}

func sectionByID(course string, id int, forUpdate bool) sq.SelectBuilder {
	return lock(psql.Select(sectionColumns...).From("section").Where(sq.Eq{"course": course, "id": id}), forUpdate)
}

func enrollInsert(course string, userID, sectionID int) sq.InsertBuilder {
	return psql.Insert("user_section").
		Columns("course", "user_id", "section_id").
		Values(course, userID, sectionID).
		Suffix("ON CONFLICT (user_id, section_id) DO NOTHING")
}

func sessionInsert(sess roster.Session) sq.InsertBuilder {
	return psql.Insert("session").
		Columns("course", "section_id", "start_time").
		Values(sess.Course, sess.SectionID, sess.StartTime.UTC()).
		Suffix("ON CONFLICT (section_id, start_time) DO NOTHING")
}

// Users

func (t *tx) GetUser(ctx context.Context, course string, id int, forUpdate bool) (roster.User, error) {
	var row userRow
	if err := t.get(ctx, &row, userByID(course, id, forUpdate)); err != nil {
		return roster.User{}, trapNoRowsErr(err, roster.ErrUserNotFound, "getting user")
	}
	return row.toModel(), nil
}

func (t *tx) GetUserByEmail(ctx context.Context, course, email string) (roster.User, error) {
	var row userRow
	b := psql.Select(userColumns...).From(`"user"`).Where(sq.Eq{"course": course, "email": email})
	if err := t.get(ctx, &row, b); err != nil {
		return roster.User{}, trapNoRowsErr(err, roster.ErrUserNotFound, "getting user by email")
	}
	return row.toModel(), nil
}

func (t *tx) QueryUsers(ctx context.Context, course string, filter roster.UserFilter) ([]roster.User, error) {
	b := psql.Select(userColumns...).From(`"user"`).Where(sq.Eq{"course": course}).OrderBy("id")
	if filter.Emails != nil {
		b = b.Where(sq.Eq{"email": filter.Emails})
	}
	if filter.IsStaff != nil {
		b = b.Where(sq.Eq{"is_staff": *filter.IsStaff})
	}
	var rows []userRow
	if err := t.selectAll(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]roster.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}

func (t *tx) CreateUser(ctx context.Context, usr roster.User) (roster.User, error) {
	b := psql.Insert(`"user"`).
		SetMap(map[string]interface{}{
			"course":   usr.Course,
			"email":    usr.Email,
			"name":     usr.Name,
			"is_staff": usr.IsStaff,
			"is_admin": usr.IsAdmin,
		}).
		Suffix("RETURNING id")
	if err := t.get(ctx, &usr.ID, b); err != nil {
		return roster.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (t *tx) UpdateUser(ctx context.Context, usr roster.User) (roster.User, error) {
	b := psql.Update(`"user"`).
		SetMap(map[string]interface{}{
			"email":    usr.Email,
			"name":     usr.Name,
			"is_staff": usr.IsStaff,
			"is_admin": usr.IsAdmin,
		}).
		Where(sq.Eq{"course": usr.Course, "id": usr.ID})
	res, err := t.exec(ctx, b)
	if err != nil {
		return roster.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return roster.User{}, roster.ErrUserNotFound
	}
	return usr, nil
}

// Sections

func (t *tx) GetSection(ctx context.Context, course string, id int, forUpdate bool) (roster.Section, error) {
	var row sectionRow
	if err := t.get(ctx, &row, sectionByID(course, id, forUpdate)); err != nil {
		return roster.Section{}, trapNoRowsErr(err, roster.ErrSectionNotFound, "getting section")
	}
	return row.toModel(), nil
}

func (t *tx) QuerySections(ctx context.Context, course string, filter roster.SectionFilter) ([]roster.Section, error) {
	b := psql.Select(sectionColumns...).From("section").Where(sq.Eq{"course": course}).OrderBy("id")
	if filter.IDs != nil {
		b = b.Where(sq.Eq{"id": filter.IDs})
	}
	if filter.Type != nil {
		b = b.Where(sq.Eq{"type": filter.Type.String()})
	}
	if filter.StaffID != nil {
		b = b.Where(sq.Eq{"staff_id": *filter.StaffID})
	}
	if filter.StartTime != nil {
		b = b.Where(sq.Eq{"start_time": filter.StartTime.UTC()})
	}
	if filter.Location != nil {
		b = b.Where(sq.Eq{"location": *filter.Location})
	}
	return t.sections(ctx, b)
}

func (t *tx) sections(ctx context.Context, b sq.SelectBuilder) ([]roster.Section, error) {
	var rows []sectionRow
	if err := t.selectAll(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying sections")
	}
	sections := make([]roster.Section, 0, len(rows))
	for _, row := range rows {
		sections = append(sections, row.toModel())
	}
	return sections, nil
}

func (t *tx) CreateSection(ctx context.Context, sec roster.Section) (roster.Section, error) {
	b := psql.Insert("section").SetMap(sectionValues(sec)).Suffix("RETURNING id")
	if err := t.get(ctx, &sec.ID, b); err != nil {
		return roster.Section{}, errors.Wrap(err, "inserting section")
	}
	return sec, nil
}

func (t *tx) UpdateSection(ctx context.Context, sec roster.Section) (roster.Section, error) {
	b := psql.Update("section").SetMap(sectionValues(sec)).Where(sq.Eq{"course": sec.Course, "id": sec.ID})
	res, err := t.exec(ctx, b)
	if err != nil {
		return roster.Section{}, errors.Wrap(err, "updating section")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return roster.Section{}, roster.ErrSectionNotFound
	}
	return sec, nil
}

func (t *tx) DeleteSection(ctx context.Context, course string, id int) error {
	res, err := t.exec(ctx, psql.Delete("section").Where(sq.Eq{"course": course, "id": id}))
	if err != nil {
		return errors.Wrap(err, "deleting section")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return roster.ErrSectionNotFound
	}
	return nil
}

// Enrollments

func (t *tx) Enroll(ctx context.Context, course string, userID, sectionID int) error {
	_, err := t.exec(ctx, enrollInsert(course, userID, sectionID))
	return errors.Wrap(err, "enrolling user")
}

func (t *tx) Unenroll(ctx context.Context, course string, userID, sectionID int) (bool, error) {
	b := psql.Delete("user_section").Where(sq.Eq{"course": course, "user_id": userID, "section_id": sectionID})
	res, err := t.exec(ctx, b)
	if err != nil {
		return false, errors.Wrap(err, "unenrolling user")
	}
	n, err := res.RowsAffected()
	return n > 0, errors.Wrap(err, "counting unenrolled rows")
}

func (t *tx) CountEnrolled(ctx context.Context, course string, sectionID int) (int, error) {
	var count int
	b := psql.Select("COUNT(*)").From("user_section").Where(sq.Eq{"course": course, "section_id": sectionID})
	return count, errors.Wrap(t.get(ctx, &count, b), "counting enrolled users")
}

func (t *tx) SectionStudents(ctx context.Context, course string, sectionID int) ([]roster.User, error) {
	b := psql.Select(prefixed("u", userColumns)...).
		From(`"user" u`).
		Join("user_section us ON us.user_id = u.id").
		Where(sq.Eq{"us.course": course, "us.section_id": sectionID}).
		OrderBy("u.id")
	var rows []userRow
	if err := t.selectAll(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying section students")
	}
	users := make([]roster.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toModel())
	}
	return users, nil
}

func (t *tx) StudentSections(ctx context.Context, course string, userID int) ([]roster.Section, error) {
	b := psql.Select(prefixed("s", sectionColumns)...).
		From("section s").
		Join("user_section us ON us.section_id = s.id").
		Where(sq.Eq{"us.course": course, "us.user_id": userID}).
		OrderBy("s.id")
	return t.sections(ctx, b)
}

func prefixed(alias string, columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = alias + "." + col
	}
	return out
}

// Sessions

func (t *tx) GetSession(ctx context.Context, course string, id int) (roster.Session, error) {
	var row sessionRow
	b := psql.Select(sessionColumns...).From("session").Where(sq.Eq{"course": course, "id": id})
	if err := t.get(ctx, &row, b); err != nil {
		return roster.Session{}, trapNoRowsErr(err, roster.ErrSessionNotFound, "getting session")
	}
	return row.toModel(), nil
}

func (t *tx) FindSession(ctx context.Context, course string, sectionID int, startTime time.Time) (roster.Session, error) {
	var row sessionRow
	b := psql.Select(sessionColumns...).
		From("session").
		Where(sq.Eq{"course": course, "section_id": sectionID, "start_time": startTime.UTC()})
	if err := t.get(ctx, &row, b); err != nil {
		return roster.Session{}, trapNoRowsErr(err, roster.ErrSessionNotFound, "finding session")
	}
	return row.toModel(), nil
}

func (t *tx) CreateSession(ctx context.Context, sess roster.Session) (roster.Session, error) {
	if _, err := t.exec(ctx, sessionInsert(sess)); err != nil {
		return roster.Session{}, errors.Wrap(err, "inserting session")
	}
	return t.FindSession(ctx, sess.Course, sess.SectionID, sess.StartTime)
}

func (t *tx) QuerySessions(ctx context.Context, course string, sectionIDs ...int) ([]roster.Session, error) {
	b := psql.Select(sessionColumns...).From("session").Where(sq.Eq{"course": course}).OrderBy("id")
	if len(sectionIDs) > 0 {
		b = b.Where(sq.Eq{"section_id": sectionIDs})
	}
	var rows []sessionRow
	if err := t.selectAll(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]roster.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toModel())
	}
	return sessions, nil
}

func (t *tx) DeleteSessions(ctx context.Context, course string, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.exec(ctx, psql.Delete("session").Where(sq.Eq{"course": course, "id": ids}))
	return errors.Wrap(err, "deleting sessions")
}

// Attendances

func (t *tx) QueryAttendances(ctx context.Context, course string, filter roster.AttendanceFilter) ([]roster.Attendance, error) {
	b := psql.Select(attendanceColumns...).From("attendance").Where(sq.Eq{"course": course}).OrderBy("id")
	if filter.SessionIDs != nil {
		b = b.Where(sq.Eq{"session_id": filter.SessionIDs})
	}
	if filter.StudentID != 0 {
		b = b.Where(sq.Eq{"student_id": filter.StudentID})
	}
	var rows []attendanceRow
	if err := t.selectAll(ctx, &rows, b); err != nil {
		return nil, errors.Wrap(err, "querying attendances")
	}
	atts := make([]roster.Attendance, 0, len(rows))
	for _, row := range rows {
		atts = append(atts, row.toModel())
	}
	return atts, nil
}

func (t *tx) CreateAttendance(ctx context.Context, att roster.Attendance) (roster.Attendance, error) {
	b := psql.Insert("attendance").
		Columns("course", "session_id", "student_id", "status").
		Values(att.Course, att.SessionID, att.StudentID, string(att.Status)).
		Suffix("RETURNING id")
	if err := t.get(ctx, &att.ID, b); err != nil {
		return roster.Attendance{}, errors.Wrap(err, "inserting attendance")
	}
	return att, nil
}

func (t *tx) DeleteAttendance(ctx context.Context, course string, sessionID, studentID int) error {
	b := psql.Delete("attendance").Where(sq.Eq{"course": course, "session_id": sessionID, "student_id": studentID})
	_, err := t.exec(ctx, b)
	return errors.Wrap(err, "deleting attendance")
}

func (t *tx) DeleteSessionAttendances(ctx context.Context, course string, sessionIDs ...int) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := t.exec(ctx, psql.Delete("attendance").Where(sq.Eq{"course": course, "session_id": sessionIDs}))
	return errors.Wrap(err, "deleting session attendances")
}
