package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"

	"github.com/trezcool/sections/core/policy"
)

var configColumns = []string{
	"course",
	"can_students_join_lab", "can_students_join_disc", "can_students_join_tutoring",
	"can_students_change_lab", "can_students_change_disc", "can_students_change_tutoring",
	"can_tutors_change_lab", "can_tutors_change_disc", "can_tutors_change_tutoring",
	"can_tutors_reassign_lab", "can_tutors_reassign_disc", "can_tutors_reassign_tutoring",
	"message",
}

type configRow struct {
	Course                    string `db:"course"`
	CanStudentsJoinLab        bool   `db:"can_students_join_lab"`
	CanStudentsJoinDisc       bool   `db:"can_students_join_disc"`
	CanStudentsJoinTutoring   bool   `db:"can_students_join_tutoring"`
	CanStudentsChangeLab      bool   `db:"can_students_change_lab"`
	CanStudentsChangeDisc     bool   `db:"can_students_change_disc"`
	CanStudentsChangeTutoring bool   `db:"can_students_change_tutoring"`
	CanTutorsChangeLab        bool   `db:"can_tutors_change_lab"`
	CanTutorsChangeDisc       bool   `db:"can_tutors_change_disc"`
	CanTutorsChangeTutoring   bool   `db:"can_tutors_change_tutoring"`
	CanTutorsReassignLab      bool   `db:"can_tutors_reassign_lab"`
	CanTutorsReassignDisc     bool   `db:"can_tutors_reassign_disc"`
	CanTutorsReassignTutoring bool   `db:"can_tutors_reassign_tutoring"`
	Message                   string `db:"message"`
}

func (t *tx) GetConfig(ctx context.Context, course string) (policy.Config, error) {
	var row configRow
	b := psql.Select(configColumns...).From("course_config").Where(sq.Eq{"course": course})
	if err := t.get(ctx, &row, b); err != nil {
		return policy.Config{}, trapNoRowsErr(err, policy.ErrNotFound, "getting course config")
	}
	return policy.Config(row), nil
}

// CreateConfig inserts cfg, or returns the row a concurrent request created first.
func (t *tx) CreateConfig(ctx context.Context, cfg policy.Config) (policy.Config, error) {
	b := psql.Insert("course_config").
		SetMap(configValues(cfg)).
		Suffix("ON CONFLICT (course) DO NOTHING")
	if _, err := t.exec(ctx, b); err != nil {
		return policy.Config{}, errors.Wrap(err, "inserting course config")
	}
	return t.GetConfig(ctx, cfg.Course)
}

func (t *tx) SaveConfig(ctx context.Context, cfg policy.Config) (policy.Config, error) {
	values := configValues(cfg)
	delete(values, "course")
	b := psql.Update("course_config").SetMap(values).Where(sq.Eq{"course": cfg.Course})
	res, err := t.exec(ctx, b)
	if err != nil {
		return policy.Config{}, errors.Wrap(err, "updating course config")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return policy.Config{}, policy.ErrNotFound
	}
	return cfg, nil
}

func configValues(cfg policy.Config) map[string]interface{} {
	values := map[string]interface{}{"course": cfg.Course, "message": cfg.Message}
	for key, allowed := range cfg.Toggles() {
		values[key] = allowed
	}
	return values
}
