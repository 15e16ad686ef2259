package inmem

import (
	"context"
	"sync"

	"github.com/trezcool/sections/core/policy"
	"github.com/trezcool/sections/core/roster"
)

type (
	// DB is an in-memory roster.Store. Transactions run one at a time on a
	// working copy that replaces the committed tables only when they succeed.
	DB struct {
		mu     sync.Mutex
		tables *tables
	}

	enrollKey struct {
		userID    int
		sectionID int
	}

	tables struct {
		pkCount     int
		users       map[int]roster.User
		sections    map[int]roster.Section
		enrollments map[enrollKey]string // -> course
		sessions    map[int]roster.Session
		attendances map[int]roster.Attendance
		configs     map[string]policy.Config
	}
)

var _ roster.Store = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{tables: newTables()}
}

func newTables() *tables {
	return &tables{
		users:       make(map[int]roster.User),
		sections:    make(map[int]roster.Section),
		enrollments: make(map[enrollKey]string),
		sessions:    make(map[int]roster.Session),
		attendances: make(map[int]roster.Attendance),
		configs:     make(map[string]policy.Config),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	c.pkCount = t.pkCount
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.sections {
		v.Tags = append([]string(nil), v.Tags...)
		c.sections[k] = v
	}
	for k, v := range t.enrollments {
		c.enrollments[k] = v
	}
	for k, v := range t.sessions {
		c.sessions[k] = v
	}
	for k, v := range t.attendances {
		c.attendances[k] = v
	}
	for k, v := range t.configs {
		c.configs[k] = v
	}
	return c
}

func (t *tables) nextID() int {
	t.pkCount++
	return t.pkCount
}

func (db *DB) Atomic(ctx context.Context, fn func(tx roster.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := db.tables.clone()
	if err := fn(&tx{t: work}); err != nil {
		return err
	}
	db.tables = work
	return nil
}

type tx struct {
	t *tables
}

var _ roster.Tx = (*tx)(nil) // interface compliance check

func (tx *tx) ResetCourse(_ context.Context, course string) error {
	t := tx.t
	for id, att := range t.attendances {
		if att.Course == course {
			delete(t.attendances, id)
		}
	}
	for id, sess := range t.sessions {
		if sess.Course == course {
			delete(t.sessions, id)
		}
	}
	for key, c := range t.enrollments {
		if c == course {
			delete(t.enrollments, key)
		}
	}
	for id, sec := range t.sections {
		if sec.Course == course {
			delete(t.sections, id)
		}
	}
	for id, usr := range t.users {
		if usr.Course == course {
			delete(t.users, id)
		}
	}
	return nil
}

func (tx *tx) GetConfig(_ context.Context, course string) (policy.Config, error) {
	if cfg, ok := tx.t.configs[course]; ok {
		return cfg, nil
	}
	return policy.Config{}, policy.ErrNotFound
}

func (tx *tx) CreateConfig(_ context.Context, cfg policy.Config) (policy.Config, error) {
	if existing, ok := tx.t.configs[cfg.Course]; ok {
		return existing, nil
	}
	tx.t.configs[cfg.Course] = cfg
	return cfg, nil
}

func (tx *tx) SaveConfig(_ context.Context, cfg policy.Config) (policy.Config, error) {
	if _, ok := tx.t.configs[cfg.Course]; !ok {
		return policy.Config{}, policy.ErrNotFound
	}
	tx.t.configs[cfg.Course] = cfg
	return cfg, nil
}
