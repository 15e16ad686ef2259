// Package testutil holds the fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/access"
	"github.com/trezcool/sections/core/roster"
	"github.com/trezcool/sections/storage/database/inmem"
)

const Course = "cs61a"

// Monday of the week sections are placed in.
var WeekStart = time.Date(2021, 8, 23, 0, 0, 0, 0, time.UTC)

func NewConfig() *core.Config {
	return &core.Config{
		TestMode:        true,
		Env:             "TEST",
		AppName:         "Sections",
		Build:           "test",
		SecretKey:       "test-secret",
		FrontendBaseURL: "https://sections.test",
		Course:          Course,
		Server: core.ServerConfig{
			Host:               "sections.test",
			Address:            ":0",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
		},
		Term: core.TermConfig{
			Location:        time.UTC,
			FirstWeekStart:  time.Date(2022, 6, 27, 0, 0, 0, 0, time.UTC),
			IsSummer:        true,
			MaxAbsences:     2,
			ImportWeekStart: WeekStart,
		},
	}
}

func NewStore() *inmem.DB {
	return inmem.Open()
}

// LogEntry is one message recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
}

// Logger records messages instead of printing them.
type Logger struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg})
}

func (l *Logger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

func (l *Logger) Debug(msg string, _ ...interface{}) { l.log("debug", msg) }
func (l *Logger) Info(msg string, _ ...interface{})  { l.log("info", msg) }
func (l *Logger) Warn(msg string, _ ...interface{})  { l.log("warn", msg) }
func (l *Logger) Error(msg string, _ ...interface{}) { l.log("error", msg) }
func (l *Logger) Fatal(msg string, _ ...interface{}) { l.log("fatal", msg) }

func CreateUser(t *testing.T, store roster.Store, email string, isStaff, isAdmin bool) roster.User {
	t.Helper()
	var usr roster.User
	err := store.Atomic(context.Background(), func(tx roster.Tx) (err error) {
		usr, err = roster.SyncLogin(context.Background(), tx, Course, email, "", isStaff, isAdmin)
		return err
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, store roster.Store, email string) roster.User {
	t.Helper()
	return CreateUser(t, store, email, false, false)
}

func CreateStaff(t *testing.T, store roster.Store, email string) roster.User {
	t.Helper()
	return CreateUser(t, store, email, true, false)
}

func CreateAdmin(t *testing.T, store roster.Store, email string) roster.User {
	t.Helper()
	return CreateUser(t, store, email, true, true)
}

// SectionAt is a one-hour section of typ starting hour hours into the reference week,
// open to self enrollment.
func SectionAt(typ core.SectionType, capacity, hour int) roster.Section {
	start := WeekStart.Add(time.Duration(hour) * time.Hour)
	return roster.Section{
		Course:        Course,
		Type:          typ,
		Capacity:      capacity,
		CanSelfEnroll: true,
		Tags:          []string{},
		Location:      fmt.Sprintf("Room %d", hour),
		StartTime:     start,
		EndTime:       start.Add(time.Hour),
	}
}

func CreateSection(t *testing.T, store roster.Store, sec roster.Section) roster.Section {
	t.Helper()
	err := store.Atomic(context.Background(), func(tx roster.Tx) (err error) {
		sec, err = tx.CreateSection(context.Background(), sec)
		return err
	})
	if err != nil {
		t.Fatalf("CreateSection() failed: %v", err)
	}
	return sec
}

func Enroll(t *testing.T, store roster.Store, userID, sectionID int) {
	t.Helper()
	err := store.Atomic(context.Background(), func(tx roster.Tx) error {
		return tx.Enroll(context.Background(), Course, userID, sectionID)
	})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}

// Students returns the emails of the students of a section, ascending by id.
func Students(t *testing.T, store roster.Store, sectionID int) []string {
	t.Helper()
	emails := make([]string, 0)
	err := store.Atomic(context.Background(), func(tx roster.Tx) error {
		users, err := tx.SectionStudents(context.Background(), Course, sectionID)
		for _, usr := range users {
			emails = append(emails, usr.Email)
		}
		return err
	})
	if err != nil {
		t.Fatalf("Students() failed: %v", err)
	}
	return emails
}

func Actor(usr roster.User) access.Actor {
	return access.NewActor(Course, usr)
}
