package logsvc

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/roster"
)

// RollbarLogger writes every entry to a std logger and reports it to Rollbar,
// tagged with the course and the acting user.
type RollbarLogger struct {
	std    *log.Logger
	course string
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std, course: conf.Course}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is one log call with its arguments sorted out.
type entry struct {
	level  string
	msg    string
	person *roster.User
	extras map[string]interface{}
	values []interface{}
}

// newEntry accepts, in any order: errors and other values, extra fields as
// map[string]interface{}, and the acting roster.User (the first one with an id wins).
func (l *RollbarLogger) newEntry(level, msg string, args []interface{}) entry {
	e := entry{level: level, msg: msg, extras: map[string]interface{}{"course": l.course}}
	for _, arg := range args {
		switch v := arg.(type) {
		case roster.User:
			if e.person == nil && v.ID != 0 {
				usr := v
				e.person = &usr
			}
		case map[string]interface{}:
			for key, val := range v {
				e.extras[key] = val
			}
		default:
			e.values = append(e.values, v)
		}
	}
	return e
}

func (e entry) line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.level, e.msg)
	if e.person != nil {
		fmt.Fprintf(&b, " | user %d <%s>", e.person.ID, e.person.Email)
	}
	for _, v := range e.values {
		fmt.Fprintf(&b, " | %+v", v)
	}
	return b.String()
}

func (l *RollbarLogger) log(level, msg string, args []interface{}) entry {
	e := l.newEntry(level, msg, args)
	if e.person != nil {
		rollbar.SetPerson(strconv.Itoa(e.person.ID), e.person.Name, e.person.Email)
	} else {
		rollbar.ClearPerson()
	}

	items := append([]interface{}{msg}, e.values...)
	rollbar.Log(level, append(items, e.extras)...)
	l.std.Println(e.line())
	return e
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) { l.log(rollbar.DEBUG, msg, args) }
func (l *RollbarLogger) Info(msg string, args ...interface{})  { l.log(rollbar.INFO, msg, args) }
func (l *RollbarLogger) Warn(msg string, args ...interface{})  { l.log(rollbar.WARN, msg, args) }
func (l *RollbarLogger) Error(msg string, args ...interface{}) { l.log(rollbar.ERR, msg, args) }

// Fatal flushes pending reports before exiting.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.log(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(e.msg)
}
