package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/trezcool/sections/apps/api/echo"
	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/attendance"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/report"
	emailsvc "github.com/trezcool/sections/services/email"
	"github.com/trezcool/sections/services/identity"
	logsvc "github.com/trezcool/sections/services/logger"
	"github.com/trezcool/sections/storage/database"
	sqlxrepos "github.com/trezcool/sections/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := newLogger("API", conf)

	logger.Info(fmt.Sprintf("sections api starting: course %q, build %q", conf.Course, conf.Build))
	if err := run(conf, logger); err != nil {
		logger.Fatal(err.Error(), err)
	}
	logger.Info("sections api stopped")
}

func newLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, prefix+" : ", log.LstdFlags|log.Lmicroseconds), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func run(conf *core.Config, logger core.Logger) error {
	db, err := setUpDB(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() { _ = db.Close() }()
	store := sqlxrepos.NewStore(db, newLogger("DB", conf))

	var mailSvc core.EmailService = emailsvc.NewSendgridService(conf, logger)
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, os.Stdout)
	}

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	go serveDebug(conf, logger)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Store:      store,
		Enrollment: enrollment.NewService(store, logger),
		Attendance: attendance.NewService(store),
		Reports:    report.NewService(store, conf.Term),
		Importer:   importer.NewService(store, logger, conf.Term.ImportWeekStart),
		MailSvc:    mailSvc,
		Issuer:     identity.NewTokenIssuer(conf),
		Directory:  identity.NewDirectory(conf),
		Validate:   validate,
		Translator: translator,
	})
	go server.Start()

	select {
	case err = <-server.Errors():
		return errors.Wrap(err, "serving api")
	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: shutting down", sig))
		return shutdown(server, conf)
	}
}

// shutdown drains in-flight requests until the configured timeout, then forces the listener closed.
func shutdown(server *echoapi.Server, conf *core.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		if cErr := server.Close(); cErr != nil {
			return errors.Wrap(cErr, "forcing server close")
		}
		return errors.Wrap(err, "draining requests")
	}
	return nil
}

// serveDebug exposes /debug/pprof and /debug/vars on the debug host.
func serveDebug(conf *core.Config, logger core.Logger) {
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("course").Set(conf.Course)

	if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
		logger.Error("debug server closed", err)
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(context.Background(), db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	return translator
}
