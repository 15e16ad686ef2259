package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/sections/core"
	"github.com/trezcool/sections/core/attendance"
	"github.com/trezcool/sections/core/enrollment"
	"github.com/trezcool/sections/core/importer"
	"github.com/trezcool/sections/core/report"
	"github.com/trezcool/sections/core/roster"
	"github.com/trezcool/sections/services/identity"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Store      roster.Store
		Enrollment *enrollment.Service
		Attendance *attendance.Service
		Reports    *report.Service
		Importer   *importer.Service
		MailSvc    core.EmailService
		Issuer     *identity.TokenIssuer
		Directory  *identity.Directory
		Validate   *validator.Validate
		Translator ut.Translator
		// OpenSheet opens the spreadsheet behind an import url; Google Sheets when nil.
		OpenSheet func(ctx context.Context, url string) (importer.Source, error)
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.Conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = s.Conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api", s.jwtMiddleware(), s.actorMiddleware)
	registerSectionsAPI(g, s.ServerDeps)
	registerAdminAPI(g, s.ServerDeps)
}

// Start listens until the server is shut down; unexpected errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+"!")
}
