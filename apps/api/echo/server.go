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

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/notification"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/stats"
	"github.com/tmalinga/vikundi/core/user"
)

type (
	// ServerDeps carries everything the HTTP layer needs; main wires it up.
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		UserSvc    user.ServiceInterface
		GroupSvc   *group.Service
		SessionSvc *session.Service
		NotifSvc   *notification.Service
		StatsSvc   *stats.Service
		Validate   *validator.Validate
		Translator ut.Translator
	}

	Server struct {
		addr     string
		deps     ServerDeps
		app      *echo.Echo
		errs     chan error
		shutdown chan os.Signal
	}
)

func NewServer(addr string, deps ServerDeps) *Server {
	s := &Server{
		addr:     addr,
		deps:     deps,
		app:      echo.New(),
		errs:     make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	initAuth(deps.Conf)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(jwtConfig)

	registerUserAPI(v1, jwt, s.deps.UserSvc, s.deps.Validate, s.deps.Translator)
	registerGroupAPI(v1, jwt, s.deps.GroupSvc, s.deps.UserSvc, s.deps.Validate)
	registerSessionAPI(v1, jwt, s.deps.SessionSvc, s.deps.GroupSvc, s.deps.UserSvc, s.deps.Validate)
	registerNotificationAPI(v1, jwt, s.deps.NotifSvc, s.deps.UserSvc)
	registerStatsAPI(v1, jwt, s.deps.StatsSvc, s.deps.GroupSvc, s.deps.UserSvc)
}

func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errs <- err
	}
}

// Errors reports fatal listener errors.
func (s *Server) Errors() <-chan error {
	return s.errs
}

// ShutdownSignal fires on SIGINT/SIGTERM or on an integrity error caught by
// the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
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
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
