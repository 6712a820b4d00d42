// Package web wires the HTTP surface: the fiber app, the request
// middleware chain and every handler.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	accesslog "github.com/intrafind/ihub-apps-sub012/internal/logger/adapter/fiber"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	adminclient "github.com/intrafind/ihub-apps-sub012/internal/web/handler/admin/client"
	admingroup "github.com/intrafind/ihub-apps-sub012/internal/web/handler/admin/group"
	adminuser "github.com/intrafind/ihub-apps-sub012/internal/web/handler/admin/user"
	ldaphandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/ldap"
	localhandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/local"
	ntlmhandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/ntlm"
	oidchandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/oidc"
	statushandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/status"
	teamshandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/teams"
	tokenhandler "github.com/intrafind/ihub-apps-sub012/internal/web/handler/auth/token"
	"github.com/intrafind/ihub-apps-sub012/internal/web/handler/logout"
	authmw "github.com/intrafind/ihub-apps-sub012/internal/web/middleware/auth"
)

// Providers bundles the authentication collaborators built by the
// daemon. Nil members mean the corresponding mode is disabled.
type Providers struct {
	Sessions   *session.Manager
	Reconciler *auth.Reconciler
	Groups     *groups.Store
	OIDC       *auth.OIDCRegistry
	NTLM       *auth.NTLMProvider
	Teams      *auth.TeamsProvider
}

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	db           *gorm.DB
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB, providers *Providers) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if db == nil {
		panic("db cannot be nil")
	}

	if providers == nil {
		panic("providers cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "ihub-auth",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: "/checkalive",
	}))

	service := &Service{
		cfg: cfg,
		App: app,
		db:  db,
	}

	app.Get("/checkalive", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// principal resolution on every request
	app.Use(authmw.Middleware(providers.Sessions, providers.Groups))

	// authentication endpoints
	localhandler.Handler.Init(app, cfg, db, providers.Reconciler, providers.Sessions)
	ldaphandler.Handler.Init(app, cfg, db, providers.Reconciler, providers.Sessions)
	oidchandler.Handler.Init(app, cfg, db, providers.OIDC, providers.Reconciler, providers.Sessions)
	ntlmhandler.Handler.Init(app, cfg, db, providers.NTLM, providers.Reconciler, providers.Sessions)
	teamshandler.Handler.Init(app, cfg, db, providers.Teams, providers.Reconciler, providers.Sessions)
	tokenhandler.Handler.Init(app, cfg, db, providers.Sessions)
	statushandler.Handler.Init(app, cfg, db, providers.Sessions, providers.Groups)
	logout.Handler.Init(app, cfg)

	// admin endpoints
	adminuser.Handler.Init(app, cfg, db, providers.Groups)
	adminclient.Handler.Init(app, cfg, db)
	admingroup.Handler.Init(app, cfg, db, providers.Groups)

	service.alive.Store(true)

	return service
}
