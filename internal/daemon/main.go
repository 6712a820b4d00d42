// Package daemon assembles the running service: database, group
// catalog, authentication providers and the web surface.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/storage"
	storagememory "github.com/gofiber/storage/memory/v2"
	storagemysql "github.com/gofiber/storage/mysql/v2"
	storagepostgres "github.com/gofiber/storage/postgres/v3"
	"github.com/rs/zerolog/log"
	gormmysql "gorm.io/driver/mysql"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/intrafind/ihub-apps-sub012/internal/auth"
	"github.com/intrafind/ihub-apps-sub012/internal/config"
	"github.com/intrafind/ihub-apps-sub012/internal/db/dsn"
	"github.com/intrafind/ihub-apps-sub012/internal/db/models"
	"github.com/intrafind/ihub-apps-sub012/internal/groups"
	"github.com/intrafind/ihub-apps-sub012/internal/session"
	"github.com/intrafind/ihub-apps-sub012/internal/web"
	"github.com/intrafind/ihub-apps-sub012/internal/web/state"
)

// ntlmCodec is the NTLM message codec wired at build/deploy time. The
// binary message handling ships separately; without it NTLM stays off
// even when enabled in config.
var ntlmCodec auth.NTLMCodec

// RegisterNTLMCodec installs the NTLM message codec. Must be called
// before New.
func RegisterNTLMCodec(codec auth.NTLMCodec) {
	ntlmCodec = codec
}

// Daemon represents the main application daemon.
type Daemon struct {
	webService *web.Service
	cfg        *config.Config
	groupStore *groups.Store
	oidc       *auth.OIDCRegistry
	ntlm       *auth.NTLMProvider
}

// Start starts the Daemon's web service.
func (d *Daemon) Start() error {
	return d.webService.Start(fmt.Sprintf(":%d", d.cfg.Webserver.Port))
}

// WaitShutdown blocks until the web service has shut down.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db := openDatabase(cfg)

	if err := db.AutoMigrate(
		&models.UserAccount{},
		&models.OAuthClient{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	seed(cfg, db)

	catalog, err := groups.LoadCatalog(cfg.Auth.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load group catalog")
	}

	groupStore, err := groups.NewStore(catalog, cfg.Auth.AnonymousGroups)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve group catalog")
	}

	state.Init(newStateStorage(cfg))

	reconciler := auth.NewReconciler(db, groupStore)
	sessions := session.NewManager(cfg.Auth.Secret, db, reconciler)

	providers := &web.Providers{
		Sessions:   sessions,
		Reconciler: reconciler,
		Groups:     groupStore,
	}

	if cfg.Auth.OIDC.Enabled {
		providers.OIDC = auth.NewOIDCRegistry(context.Background(), cfg.Auth.OIDC)
	}

	if cfg.Auth.NTLM.Enabled {
		if ntlmCodec == nil {
			log.Warn().Msg("NTLM enabled but no message codec registered, NTLM stays off")
		} else {
			providers.NTLM = auth.NewNTLMProvider(cfg.Auth.NTLM, ntlmCodec)
		}
	}

	if cfg.Auth.Teams.Enabled {
		var graph auth.GraphClient
		if cfg.Auth.Teams.FetchGraphGroups {
			graph = auth.NewMSGraphClient()
		}

		providers.Teams = auth.NewTeamsProvider(context.Background(), cfg.Auth.Teams, graph)
	}

	d := &Daemon{
		webService: web.New(cfg, db, providers),
		cfg:        cfg,
		groupStore: groupStore,
		oidc:       providers.OIDC,
		ntlm:       providers.NTLM,
	}

	go d.watchReload()
	go d.sweepHandshakes()

	return d
}

// openDatabase connects with the engine selected in configuration.
func openDatabase(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector

	switch cfg.DB.GormEngine {
	case "sqlite":
		dialector = sqlite.Open(dsn.Create(cfg))
	case "postgres":
		dialector = gormpostgres.Open(dsn.Create(cfg))
	default:
		dialector = gormmysql.Open(dsn.Create(cfg))
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	return db
}

// newStateStorage picks the login state backend matching the database
// engine, so multi-instance deployments share state through their
// database.
func newStateStorage(cfg *config.Config) storage.Storage {
	switch cfg.DB.GormEngine {
	case "mysql":
		return storagemysql.New(storagemysql.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "login_states",
		})
	case "postgres":
		return storagepostgres.New(storagepostgres.Config{
			ConnectionURI: dsn.Create(cfg),
			Table:         "login_states",
		})
	default:
		return storagememory.New()
	}
}

// sweepHandshakes periodically clears stalled NTLM handshakes.
func (d *Daemon) sweepHandshakes() {
	if d.ntlm == nil {
		return
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		d.ntlm.Sweep()
	}
}

// watchReload re-reads the group catalog and the OIDC provider set on
// SIGHUP. A broken catalog keeps the running one.
func (d *Daemon) watchReload() {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)

	for range hup {
		log.Info().Msg("reload request (SIGHUP)")

		catalog, err := groups.LoadCatalog(d.cfg.Auth.CatalogPath)
		if err != nil {
			log.Error().Err(err).Msg("group catalog reload failed, keeping current catalog")
		} else if err := d.groupStore.Reload(catalog); err != nil {
			log.Error().Err(err).Msg("group catalog rejected, keeping current catalog")
		} else {
			log.Info().Msg("group catalog reloaded")
		}

		if d.oidc != nil {
			d.oidc.Reload(context.Background(), d.cfg.Auth.OIDC)
			log.Info().Strs("providers", d.oidc.Names()).Msg("OIDC providers reloaded")
		}

		if d.ntlm != nil {
			d.ntlm.Reload(d.cfg.Auth.NTLM)
		}
	}
}
