package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/taskmaster/tracker/internal/adapters/changefeed"
	"github.com/taskmaster/tracker/internal/adapters/docstore"
	"github.com/taskmaster/tracker/internal/adapters/identity"
	"github.com/taskmaster/tracker/internal/application/services"
	"github.com/taskmaster/tracker/internal/infrastructure/config"
	"github.com/taskmaster/tracker/internal/infrastructure/database"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

const identityClientTimeout = 15 * time.Second

// application holds the wired collaborators of one process
type application struct {
	config   *config.Config
	logger   *logger.Logger
	registry *prometheus.Registry
	db       *database.DB
	store    ports.DocumentStore
	tasks    *services.TaskStore
	workLogs *services.WorkLogStore
	auth     *services.AuthGateway
	closers  []func() error
}

// newApplication connects the configured backends. Close releases them in reverse order.
func newApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*application, error) {
	app := &application{
		config:   cfg,
		logger:   log,
		registry: prometheus.NewRegistry(),
	}
	wired := false
	defer func() {
		if !wired {
			app.Close()
		}
	}()

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	var db *database.DB
	if cfg.DocStore.Driver == "sql" || cfg.Realtime.Driver == "postgres" {
		if cfg.DocStore.Driver == "sql" {
			if err := database.Migrate(cfg.Database); err != nil {
				return nil, fmt.Errorf("failed to migrate database: %w", err)
			}
		}
		db, err = database.New(cfg.Database)
		if err != nil {
			return nil, err
		}
		app.db = db
		app.closers = append(app.closers, db.Close)
		log.Infow("Database connected", "driver", cfg.Database.Driver)
	}

	feed, err := newChangeFeed(ctx, cfg, db, log)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, feed.Close)

	var store ports.DocumentStore
	switch cfg.DocStore.Driver {
	case "sql":
		store, err = docstore.NewSQLStore(db, feed, log)
		if err != nil {
			return nil, err
		}
	default:
		store = docstore.NewMemoryStore(feed, log)
	}
	app.store = docstore.NewInstrumented(store, app.registry, log)

	var provider ports.IdentityProvider
	switch cfg.Auth.Provider {
	case "firebase":
		provider, err = identity.NewFirebaseProvider(ctx, cfg.Auth.Firebase, &http.Client{Timeout: identityClientTimeout}, log)
		if err != nil {
			return nil, err
		}
	default:
		provider = identity.NewLocalProvider(app.store, cfg.Auth.JWT, cfg.Auth.Google.ClientID, log)
	}

	var google ports.OAuthFlow
	if cfg.Auth.Google.Enabled() {
		google = identity.NewGoogleFlow(cfg.Auth.Google)
	}

	app.tasks = services.NewTaskStore(app.store, loc, log)
	app.workLogs = services.NewWorkLogStore(app.store, log)
	app.auth = services.NewAuthGateway(provider, google, log)

	log.Infow("Application wired",
		"docstore", cfg.DocStore.Driver,
		"realtime", cfg.Realtime.Driver,
		"auth_provider", cfg.Auth.Provider,
		"google_sign_in", google != nil,
		"timezone", loc.String(),
	)
	wired = true
	return app, nil
}

func newChangeFeed(ctx context.Context, cfg *config.Config, db *database.DB, log *logger.Logger) (ports.ChangeFeed, error) {
	switch cfg.Realtime.Driver {
	case "postgres":
		return changefeed.NewPGNotify(db.DB, cfg.Database.GetDSN(), cfg.Realtime.Channel, log)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		feed, err := changefeed.NewRedis(ctx, client, cfg.Realtime.Channel+":", log)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &redisFeed{Redis: feed, client: client}, nil
	default:
		return changefeed.NewLocal(), nil
	}
}

// redisFeed closes the client it owns along with the feed
type redisFeed struct {
	*changefeed.Redis
	client *redis.Client
}

func (f *redisFeed) Close() error {
	return errors.Join(f.Redis.Close(), f.client.Close())
}

// Close releases every backend, newest first
func (app *application) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i]())
	}
	app.closers = nil
	return errors.Join(errs...)
}
