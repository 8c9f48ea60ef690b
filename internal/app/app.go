// Package app builds the shared dependency graph used by the binaries.
package app

import (
	"fmt"
	"log/slog"

	"gigbook/internal/cache"
	"gigbook/internal/config"
	"gigbook/internal/conversations"
	"gigbook/internal/database"
	"gigbook/internal/external"
	"gigbook/internal/messaging"
	"gigbook/internal/permissions"
	"gigbook/internal/repository"
	"gigbook/internal/search"
	"gigbook/internal/service"
	"gigbook/internal/store"
)

// App holds every connection a binary may need. Optional backends that are
// not configured stay nil.
type App struct {
	Config   *config.Config
	DB       *database.DB
	Store    store.Store
	Repos    *repository.Repositories
	Resolver *permissions.Resolver
	Services *service.Services
	Index    *search.GigIndex
	NATS     *messaging.NATSClient
	AMQP     *messaging.AMQPClient
	Valkey   *cache.ValkeyClient
}

// New connects the configured backends and builds the services. clientID
// names this process on the NATS cluster.
func New(cfg *config.Config, clientID string) (*App, error) {
	a := &App{Config: cfg}

	if err := a.openStore(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openBrokers(clientID); err != nil {
		a.Close()
		return nil, err
	}

	opts := service.Options{
		Currency:       cfg.Stripe.Currency,
		ClearingWindow: cfg.Escrow.ClearingWindow,
		WriteChunkSize: cfg.Escrow.WriteChunkSize,
	}

	if cfg.Stripe.SecretKey != "" {
		opts.Payments = external.NewStripeProcessor(cfg.Stripe)
	} else {
		slog.Warn("STRIPE_SECRET_KEY is not set, payments are disabled")
	}

	if cfg.Valkey.Addr != "" {
		valkey, err := cache.NewValkeyClient(cfg.Valkey)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Valkey = valkey
		opts.Idempotency = valkey
	}

	if cfg.Elasticsearch.URL != "" {
		index, err := search.NewGigIndex(cfg.Elasticsearch)
		if err != nil {
			// Search is a mirror; the API runs without it.
			slog.Error("Failed to initialize gig search, continuing without it", "error", err)
		} else {
			a.Index = index
			opts.Index = index
		}
	}

	switch {
	case a.NATS != nil:
		opts.Synchronizer = conversations.NewNATSPublisher(a.NATS)
	case a.AMQP != nil:
		opts.Synchronizer = conversations.NewAMQPPublisher(a.AMQP)
	}

	a.Repos = repository.NewRepositories(a.Store)
	a.Resolver = permissions.NewResolver(permissions.DefaultCatalog(), a.Repos.Teams)
	a.Services = service.NewServices(a.Repos, a.Resolver, opts)
	return a, nil
}

func (a *App) openStore() error {
	switch a.Config.StoreBackend {
	case config.StoreBackendMemory:
		slog.Warn("Using the in-memory store, data is lost on exit")
		a.Store = store.NewMemoryStore()
		return nil
	case config.StoreBackendPostgres:
		db, err := database.Connect(a.Config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.Store = store.NewPostgresStore(db)
		return nil
	default:
		return fmt.Errorf("unknown store backend %q", a.Config.StoreBackend)
	}
}

func (a *App) openBrokers(clientID string) error {
	switch a.Config.ConversationsBackend {
	case config.ConversationsNATS:
		natsCfg := a.Config.NATS
		if clientID != "" {
			natsCfg.ClientID = clientID
		}
		nc, err := messaging.NewNATSClient(natsCfg)
		if err != nil {
			return err
		}
		a.NATS = nc
	case config.ConversationsAMQP:
		ac, err := messaging.NewAMQPClient(a.Config.AMQP)
		if err != nil {
			return err
		}
		a.AMQP = ac
	case config.ConversationsNone:
		slog.Warn("Conversation sync is disabled")
	default:
		return fmt.Errorf("unknown conversations backend %q", a.Config.ConversationsBackend)
	}
	return nil
}

// Close releases every open connection. Errors are logged.
func (a *App) Close() {
	if a.NATS != nil {
		if err := a.NATS.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}
	if a.AMQP != nil {
		if err := a.AMQP.Close(); err != nil {
			slog.Error("Error closing AMQP connection", "error", err)
		}
	}
	if a.Valkey != nil {
		if err := a.Valkey.Close(); err != nil {
			slog.Error("Error closing Valkey connection", "error", err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
		}
	}
}
