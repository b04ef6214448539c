// Package selector builds the configured image host and owns the resources it opens.
package selector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"siteimage/internal/config"
	"siteimage/internal/database"
	"siteimage/internal/database/migration"
	"siteimage/internal/imagehost"
	"siteimage/internal/imagehost/cloud"
	"siteimage/internal/imagehost/local"
	"siteimage/internal/imageproc"
	"siteimage/internal/remote"
	"siteimage/internal/repository"
	"siteimage/internal/repository/postgres"
	"siteimage/internal/storage"
)

// ErrUnknownProvider is returned for a provider name with no factory.
var ErrUnknownProvider = errors.New("unknown image provider")

// factory builds one backend from the selector's configuration and collaborators.
type factory func(ctx context.Context, s *Selector) (imagehost.Host, error)

var factories = map[string]factory{
	local.Name: newLocal,
	cloud.Name: newCloud,
}

// Providers lists the provider names New accepts.
func Providers() []string {
	return slices.Sorted(maps.Keys(factories))
}

// Selector holds the active host. Call Close when done.
type Selector struct {
	cfg   *config.AppConfig
	api   remote.API
	tags  repository.TagRepository
	store storage.Storage
	db    *sql.DB
	ownDB bool
	base  *slog.Logger
	log   *slog.Logger

	host imagehost.Host
}

type Option func(*Selector)

// WithRemoteAPI replaces the client built from the cloudinary settings.
func WithRemoteAPI(api remote.API) Option {
	return func(s *Selector) { s.api = api }
}

// WithTagRepository replaces the configured tag index of the local backend.
func WithTagRepository(r repository.TagRepository) Option {
	return func(s *Selector) { s.tags = r }
}

// WithObjectStorage replaces the MinIO client built from the MINIO_* settings.
func WithObjectStorage(st storage.Storage) Option {
	return func(s *Selector) { s.store = st }
}

// WithDatabase supplies the handle for the postgres tag index. The caller keeps
// ownership; Close leaves it open.
func WithDatabase(db *sql.DB) Option {
	return func(s *Selector) { s.db = db }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Selector) { s.base = l }
}

// New builds the host named by cfg.Images.Provider (case-insensitive).
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Selector, error) {
	s := &Selector{cfg: cfg, base: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.base.With("component", "selector")

	provider := strings.ToLower(strings.TrimSpace(cfg.Images.Provider))
	build, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownProvider, cfg.Images.Provider, strings.Join(Providers(), ", "))
	}

	if s.store == nil && cfg.MinIO.Enabled() {
		st, err := storage.NewMinIO(ctx, cfg.MinIO)
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
		s.store = st
	}

	host, err := build(ctx, s)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%s host: %w", provider, err)
	}
	s.host = host
	s.log.Info("image host ready", "event", "host_selected", "provider", provider)
	return s, nil
}

// Host returns the selected backend.
func (s *Selector) Host() imagehost.Host { return s.host }

// Storage returns the object store, or nil when none is configured.
func (s *Selector) Storage() storage.Storage { return s.store }

// Close releases the database handle the selector opened.
func (s *Selector) Close() error {
	if s.db == nil || !s.ownDB {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func newLocal(ctx context.Context, s *Selector) (imagehost.Host, error) {
	cfg := s.cfg.Images
	opts := []local.Option{local.WithLogger(s.base)}

	var procOpts []imageproc.Option
	if s.store != nil {
		procOpts = append(procOpts, imageproc.WithObjectStorage(s.store))
	}
	opts = append(opts, local.WithProcessor(imageproc.New(procOpts...)))

	tags, err := s.tagRepository(ctx)
	if err != nil {
		return nil, err
	}
	if tags != nil {
		opts = append(opts, local.WithTagRepository(tags))
	}

	return local.New(local.Config{
		Root:            cfg.Local.Folder,
		BaseURL:         cfg.Local.URL,
		Placeholder:     cfg.Placeholder,
		Transformations: cfg.Transformations,
	}, opts...)
}

// tagRepository returns nil when the local host should use its default JSON index.
func (s *Selector) tagRepository(ctx context.Context) (repository.TagRepository, error) {
	if s.tags != nil {
		return s.tags, nil
	}
	if s.cfg.Images.TagIndex != config.TagIndexPostgres {
		return nil, nil
	}

	if s.db == nil {
		db, err := database.NewPostgres(ctx, s.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("tag index: %w", err)
		}
		s.db, s.ownDB = db, true
	}
	if err := migration.EnsureMigrated(ctx, s.db, s.base, s.cfg.Database.Host); err != nil {
		return nil, fmt.Errorf("tag index: %w", err)
	}
	return postgres.NewTagPostgres(s.db), nil
}

func newCloud(_ context.Context, s *Selector) (imagehost.Host, error) {
	cfg := s.cfg.Images
	api := s.api
	if api == nil {
		cl := cfg.Cloudinary
		client, err := remote.NewClient(remote.Config{
			CloudName:         cl.CloudName,
			APIKey:            cl.APIKey,
			APISecret:         cl.APISecret,
			APIBaseURL:        cl.APIBaseURL,
			DeliveryURL:       cl.BaseURL,
			SecureDeliveryURL: cl.SecureURL,
		})
		if err != nil {
			return nil, err
		}
		api = client
	}

	return cloud.New(api, cloud.Config{
		Placeholder:       cfg.Placeholder,
		PlaceholderSource: cfg.Cloudinary.PlaceholderSource,
		Transformations:   cfg.Transformations,
		Secure:            true,
	}, cloud.WithLogger(s.base)), nil
}
