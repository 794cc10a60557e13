package ops

import (
	"context"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/auth"
	"github.com/hpungsan/noteboard/internal/board"
	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/db"
	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/metrics"
	"github.com/hpungsan/noteboard/internal/remote/provider"
	"github.com/hpungsan/noteboard/internal/syncer"
)

// Open wires the local store, the configured remote provider, the session manager and
// the orchestrator rooted at baseDir. The returned func closes the database.
func Open(ctx context.Context, baseDir string, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) (*Deps, func() error, error) {
	if log == nil {
		log = zap.NewNop()
	}
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, nil, errors.NewStorage(err)
	}
	db.ConfigurePool(database, cfg)

	b, err := board.Open(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	m.SetNotes(len(b.Notes()))

	d := &Deps{
		Board:      b,
		Config:     cfg,
		ExportsDir: filepath.Join(baseDir, "exports"),
		Fs:         afero.NewOsFs(),
		Log:        log,
	}

	r, err := provider.New(ctx, cfg.Remote, log)
	if err != nil {
		database.Close()
		return nil, nil, err
	}

	var source auth.TokenSource
	if cfg.Remote.AccessToken != "" {
		source = auth.StaticSource{
			AccessToken: cfg.Remote.AccessToken,
			TTL:         time.Duration(cfg.Remote.TokenTTLMinutes) * time.Minute,
		}
	}
	d.Tokens = auth.NewManager(b, source, auth.WithLogger(log))

	if r != nil {
		d.Remote = r.Gateway
		d.Provider = r.Name
		if !r.NeedsToken {
			d.Tokens = auth.NoToken{}
		}
		d.Sync = syncer.New(b, d.Remote, d.Tokens, cfg,
			syncer.WithLogger(log),
			syncer.WithMetrics(m),
		)
	}

	return d, database.Close, nil
}

// Manager returns the session manager, or nil when the provider needs no session.
func (d *Deps) Manager() *auth.Manager {
	m, _ := d.Tokens.(*auth.Manager)
	return m
}
