// Package ops implements the board operations shared by the CLI, the MCP server and
// the web UI. Every operation validates its input first, then changes the board, and
// only then talks to the remote mirror. Remote failures never undo a local change.
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
	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
	"github.com/hpungsan/noteboard/internal/syncer"
)

// Deps is everything an operation may touch. Remote and Sync are nil when the board
// runs offline.
type Deps struct {
	Board  *board.Board
	Config *config.Config

	Remote remote.Gateway
	Sync   *syncer.Orchestrator
	Tokens auth.Tokens

	// Provider is the configured remote provider name, "" offline.
	Provider string

	// ExportsDir is the default export directory.
	ExportsDir string

	Fs  afero.Fs
	Log *zap.Logger
	Now func() time.Time
}

// Online reports whether a remote mirror is configured.
func (d *Deps) Online() bool {
	return d.Remote != nil
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Deps) log() *zap.Logger {
	if d.Log != nil {
		return d.Log
	}
	return zap.NewNop()
}

func (d *Deps) fs() afero.Fs {
	if d.Fs != nil {
		return d.Fs
	}
	return afero.NewOsFs()
}

func (d *Deps) cfg() *config.Config {
	if d.Config != nil {
		return d.Config
	}
	return config.DefaultConfig()
}

func (d *Deps) exportsDir() string {
	if d.ExportsDir != "" {
		return d.ExportsDir
	}
	return filepath.Join(".", "exports")
}

// remoteContext returns ctx carrying a bearer token for a remote call.
func (d *Deps) remoteContext(ctx context.Context) (context.Context, error) {
	if d.Remote == nil {
		return nil, errors.NewInvalidRequest("no remote provider configured")
	}
	tokens := d.Tokens
	if tokens == nil {
		tokens = auth.NoToken{}
	}
	tok, err := tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return remote.WithToken(ctx, tok), nil
}
