// Package provider builds the configured remote gateway.
package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/remote"
	"github.com/hpungsan/noteboard/internal/remote/drive"
	"github.com/hpungsan/noteboard/internal/remote/memory"
	"github.com/hpungsan/noteboard/internal/remote/s3store"
	"github.com/hpungsan/noteboard/internal/remote/webdav"
)

// Provider names accepted in remote.provider.
const (
	Drive  = "drive"
	WebDAV = "webdav"
	S3     = "s3"
	Memory = "memory"
)

// Remote is a ready-to-use gateway.
type Remote struct {
	Gateway remote.Gateway

	// Name is the provider name.
	Name string

	// NeedsToken is false for providers that authenticate with configured credentials.
	NeedsToken bool
}

// New returns the gateway selected by cfg.Provider, throttled to cfg.RateLimit and with
// folder lookups deduplicated. An empty provider returns (nil, nil): the board is offline.
func New(ctx context.Context, cfg config.Remote, log *zap.Logger) (*Remote, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		g          remote.Gateway
		needsToken = true
	)
	switch cfg.Provider {
	case "":
		return nil, nil
	case Drive:
		g = drive.New(drive.Config{BaseURL: cfg.Endpoint})
	case WebDAV:
		if cfg.Endpoint == "" {
			return nil, errors.NewInvalidRequest("webdav provider requires remote.endpoint")
		}
		g = webdav.New(webdav.Config{Endpoint: cfg.Endpoint, User: cfg.User, Password: cfg.Password})
		needsToken = cfg.User == ""
	case S3:
		s3g, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		g = s3g
		needsToken = false
	case Memory:
		g = memory.New()
		needsToken = false
	default:
		return nil, errors.NewInvalidRequest("unknown remote provider: " + cfg.Provider)
	}

	log.Debug("remote provider ready",
		zap.String(logger.FieldProvider, cfg.Provider),
		zap.Float64("rate_limit", cfg.RateLimit),
		zap.Bool("needs_token", needsToken),
	)

	return &Remote{
		Gateway:    remote.Dedupe(remote.Throttle(g, cfg.RateLimit)),
		Name:       cfg.Provider,
		NeedsToken: needsToken,
	}, nil
}
