package remote

import (
	"context"

	"golang.org/x/sync/singleflight"
)

type deduped struct {
	Gateway
	group singleflight.Group
}

// Dedupe collapses concurrent GetOrCreateFolder calls for the same name into one
// remote query, so racing callers cannot create duplicate folders.
func Dedupe(g Gateway) Gateway {
	return &deduped{Gateway: g}
}

func (d *deduped) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	v, err, _ := d.group.Do(name, func() (any, error) {
		return d.Gateway.GetOrCreateFolder(ctx, name)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (d *deduped) Share(ctx context.Context, fileID string) (string, error) {
	return Share(ctx, d.Gateway, fileID)
}
