package remote

import (
	"context"
	"math"
	"time"

	"github.com/juju/ratelimit"

	"github.com/hpungsan/noteboard/internal/errors"
)

type throttled struct {
	next   Gateway
	bucket *ratelimit.Bucket
}

// Throttle caps the request rate of g at perSecond calls. perSecond <= 0 returns g unchanged.
func Throttle(g Gateway, perSecond float64) Gateway {
	if perSecond <= 0 {
		return g
	}
	capacity := int64(math.Max(1, math.Ceil(perSecond)))
	return &throttled{next: g, bucket: ratelimit.NewBucketWithRate(perSecond, capacity)}
}

func (t *throttled) wait(ctx context.Context) error {
	d := t.bucket.Take(1)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.NewCancelled("remote call")
	case <-timer.C:
		return nil
	}
}

func (t *throttled) ListFiles(ctx context.Context, folderID string) ([]File, error) {
	if err := t.wait(ctx); err != nil {
		return nil, err
	}
	return t.next.ListFiles(ctx, folderID)
}

func (t *throttled) GetFileContent(ctx context.Context, fileID string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.GetFileContent(ctx, fileID)
}

func (t *throttled) CreateFile(ctx context.Context, folderID, name, body string, meta map[string]string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.CreateFile(ctx, folderID, name, body, meta)
}

func (t *throttled) UpdateFileContent(ctx context.Context, fileID, body string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.UpdateFileContent(ctx, fileID, body)
}

func (t *throttled) DeleteFile(ctx context.Context, fileID string) error {
	if err := t.wait(ctx); err != nil {
		return err
	}
	return t.next.DeleteFile(ctx, fileID)
}

func (t *throttled) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.GetOrCreateFolder(ctx, name)
}

func (t *throttled) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.CreateFolder(ctx, parentID, name)
}

func (t *throttled) AccountLabel(ctx context.Context) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return t.next.AccountLabel(ctx)
}

func (t *throttled) Share(ctx context.Context, fileID string) (string, error) {
	if err := t.wait(ctx); err != nil {
		return "", err
	}
	return Share(ctx, t.next, fileID)
}
