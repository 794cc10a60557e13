package remote_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
	"github.com/hpungsan/noteboard/internal/remote/memory"
)

func TestTokenContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", remote.TokenFrom(ctx))
	assert.Equal(t, "tok", remote.TokenFrom(remote.WithToken(ctx, "tok")))
}

func TestClassifyStatus(t *testing.T) {
	assert.NoError(t, remote.ClassifyStatus("list", 200, nil))
	assert.NoError(t, remote.ClassifyStatus("create", 204, nil))

	err := remote.ClassifyStatus("list", 401, nil)
	assert.True(t, errors.Is(err, errors.ErrAuth))

	err = remote.ClassifyStatus("list", 403, nil)
	assert.True(t, errors.Is(err, errors.ErrAuth))

	err = remote.ClassifyStatus("get file", 500, nil)
	require.True(t, errors.Is(err, errors.ErrNetwork))
	var nErr *errors.NoteError
	require.ErrorAs(t, err, &nErr)
	assert.Equal(t, 500, nErr.Details["status"])
}

// noShare hides the memory gateway's Share method.
type noShare struct{ remote.Gateway }

func TestShare_Unsupported(t *testing.T) {
	_, err := remote.Share(context.Background(), noShare{memory.New()}, "f1")
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestThrottle_Disabled(t *testing.T) {
	g := memory.New()
	assert.Same(t, g, remote.Throttle(g, 0))
}

func TestThrottle_PassesThrough(t *testing.T) {
	ctx := context.Background()
	g := memory.New()
	th := remote.Throttle(g, 1000)

	folderID, err := th.GetOrCreateFolder(ctx, "Vinotes")
	require.NoError(t, err)
	id, err := th.CreateFile(ctx, folderID, "a.md", "b", nil)
	require.NoError(t, err)

	ref, err := remote.Share(ctx, th, id)
	require.NoError(t, err)
	assert.Equal(t, id, ref)
}

func TestThrottle_CancelWhileWaiting(t *testing.T) {
	g := memory.New()
	th := remote.Throttle(g, 0.5)

	_, err := th.AccountLabel(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = th.AccountLabel(ctx)
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

// slowFolders blocks GetOrCreateFolder until released and counts calls.
type slowFolders struct {
	*memory.Gateway
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *slowFolders) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	if s.calls.Add(1) == 1 {
		close(s.entered)
	}
	<-s.release
	return s.Gateway.GetOrCreateFolder(ctx, name)
}

func TestDedupe_CollapsesConcurrentFolderLookups(t *testing.T) {
	slow := &slowFolders{
		Gateway: memory.New(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	g := remote.Dedupe(slow)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := g.GetOrCreateFolder(context.Background(), "Vinotes")
			assert.NoError(t, err)
			results[i] = id
		}(i)
	}

	<-slow.entered
	time.Sleep(50 * time.Millisecond)
	close(slow.release)
	wg.Wait()

	assert.Equal(t, int32(1), slow.calls.Load())
	for _, id := range results {
		assert.Equal(t, results[0], id)
	}
	assert.Equal(t, 1, slow.FolderCount("Vinotes"))
}
