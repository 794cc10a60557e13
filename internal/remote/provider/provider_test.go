package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
)

func TestNew_Offline(t *testing.T) {
	r, err := New(context.Background(), config.Remote{}, nil)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestNew_Providers(t *testing.T) {
	tests := []struct {
		name       string
		cfg        config.Remote
		needsToken bool
	}{
		{"drive", config.Remote{Provider: Drive}, true},
		{"webdav bearer", config.Remote{Provider: WebDAV, Endpoint: "https://dav.example.com"}, true},
		{"webdav basic", config.Remote{Provider: WebDAV, Endpoint: "https://dav.example.com", User: "ann"}, false},
		{"s3", config.Remote{Provider: S3, Bucket: "notes", Region: "us-east-1", AccessKeyID: "k", SecretAccessKey: "s"}, false},
		{"memory", config.Remote{Provider: Memory, RateLimit: 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(context.Background(), tt.cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, tt.cfg.Provider, r.Name)
			assert.Equal(t, tt.needsToken, r.NeedsToken)
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	_, err := New(context.Background(), config.Remote{Provider: "ftp"}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))

	_, err = New(context.Background(), config.Remote{Provider: WebDAV}, nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestNew_MemoryIsUsable(t *testing.T) {
	r, err := New(context.Background(), config.Remote{Provider: Memory}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	folder, err := r.Gateway.GetOrCreateFolder(ctx, "Vinotes")
	require.NoError(t, err)
	id, err := r.Gateway.CreateFile(ctx, folder, "a.md", "x", nil)
	require.NoError(t, err)
	ref, err := remote.Share(ctx, r.Gateway, id)
	require.NoError(t, err)
	assert.Equal(t, id, ref)
}
