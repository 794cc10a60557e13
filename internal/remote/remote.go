// Package remote defines the boundary to the remote file-storage mirror.
//
// Providers live in subpackages (drive, webdav, s3, memory). Every call is
// authenticated with the bearer token carried by the context (see WithToken);
// providers with their own credentials ignore it.
package remote

import (
	"context"
	"time"

	"github.com/hpungsan/noteboard/internal/errors"
)

// File is a remote file listing entry.
type File struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Metadata keys written alongside each note file.
const (
	MetaNoteID    = "vi_note_id"
	MetaImportant = "important"
)

// Gateway is a thin client for a hierarchical blob store.
type Gateway interface {
	// ListFiles lists the files directly inside folderID, in provider listing order.
	ListFiles(ctx context.Context, folderID string) ([]File, error)

	// GetFileContent returns the text body of fileID.
	GetFileContent(ctx context.Context, fileID string) (string, error)

	// CreateFile creates a file in folderID and returns its handle.
	CreateFile(ctx context.Context, folderID, name, body string, meta map[string]string) (string, error)

	// UpdateFileContent replaces the body of fileID.
	UpdateFileContent(ctx context.Context, fileID, body string) error

	// DeleteFile removes fileID.
	DeleteFile(ctx context.Context, fileID string) error

	// GetOrCreateFolder returns the id of the top-level folder called name, creating it
	// when no such folder exists. When several match, the first in listing order wins.
	GetOrCreateFolder(ctx context.Context, name string) (string, error)

	// CreateFolder creates a folder called name inside parentID.
	CreateFolder(ctx context.Context, parentID, name string) (string, error)

	// AccountLabel returns a human-readable account name for display.
	AccountLabel(ctx context.Context) (string, error)
}

// Sharer is implemented by providers that can publish a file for reading by anyone.
type Sharer interface {
	// Share makes fileID publicly readable and returns the reference other sessions
	// use to fetch it.
	Share(ctx context.Context, fileID string) (string, error)
}

type tokenKey struct{}

// WithToken returns a context carrying the bearer token for remote calls.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token carried by ctx, or "".
func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}

// Share publishes fileID through g when the provider supports it.
func Share(ctx context.Context, g Gateway, fileID string) (string, error) {
	s, ok := g.(Sharer)
	if !ok {
		return "", errors.NewInvalidRequest("remote provider does not support sharing")
	}
	return s.Share(ctx, fileID)
}

// ClassifyStatus maps an HTTP status from a provider to the error taxonomy.
// It returns nil for 2xx.
func ClassifyStatus(operation string, status int, cause error) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == 401 || status == 403:
		return errors.NewAuth("remote rejected the credential; sign in again", cause)
	default:
		nErr := errors.NewNetwork(operation, cause)
		nErr.Details["status"] = status
		return nErr
	}
}
