// Package webdav mirrors notes to a WebDAV server. A folder is a collection path and a
// file id is the file's full path. WebDAV has no per-file properties in the client, so
// the metadata map is not stored; the note body carries its own metadata block.
package webdav

import (
	"context"
	stderrors "errors"
	"net/url"
	"path"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/studio-b12/gowebdav"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
)

// Config holds the connection settings.
type Config struct {
	Endpoint string
	User     string
	Password string
}

// Gateway implements remote.Gateway over gowebdav.
type Gateway struct {
	cfg Config

	mu      sync.Mutex
	basic   *gowebdav.Client
	bearers map[string]*gowebdav.Client
}

// New returns a gateway for cfg. With a User, basic auth is used and the context token
// is ignored; otherwise every call authenticates with the context's bearer token.
func New(cfg Config) *Gateway {
	g := &Gateway{cfg: cfg, bearers: map[string]*gowebdav.Client{}}
	if cfg.User != "" {
		g.basic = gowebdav.NewClient(cfg.Endpoint, cfg.User, cfg.Password)
	}
	return g
}

// client returns the client for ctx. Headers are shared by every request of a client,
// so bearer clients are keyed by token; only the latest token is kept.
func (g *Gateway) client(ctx context.Context, op string) (*gowebdav.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled(op)
	}
	if g.basic != nil {
		return g.basic, nil
	}
	tok := remote.TokenFrom(ctx)
	if tok == "" {
		return nil, errors.NewAuth("no access token for webdav", nil)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.bearers[tok]
	if !ok {
		c = gowebdav.NewClient(g.cfg.Endpoint, "", "")
		c.SetHeader("Authorization", "Bearer "+tok)
		g.bearers = map[string]*gowebdav.Client{tok: c}
	}
	return c, nil
}

func (g *Gateway) ListFiles(ctx context.Context, folderID string) ([]remote.File, error) {
	c, err := g.client(ctx, "list files")
	if err != nil {
		return nil, err
	}
	infos, err := c.ReadDir(folderID)
	if err != nil {
		return nil, classify("list files", err)
	}
	files := make([]remote.File, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir() {
			continue
		}
		files = append(files, remote.File{
			ID:        path.Join(folderID, fi.Name()),
			Name:      fi.Name(),
			CreatedAt: fi.ModTime(),
		})
	}
	return files, nil
}

func (g *Gateway) GetFileContent(ctx context.Context, fileID string) (string, error) {
	c, err := g.client(ctx, "get file")
	if err != nil {
		return "", err
	}
	data, err := c.Read(fileID)
	if err != nil {
		return "", classify("get file", err)
	}
	return string(data), nil
}

func (g *Gateway) CreateFile(ctx context.Context, folderID, name, body string, _ map[string]string) (string, error) {
	c, err := g.client(ctx, "create file")
	if err != nil {
		return "", err
	}
	p := path.Join(folderID, name)
	if err := c.Write(p, []byte(body), 0644); err != nil {
		return "", classify("create file", err)
	}
	return p, nil
}

func (g *Gateway) UpdateFileContent(ctx context.Context, fileID, body string) error {
	c, err := g.client(ctx, "update file")
	if err != nil {
		return err
	}
	if err := c.Write(fileID, []byte(body), 0644); err != nil {
		return classify("update file", err)
	}
	return nil
}

func (g *Gateway) DeleteFile(ctx context.Context, fileID string) error {
	c, err := g.client(ctx, "delete file")
	if err != nil {
		return err
	}
	if err := c.Remove(fileID); err != nil {
		return classify("delete file", err)
	}
	return nil
}

func (g *Gateway) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	c, err := g.client(ctx, "find folder")
	if err != nil {
		return "", err
	}
	p := "/" + strings.Trim(name, "/")
	fi, err := c.Stat(p)
	switch {
	case err == nil && fi.IsDir():
		return p, nil
	case err == nil:
		return "", errors.NewConflict("remote path " + p + " exists and is not a folder")
	case !gowebdav.IsErrNotFound(err):
		return "", classify("find folder", err)
	}
	if err := c.Mkdir(p, 0755); err != nil {
		return "", classify("create folder", err)
	}
	return p, nil
}

func (g *Gateway) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	c, err := g.client(ctx, "create folder")
	if err != nil {
		return "", err
	}
	p := path.Join(parentID, name)
	if err := c.MkdirAll(p, 0755); err != nil {
		return "", classify("create folder", err)
	}
	return p, nil
}

// AccountLabel returns user@host for basic auth, or the server host.
func (g *Gateway) AccountLabel(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled("account")
	}
	host := g.cfg.Endpoint
	if u, err := url.Parse(g.cfg.Endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	if g.cfg.User != "" {
		return g.cfg.User + "@" + host, nil
	}
	return host, nil
}

func classify(op string, err error) error {
	wrapped := pkgerrors.Wrap(err, "webdav")
	var se gowebdav.StatusError
	if stderrors.As(err, &se) {
		return remote.ClassifyStatus(op, se.Status, wrapped)
	}
	return errors.NewNetwork(op, wrapped)
}
