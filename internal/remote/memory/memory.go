// Package memory is an in-process remote gateway with fault injection.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
)

type folder struct {
	id     string
	parent string
	name   string
}

type file struct {
	id        string
	folder    string
	name      string
	body      string
	meta      map[string]string
	createdAt time.Time
	shared    bool
}

// Gateway stores folders and files in memory. The zero value is not usable; call New.
type Gateway struct {
	mu      sync.Mutex
	seq     int
	folders []folder
	files   []*file
	calls   []string
	now     func() time.Time

	// Token, when set, is the only bearer token accepted.
	Token string

	// FailGet, FailCreate and FailUpdate inject errors by file id or file name.
	FailGet    map[string]error
	FailCreate map[string]error
	FailUpdate map[string]error

	// FailList and FailFolder make ListFiles and GetOrCreateFolder fail.
	FailList   error
	FailFolder error

	// FailDelete makes DeleteFile fail.
	FailDelete error

	// Account is returned by AccountLabel.
	Account string
}

// New returns an empty gateway.
func New() *Gateway {
	return &Gateway{
		FailGet:    map[string]error{},
		FailCreate: map[string]error{},
		FailUpdate: map[string]error{},
		Account:    "memory@localhost",
		now:        time.Now,
	}
}

// Calls returns the operations performed so far, e.g. "create:Groceries_1.md", "get:f3".
func (g *Gateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Seed stores a file directly, bypassing fault injection, and returns its id.
func (g *Gateway) Seed(folderID, name, body string, createdAt time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	f := &file{id: g.nextID("f"), folder: folderID, name: name, body: body, createdAt: createdAt}
	g.files = append(g.files, f)
	return f.id
}

// SeedFolder creates a top-level folder directly and returns its id.
func (g *Gateway) SeedFolder(name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextID("d")
	g.folders = append(g.folders, folder{id: id, name: name})
	return id
}

// Body returns the stored body of fileID.
func (g *Gateway) Body(fileID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f := g.find(fileID); f != nil {
		return f.body, true
	}
	return "", false
}

// Meta returns the stored metadata of fileID.
func (g *Gateway) Meta(fileID string) map[string]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if f := g.find(fileID); f != nil {
		return maps.Clone(f.meta)
	}
	return nil
}

// FileCount returns how many files are stored in folderID.
func (g *Gateway) FileCount(folderID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, f := range g.files {
		if f.folder == folderID {
			n++
		}
	}
	return n
}

// FolderCount returns how many folders called name exist.
func (g *Gateway) FolderCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, f := range g.folders {
		if f.name == name {
			n++
		}
	}
	return n
}

func (g *Gateway) ListFiles(ctx context.Context, folderID string) ([]remote.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "list:"+folderID); err != nil {
		return nil, err
	}
	if g.FailList != nil {
		return nil, errors.NewNetwork("list files", g.FailList)
	}
	var out []remote.File
	for _, f := range g.files {
		if f.folder == folderID {
			out = append(out, remote.File{ID: f.id, Name: f.name, CreatedAt: f.createdAt})
		}
	}
	return out, nil
}

func (g *Gateway) GetFileContent(ctx context.Context, fileID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "get:"+fileID); err != nil {
		return "", err
	}
	if err := g.FailGet[fileID]; err != nil {
		return "", errors.NewNetwork("get file", err)
	}
	f := g.find(fileID)
	if f == nil {
		return "", errors.NewNetwork("get file", fmt.Errorf("file %s not found", fileID))
	}
	return f.body, nil
}

func (g *Gateway) CreateFile(ctx context.Context, folderID, name, body string, meta map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "create:"+name); err != nil {
		return "", err
	}
	if err := g.FailCreate[name]; err != nil {
		return "", errors.NewNetwork("create file", err)
	}
	f := &file{
		id:        g.nextID("f"),
		folder:    folderID,
		name:      name,
		body:      body,
		meta:      maps.Clone(meta),
		createdAt: g.now(),
	}
	g.files = append(g.files, f)
	return f.id, nil
}

func (g *Gateway) UpdateFileContent(ctx context.Context, fileID, body string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "update:"+fileID); err != nil {
		return err
	}
	if err := g.FailUpdate[fileID]; err != nil {
		return errors.NewNetwork("update file", err)
	}
	f := g.find(fileID)
	if f == nil {
		return errors.NewNetwork("update file", fmt.Errorf("file %s not found", fileID))
	}
	f.body = body
	return nil
}

func (g *Gateway) DeleteFile(ctx context.Context, fileID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "delete:"+fileID); err != nil {
		return err
	}
	if g.FailDelete != nil {
		return errors.NewNetwork("delete file", g.FailDelete)
	}
	for i, f := range g.files {
		if f.id == fileID {
			g.files = append(g.files[:i], g.files[i+1:]...)
			return nil
		}
	}
	return errors.NewNetwork("delete file", fmt.Errorf("file %s not found", fileID))
}

func (g *Gateway) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "folder:"+name); err != nil {
		return "", err
	}
	if g.FailFolder != nil {
		return "", errors.NewNetwork("find folder", g.FailFolder)
	}
	for _, f := range g.folders {
		if f.parent == "" && f.name == name {
			return f.id, nil
		}
	}
	id := g.nextID("d")
	g.folders = append(g.folders, folder{id: id, name: name})
	return id, nil
}

func (g *Gateway) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "mkdir:"+name); err != nil {
		return "", err
	}
	if g.FailFolder != nil {
		return "", errors.NewNetwork("create folder", g.FailFolder)
	}
	id := g.nextID("d")
	g.folders = append(g.folders, folder{id: id, parent: parentID, name: name})
	return id, nil
}

func (g *Gateway) AccountLabel(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "account"); err != nil {
		return "", err
	}
	return g.Account, nil
}

// Share marks fileID public and returns its id as the share reference.
func (g *Gateway) Share(ctx context.Context, fileID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.begin(ctx, "share:"+fileID); err != nil {
		return "", err
	}
	f := g.find(fileID)
	if f == nil {
		return "", errors.NewNetwork("share file", fmt.Errorf("file %s not found", fileID))
	}
	f.shared = true
	return f.id, nil
}

// begin records the call and checks cancellation and the token. Caller holds g.mu.
func (g *Gateway) begin(ctx context.Context, call string) error {
	g.calls = append(g.calls, call)
	if err := ctx.Err(); err != nil {
		return errors.NewNetwork(call, err)
	}
	if g.Token != "" && remote.TokenFrom(ctx) != g.Token {
		return errors.NewAuth("invalid token", nil)
	}
	return nil
}

func (g *Gateway) find(id string) *file {
	for _, f := range g.files {
		if f.id == id {
			return f
		}
	}
	return nil
}

func (g *Gateway) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s%d", prefix, g.seq)
}
