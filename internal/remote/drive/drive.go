// Package drive mirrors notes to a Google Drive style REST API (v3 resource shapes).
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/remote"
)

// DefaultBaseURL is the public Drive API root.
const DefaultBaseURL = "https://www.googleapis.com"

const (
	folderMimeType = "application/vnd.google-apps.folder"
	noteMimeType   = "text/markdown"
	pageSize       = "1000"
)

// Config holds the API root and an optional HTTP client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Gateway implements remote.Gateway and remote.Sharer.
type Gateway struct {
	base string
	hc   *http.Client
}

// New returns a gateway for cfg. Zero values select DefaultBaseURL and a client with a
// 30 second timeout.
func New(cfg Config) *Gateway {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Gateway{base: base, hc: hc}
}

type driveFile struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	CreatedTime time.Time         `json:"createdTime,omitzero"`
	MimeType    string            `json:"mimeType,omitempty"`
	Parents     []string          `json:"parents,omitempty"`
	AppProps    map[string]string `json:"appProperties,omitempty"`
}

type fileList struct {
	NextPageToken string      `json:"nextPageToken"`
	Files         []driveFile `json:"files"`
}

func (g *Gateway) ListFiles(ctx context.Context, folderID string) ([]remote.File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed=false and mimeType!='%s'", escape(folderID), folderMimeType)
	found, err := g.query(ctx, "list files", q)
	if err != nil {
		return nil, err
	}
	files := make([]remote.File, 0, len(found))
	for _, f := range found {
		files = append(files, remote.File{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedTime})
	}
	return files, nil
}

func (g *Gateway) GetFileContent(ctx context.Context, fileID string) (string, error) {
	u := g.base + "/drive/v3/files/" + url.PathEscape(fileID) + "?alt=media"
	data, err := g.do(ctx, "get file", http.MethodGet, u, "", nil)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateFile uploads metadata and body in one multipart/related request.
func (g *Gateway) CreateFile(ctx context.Context, folderID, name, body string, meta map[string]string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if err := json.NewEncoder(metaPart).Encode(driveFile{
		Name:     name,
		MimeType: noteMimeType,
		Parents:  []string{folderID},
		AppProps: meta,
	}); err != nil {
		return "", errors.NewInternal(err)
	}

	mediaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {noteMimeType}})
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if _, err := io.WriteString(mediaPart, body); err != nil {
		return "", errors.NewInternal(err)
	}
	if err := mw.Close(); err != nil {
		return "", errors.NewInternal(err)
	}

	u := g.base + "/upload/drive/v3/files?uploadType=multipart&fields=id"
	var created driveFile
	if err := g.doJSON(ctx, "create file", http.MethodPost, u, "multipart/related; boundary="+mw.Boundary(), &buf, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (g *Gateway) UpdateFileContent(ctx context.Context, fileID, body string) error {
	u := g.base + "/upload/drive/v3/files/" + url.PathEscape(fileID) + "?uploadType=media"
	_, err := g.do(ctx, "update file", http.MethodPatch, u, noteMimeType, strings.NewReader(body))
	return err
}

func (g *Gateway) DeleteFile(ctx context.Context, fileID string) error {
	u := g.base + "/drive/v3/files/" + url.PathEscape(fileID)
	_, err := g.do(ctx, "delete file", http.MethodDelete, u, "", nil)
	return err
}

// GetOrCreateFolder looks the folder up by name among the root's children and creates
// it when missing. Drive allows duplicate names; the oldest match wins.
func (g *Gateway) GetOrCreateFolder(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name='%s' and mimeType='%s' and 'root' in parents and trashed=false", escape(name), folderMimeType)
	found, err := g.query(ctx, "find folder", q)
	if err != nil {
		return "", err
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}
	return g.CreateFolder(ctx, "root", name)
}

func (g *Gateway) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	body, err := json.Marshal(driveFile{Name: name, MimeType: folderMimeType, Parents: []string{parentID}})
	if err != nil {
		return "", errors.NewInternal(err)
	}
	var created driveFile
	u := g.base + "/drive/v3/files?fields=id"
	if err := g.doJSON(ctx, "create folder", http.MethodPost, u, "application/json", bytes.NewReader(body), &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (g *Gateway) AccountLabel(ctx context.Context) (string, error) {
	var about struct {
		User struct {
			DisplayName  string `json:"displayName"`
			EmailAddress string `json:"emailAddress"`
		} `json:"user"`
	}
	if err := g.doJSON(ctx, "account", http.MethodGet, g.base+"/drive/v3/about?fields=user", "", nil, &about); err != nil {
		return "", err
	}
	if about.User.EmailAddress != "" {
		return about.User.EmailAddress, nil
	}
	return about.User.DisplayName, nil
}

// Share grants read access to anyone with the link. The file id is the share reference.
func (g *Gateway) Share(ctx context.Context, fileID string) (string, error) {
	body := strings.NewReader(`{"role":"reader","type":"anyone"}`)
	u := g.base + "/drive/v3/files/" + url.PathEscape(fileID) + "/permissions"
	if _, err := g.do(ctx, "share file", http.MethodPost, u, "application/json", body); err != nil {
		return "", err
	}
	return fileID, nil
}

// query runs a files.list search and follows every page, oldest first.
func (g *Gateway) query(ctx context.Context, op, q string) ([]driveFile, error) {
	var out []driveFile
	pageToken := ""
	for {
		v := url.Values{}
		v.Set("q", q)
		v.Set("fields", "nextPageToken,files(id,name,createdTime)")
		v.Set("orderBy", "createdTime")
		v.Set("pageSize", pageSize)
		if pageToken != "" {
			v.Set("pageToken", pageToken)
		}
		var page fileList
		if err := g.doJSON(ctx, op, http.MethodGet, g.base+"/drive/v3/files?"+v.Encode(), "", nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Files...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (g *Gateway) doJSON(ctx context.Context, op, method, u, contentType string, body io.Reader, out any) error {
	data, err := g.do(ctx, op, method, u, contentType, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewNetwork(op, pkgerrors.Wrap(err, "drive: decode response"))
	}
	return nil
}

func (g *Gateway) do(ctx context.Context, op, method, u, contentType string, body io.Reader) ([]byte, error) {
	tok := remote.TokenFrom(ctx)
	if tok == "" {
		return nil, errors.NewAuth("no access token for drive", nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := g.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.NewCancelled(op)
		}
		return nil, errors.NewNetwork(op, pkgerrors.Wrap(err, "drive"))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewNetwork(op, pkgerrors.Wrap(err, "drive: read body"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, remote.ClassifyStatus(op, resp.StatusCode, pkgerrors.Errorf("drive: %s", snippet(data)))
	}
	return data, nil
}

// escape quotes a value for a files.list query string literal.
func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func snippet(b []byte) string {
	const max = 200
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}
