package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"

	"github.com/hpungsan/noteboard/internal/auth"
	"github.com/hpungsan/noteboard/internal/board"
	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/db"
	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/note"
	"github.com/hpungsan/noteboard/internal/ops"
	"github.com/hpungsan/noteboard/internal/remote/memory"
	"github.com/hpungsan/noteboard/internal/syncer"
)

const toolCount = 13

// testSetup creates a board backed by a temporary database, mirrored to an
// in-memory gateway.
func testSetup(t *testing.T) (*ops.Deps, *memory.Gateway) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	b, err := board.Open(context.Background(), database)
	if err != nil {
		t.Fatalf("failed to open board: %v", err)
	}

	cfg := config.DefaultConfig()
	g := memory.New()
	d := &ops.Deps{
		Board:      b,
		Config:     cfg,
		Remote:     g,
		Provider:   "memory",
		Tokens:     auth.NoToken{},
		ExportsDir: "/exports",
		Fs:         afero.NewMemMapFs(),
	}
	d.Sync = syncer.New(b, g, d.Tokens, cfg)
	return d, g
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func saveNote(t *testing.T, h *Handlers, args map[string]any) int64 {
	t.Helper()
	result, err := h.HandleSave(context.Background(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	n := out["note"].(map[string]any)
	return int64(n["id"].(float64))
}

func TestHandleSave(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "create with title and content",
			args:      map[string]any{"title": "Groceries", "content": "milk"},
			wantError: false,
		},
		{
			name:      "create with content only",
			args:      map[string]any{"content": "a thought"},
			wantError: false,
		},
		{
			name:      "empty note",
			args:      map[string]any{"title": " "},
			wantError: true,
			errorCode: "VALIDATION",
		},
		{
			name:      "edit unknown note",
			args:      map[string]any{"id": 42, "title": "x"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "unknown folder",
			args:      map[string]any{"title": "x", "folder_id": "fld_missing"},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
		{
			name:      "wrong argument type",
			args:      map[string]any{"title": 7},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else if result.IsError {
				t.Errorf("expected success, got error: %v", extractErrorMessage(result))
			}
		})
	}
}

func TestHandleSave_EditThenGet(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	id := saveNote(t, h, map[string]any{"title": "Draft", "content": "v1"})
	saveNote(t, h, map[string]any{"id": id, "title": "Draft", "content": "v2", "important": true})

	result, err := h.HandleGet(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["content"] != "v2" {
		t.Errorf("content = %v, want v2", out["content"])
	}
	if out["important"] != true {
		t.Errorf("important = %v, want true", out["important"])
	}
}

func TestHandleSave_TitleOnlyEditKeepsContent(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)

	id := saveNote(t, h, map[string]any{"title": "Draft", "content": "keep me"})
	saveNote(t, h, map[string]any{"id": id, "title": "Renamed"})
	saveNote(t, h, map[string]any{"id": id, "important": true})

	result, err := h.HandleGet(context.Background(), makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["title"] != "Renamed" {
		t.Errorf("title = %v, want Renamed", out["title"])
	}
	if out["content"] != "keep me" {
		t.Errorf("content = %v, want %q", out["content"], "keep me")
	}
	if out["important"] != true {
		t.Errorf("important = %v, want true", out["important"])
	}
}

func TestHandleGet_MissingID(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)

	result, err := h.HandleGet(context.Background(), makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleList(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	saveNote(t, h, map[string]any{"title": "Plain"})
	saveNote(t, h, map[string]any{"title": "Pinned", "important": true})

	result, err := h.HandleList(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", out["count"])
	}
	first := out["notes"].([]any)[0].(map[string]any)
	if first["title"] != "Pinned" {
		t.Errorf("first note = %v, want the important one", first["title"])
	}

	result, _ = h.HandleList(ctx, makeRequest(map[string]any{"important_only": true}))
	out = parseOutput(t, result)
	if out["count"] != float64(1) {
		t.Errorf("important count = %v, want 1", out["count"])
	}
}

func TestHandleDelete(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	id := saveNote(t, h, map[string]any{"title": "Doomed"})

	result, err := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["deleted"] != true {
		t.Errorf("deleted = %v, want true", out["deleted"])
	}

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleSyncAndShare(t *testing.T) {
	d, g := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	id := saveNote(t, h, map[string]any{"title": "Shared", "content": "hello"})

	result, err := h.HandleSync(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["uploaded"] != float64(1) {
		t.Errorf("uploaded = %v, want 1", out["uploaded"])
	}

	result, _ = h.HandleShare(ctx, makeRequest(map[string]any{"id": id}))
	out = parseOutput(t, result)
	ref, _ := out["ref"].(string)
	if ref == "" {
		t.Fatalf("expected a share ref, got %v", out)
	}
	if _, ok := g.Body(ref); !ok {
		t.Errorf("share ref %q does not name a remote file", ref)
	}

	// Importing our own shared note creates a copy tied to the reference.
	result, _ = h.HandleImport(ctx, makeRequest(map[string]any{"ref": "https://example.com/?view=" + ref}))
	out = parseOutput(t, result)
	if out["created"] != true {
		t.Errorf("created = %v, want true", out["created"])
	}
	result, _ = h.HandleImport(ctx, makeRequest(map[string]any{"ref": ref}))
	out = parseOutput(t, result)
	if out["created"] != false {
		t.Errorf("second import created = %v, want false", out["created"])
	}
}

func TestHandlePush_Offline(t *testing.T) {
	d, _ := testSetup(t)
	d.Remote, d.Sync = nil, nil
	h := NewHandlers(d)

	result, err := h.HandlePush(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleFolders(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	result, err := h.HandleFolderCreate(ctx, makeRequest(map[string]any{"name": "Work"}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	folderID := out["folder"].(map[string]any)["id"].(string)

	result, _ = h.HandleFolderCreate(ctx, makeRequest(map[string]any{"name": "work"}))
	assertErrorCode(t, result, "CONFLICT")

	saveNote(t, h, map[string]any{"title": "Filed", "folder_id": folderID})

	result, _ = h.HandleFolderList(ctx, makeRequest(nil))
	out = parseOutput(t, result)
	folders := out["folders"].([]any)
	if len(folders) != 1 || folders[0].(map[string]any)["notes"] != float64(1) {
		t.Errorf("folders = %v, want one folder holding one note", folders)
	}

	result, _ = h.HandleFolderDelete(ctx, makeRequest(map[string]any{"id": folderID}))
	out = parseOutput(t, result)
	if out["notes_moved"] != float64(1) {
		t.Errorf("notes_moved = %v, want 1", out["notes_moved"])
	}

	result, _ = h.HandleFolderDelete(ctx, makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleExport(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	ctx := context.Background()

	saveNote(t, h, map[string]any{"title": "One"})

	result, err := h.HandleExport(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["count"] != float64(1) {
		t.Errorf("count = %v, want 1", out["count"])
	}

	result, _ = h.HandleExport(ctx, makeRequest(map[string]any{"dir": "../escape"}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleStatus(t *testing.T) {
	d, _ := testSetup(t)
	h := NewHandlers(d)
	if err := d.Board.ReplaceNotes(context.Background(), []note.Note{{ID: 1, Title: "a", RemoteFileID: "f1", Dirty: true}}); err != nil {
		t.Fatal(err)
	}

	result, err := h.HandleStatus(context.Background(), makeRequest(nil))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	out := parseOutput(t, result)
	if out["dirty"] != float64(1) || out["provider"] != "memory" {
		t.Errorf("status = %v", out)
	}
}

func TestServerRegistration(t *testing.T) {
	d, _ := testSetup(t)

	s := NewServer(d, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"note_save",
		"note_get",
		"note_list",
		"note_delete",
		"note_import",
		"note_share",
		"note_export",
		"folder_create",
		"folder_list",
		"folder_delete",
		"sync_run",
		"sync_push",
		"sync_status",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	d, _ := testSetup(t)

	d.Config.DisabledTools = []string{"note_delete", "folder_delete"}
	s := NewServer(d, "test")
	tools := s.ListTools()

	if len(tools) != toolCount-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), toolCount-2)
	}

	for _, name := range []string{"note_delete", "folder_delete"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	for _, name := range []string{"note_save", "note_get", "sync_run"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	d, _ := testSetup(t)

	d.Config.DisabledTypes = []string{"sync"}
	s := NewServer(d, "test")
	tools := s.ListTools()

	if len(tools) != toolCount-3 {
		t.Errorf("registered tool count = %d, want %d", len(tools), toolCount-3)
	}
	for name := range tools {
		if strings.HasPrefix(name, "sync_") {
			t.Errorf("tool %q of a disabled type should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	d, _ := testSetup(t)

	d.Config.DisabledTools = AllToolNames()
	s := NewServer(d, "test")
	tools := s.ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestServerRegistration_DuplicateDisabled(t *testing.T) {
	d, _ := testSetup(t)

	d.Config.DisabledTools = []string{"note_delete", "note_delete", "note_delete"}
	s := NewServer(d, "test")
	tools := s.ListTools()

	if len(tools) != toolCount-1 {
		t.Errorf("registered tool count = %d, want %d", len(tools), toolCount-1)
	}

	if _, ok := tools["note_delete"]; ok {
		t.Error("disabled tool 'note_delete' should not be registered")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"note_delete", "sync_run"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"note_delete", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	if unknown := ValidateDisabledTypes([]string{"note", "folder", "sync"}); len(unknown) != 0 {
		t.Errorf("ValidateDisabledTypes() = %v, want none", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"tag"}); len(unknown) != 1 {
		t.Errorf("ValidateDisabledTypes() = %v, want one unknown", unknown)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	if len(names) != toolCount {
		t.Errorf("AllToolNames() returned %d names, want %d", len(names), toolCount)
	}

	unknown := ValidateDisabledTools(names)
	if len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
	for _, name := range names {
		if GetTypeForTool(name) == "" {
			t.Errorf("tool %q has no type prefix", name)
		}
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	err := errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied"))
	err.Details = map[string]any{"path": "/tmp/secret.db"}
	r := errorResult(err)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	wrappedErr := fmt.Errorf("upload Groceries_1.md: %w", errors.NewNetwork("create file", nil))

	errObj := errorObject(t, errorResult(wrappedErr))

	if errObj["code"] != string(errors.ErrNetwork) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNetwork)
	}
	msg := errObj["message"].(string)
	if !strings.Contains(msg, "upload Groceries_1.md") {
		t.Errorf("message should contain wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("note", "42")))

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom at /secret")))
	if errObj["message"] != "an internal error occurred" {
		t.Errorf("message = %v", errObj["message"])
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
