package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	deps *ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d *ops.Deps) *Handlers {
	return &Handlers{deps: d}
}

// Request types for each tool

// SaveRequest represents the arguments for note_save.
type SaveRequest struct {
	ID        int64   `json:"id,omitempty"`
	Title     *string `json:"title,omitempty"`
	Content   *string `json:"content,omitempty"`
	Important *bool   `json:"important,omitempty"`
	FolderID  *string `json:"folder_id,omitempty"`
}

// IDRequest represents the arguments for tools addressing one note.
type IDRequest struct {
	ID int64 `json:"id"`
}

// ListRequest represents the arguments for note_list.
type ListRequest struct {
	FolderID      *string `json:"folder_id,omitempty"`
	ImportantOnly bool    `json:"important_only,omitempty"`
	Query         string  `json:"query,omitempty"`
}

// ImportRequest represents the arguments for note_import.
type ImportRequest struct {
	Ref string `json:"ref"`
}

// ExportRequest represents the arguments for note_export.
type ExportRequest struct {
	Dir      string  `json:"dir,omitempty"`
	FolderID *string `json:"folder_id,omitempty"`
}

// FolderCreateRequest represents the arguments for folder_create.
type FolderCreateRequest struct {
	Name string `json:"name"`
}

// FolderDeleteRequest represents the arguments for folder_delete.
type FolderDeleteRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleSave handles the note_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.SaveNote(ctx, h.deps, ops.SaveNoteInput{
		ID:        input.ID,
		Title:     input.Title,
		Content:   input.Content,
		Important: input.Important,
		FolderID:  input.FolderID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the note_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetNote(h.deps, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the note_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	return successResult(ops.ListNotes(h.deps, ops.ListNotesInput{
		FolderID:      input.FolderID,
		ImportantOnly: input.ImportantOnly,
		Query:         input.Query,
	}))
}

// HandleDelete handles the note_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteNote(ctx, h.deps, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the note_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ImportShare(ctx, h.deps, ops.ImportShareInput{Ref: input.Ref})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleShare handles the note_share tool call.
func (h *Handlers) HandleShare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decodeID(req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.ShareNote(ctx, h.deps, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the note_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ExportNotes(ctx, h.deps, ops.ExportNotesInput{
		Dir:      input.Dir,
		FolderID: input.FolderID,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFolderCreate handles the folder_create tool call.
func (h *Handlers) HandleFolderCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderCreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.CreateFolder(ctx, h.deps, input.Name)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFolderList handles the folder_list tool call.
func (h *Handlers) HandleFolderList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folders := ops.ListFolders(h.deps)
	return successResult(map[string]any{"folders": folders, "count": len(folders)})
}

// HandleFolderDelete handles the folder_delete tool call.
func (h *Handlers) HandleFolderDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FolderDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	result, err := ops.DeleteFolder(ctx, h.deps, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSync handles the sync_run tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Sync(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandlePush handles the sync_push tool call.
func (h *Handlers) HandlePush(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Push(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the sync_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.Status(ctx, h.deps)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

func decodeID(req mcp.CallToolRequest) (IDRequest, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return input, errors.NewInvalidRequest(err.Error())
	}
	if input.ID <= 0 {
		return input, errors.NewInvalidRequest("id is required")
	}
	return input, nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var nErr *errors.NoteError
	if stderrors.As(err, &nErr) {
		msg := nErr.Message
		// Keep context added by wrappers, e.g. "upload: NETWORK: ..."
		if prefix := strings.TrimSuffix(err.Error(), nErr.Error()); prefix != err.Error() {
			msg = prefix + msg
		}
		errorObj := map[string]any{
			"code":    nErr.Code,
			"message": msg,
			"status":  nErr.Status,
		}
		if nErr.Code != errors.ErrInternal && nErr.Details != nil {
			errorObj["details"] = nErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
