package mcp

import "github.com/mark3labs/mcp-go/mcp"

var noteSaveToolDef = mcp.NewTool("note_save",
	mcp.WithDescription("Create a note, or edit one when id is given. Editing a mirrored note marks it for the next push."),
	mcp.WithNumber("id", mcp.Description("Id of the note to edit. Omit to create.")),
	mcp.WithString("title", mcp.Description("Single-line title. Omit on edit to keep the current one.")),
	mcp.WithString("content", mcp.Description("Note body. Omit on edit to keep the current one.")),
	mcp.WithBoolean("important", mcp.Description("Pin the note to the top of the board")),
	mcp.WithString("folder_id", mcp.Description("Folder to file the note in; empty string moves it to the root")),
)

var noteGetToolDef = mcp.NewTool("note_get",
	mcp.WithDescription("Fetch a single note by id."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
)

var noteListToolDef = mcp.NewTool("note_list",
	mcp.WithDescription("List notes, important first and newest first."),
	mcp.WithString("folder_id", mcp.Description("Only notes in this folder; empty string for root notes")),
	mcp.WithBoolean("important_only", mcp.Description("Only important notes")),
	mcp.WithString("query", mcp.Description("Case-insensitive text to match in title or content")),
)

var noteDeleteToolDef = mcp.NewTool("note_delete",
	mcp.WithDescription("Delete a note locally and, when mirrored, its remote file."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
)

var noteImportToolDef = mcp.NewTool("note_import",
	mcp.WithDescription("Import a shared note from a share reference or link. Importing the same reference again updates it."),
	mcp.WithString("ref", mcp.Required(), mcp.Description("Share reference, or a link carrying it in ?view=")),
)

var noteShareToolDef = mcp.NewTool("note_share",
	mcp.WithDescription("Publish a note and return a share reference. Unpushed notes are pushed first."),
	mcp.WithNumber("id", mcp.Required(), mcp.Description("Note id")),
)

var noteExportToolDef = mcp.NewTool("note_export",
	mcp.WithDescription("Write every note as a file in the remote file format."),
	mcp.WithString("dir", mcp.Description("Target directory (default ~/.noteboard/exports)")),
	mcp.WithString("folder_id", mcp.Description("Only notes in this folder")),
)

var folderCreateToolDef = mcp.NewTool("folder_create",
	mcp.WithDescription("Create a folder. Names are unique regardless of case."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Folder name")),
)

var folderListToolDef = mcp.NewTool("folder_list",
	mcp.WithDescription("List folders with their note counts."),
)

var folderDeleteToolDef = mcp.NewTool("folder_delete",
	mcp.WithDescription("Delete a folder. Its notes move to the root."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Folder id")),
)

var syncRunToolDef = mcp.NewTool("sync_run",
	mcp.WithDescription("Push local changes, pull the remote folder and merge."),
)

var syncPushToolDef = mcp.NewTool("sync_push",
	mcp.WithDescription("Push new and edited notes without pulling."),
)

var syncStatusToolDef = mcp.NewTool("sync_status",
	mcp.WithDescription("Report note counts, pending changes and the remote session."),
)
