package logger

// Shared log field names, so sync, ops and server logs can be queried the same way.
const (
	FieldNoteID    = "noteId"
	FieldFileID    = "fileId"
	FieldFolderID  = "folderId"
	FieldFileName  = "fileName"
	FieldPhase     = "phase"
	FieldProvider  = "provider"
	FieldOperation = "operation"
	FieldCount     = "count"
	FieldFailed    = "failed"
	FieldDuration  = "duration"
	FieldShareRef  = "shareRef"
	FieldTool      = "tool"
)
