package ops

import (
	"strings"

	"github.com/hpungsan/noteboard/internal/note"
)

// ListNotesInput contains filters for the ListNotes operation.
type ListNotesInput struct {
	// FolderID nil lists every note; a pointer to "" lists notes at the root only.
	FolderID *string

	ImportantOnly bool

	// Query keeps notes whose title or content contains it, case-insensitively.
	Query string
}

// ListNotesOutput contains the result of the ListNotes operation.
type ListNotesOutput struct {
	Notes []note.Note `json:"notes"`
	Count int         `json:"count"`
}

// ListNotes returns notes in display order: important first, then newest first.
func ListNotes(d *Deps, input ListNotesInput) *ListNotesOutput {
	query := strings.ToLower(strings.TrimSpace(input.Query))

	var out []note.Note
	for _, n := range note.SortForDisplay(d.Board.Notes()) {
		if input.FolderID != nil && n.FolderID != *input.FolderID {
			continue
		}
		if input.ImportantOnly && !n.Important {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(n.Title), query) &&
			!strings.Contains(strings.ToLower(n.Content), query) {
			continue
		}
		out = append(out, n)
	}
	if out == nil {
		out = []note.Note{}
	}
	return &ListNotesOutput{Notes: out, Count: len(out)}
}
