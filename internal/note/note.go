package note

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

// Note is a single entry on the board.
type Note struct {
	// ID is a millisecond timestamp taken when the note was created. Unique within the board.
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Important bool   `json:"important"`

	// RemoteFileID is the handle of the mirrored file. Empty means the note is local-only.
	RemoteFileID string `json:"remote_file_id,omitempty"`

	// FolderID references a Folder. Empty means the root of the board.
	FolderID string `json:"folder_id,omitempty"`

	// OriginalShareID is the share reference this note was imported from.
	OriginalShareID string `json:"original_share_id,omitempty"`

	// LastModified is epoch milliseconds of the last local edit, 0 when unknown.
	LastModified int64 `json:"last_modified,omitempty"`

	// Dirty marks a linked note whose local edit has not been pushed yet.
	Dirty bool `json:"dirty,omitempty"`
}

// Linked reports whether the note has a remote handle.
func (n Note) Linked() bool {
	return n.RemoteFileID != ""
}

// Folder groups notes. Deleting a folder moves its notes to the root.
type Folder struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	RemoteFolderID string `json:"remote_folder_id,omitempty"`
	CreatedAt      int64  `json:"created_at"` // epoch millis
}

// NewID returns a fresh note id derived from now, strictly greater than last.
func NewID(last int64, now time.Time) int64 {
	id := now.UnixMilli()
	if id <= last {
		id = last + 1
	}
	return id
}

// MaxID returns the largest id in notes, or 0.
func MaxID(notes []Note) int64 {
	var max int64
	for _, n := range notes {
		if n.ID > max {
			max = n.ID
		}
	}
	return max
}

// SortForDisplay returns a copy of notes ordered important-first, then newest id first.
func SortForDisplay(notes []Note) []Note {
	out := slices.Clone(notes)
	slices.SortStableFunc(out, func(a, b Note) int {
		if a.Important != b.Important {
			if a.Important {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out
}

// CleanTitle collapses a title onto a single line.
func CleanTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// Find returns the index of the note with the given id, or -1.
func Find(notes []Note, id int64) int {
	return slices.IndexFunc(notes, func(n Note) bool { return n.ID == id })
}
