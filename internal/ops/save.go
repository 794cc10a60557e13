package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/note"
)

// SaveNoteInput contains parameters for the SaveNote operation.
// ID 0 creates a note; otherwise the note with that id is edited.
// Nil pointers leave the field unchanged on edit.
type SaveNoteInput struct {
	ID        int64
	Title     *string
	Content   *string
	Important *bool
	FolderID  *string
}

// SaveNoteOutput contains the result of the SaveNote operation.
type SaveNoteOutput struct {
	Note    note.Note `json:"note"`
	Created bool      `json:"created"`
	Pushed  bool      `json:"pushed"`
}

// SaveNote creates or edits a note. Editing a note that is already mirrored marks it
// dirty so the next push rewrites the remote file. With auto_push set, a push follows;
// its failure is logged and does not fail the save.
func SaveNote(ctx context.Context, d *Deps, input SaveNoteInput) (*SaveNoteOutput, error) {
	var title, content string
	if input.Title != nil {
		title = note.CleanTitle(*input.Title)
	}
	if input.Content != nil {
		content = strings.TrimRight(*input.Content, " \t\r\n")
	}
	if input.ID == 0 && blank(title, content) {
		return nil, errors.NewValidation("title or content is required")
	}

	if input.FolderID != nil && *input.FolderID != "" {
		if _, ok := d.Board.Folder(*input.FolderID); !ok {
			return nil, errors.NewNotFound("folder", *input.FolderID)
		}
	}

	now := d.now()
	out := &SaveNoteOutput{}
	err := d.Board.UpdateNotes(ctx, func(notes []note.Note) ([]note.Note, error) {
		if input.ID == 0 {
			n := note.Note{
				ID:           note.NewID(note.MaxID(notes), now),
				Title:        title,
				Content:      content,
				LastModified: now.UnixMilli(),
			}
			if input.Important != nil {
				n.Important = *input.Important
			}
			if input.FolderID != nil {
				n.FolderID = *input.FolderID
			}
			out.Note = n
			out.Created = true
			return append(notes, n), nil
		}

		i := note.Find(notes, input.ID)
		if i < 0 {
			return nil, errors.NewNotFound("note", formatID(input.ID))
		}
		n := &notes[i]
		if input.Title != nil {
			n.Title = title
		}
		if input.Content != nil {
			n.Content = content
		}
		if blank(n.Title, n.Content) {
			return nil, errors.NewValidation("title or content is required")
		}
		if input.Important != nil {
			n.Important = *input.Important
		}
		if input.FolderID != nil {
			n.FolderID = *input.FolderID
		}
		n.LastModified = now.UnixMilli()
		if n.Linked() {
			n.Dirty = true
		}
		out.Note = *n
		return notes, nil
	})
	if err != nil {
		return nil, err
	}

	if n, pushed := d.autoPush(ctx, out.Note.ID); pushed {
		out.Note = n
		out.Pushed = true
	}

	return out, nil
}

// autoPush pushes pending notes when auto_push is set and reports whether note id is
// now mirrored and clean. A failed push is logged; the local change stands.
func (d *Deps) autoPush(ctx context.Context, id int64) (note.Note, bool) {
	if !d.cfg().AutoPush || d.Sync == nil {
		return note.Note{}, false
	}
	res, err := d.Sync.Push(ctx)
	if err != nil {
		d.log().Warn("auto push failed", zap.Int64(logger.FieldNoteID, id), zap.Error(err))
		return note.Note{}, false
	}
	if res.Skipped {
		return note.Note{}, false
	}
	n, ok := d.Board.Note(id)
	return n, ok && n.Linked() && !n.Dirty
}

func blank(title, content string) bool {
	return title == "" && strings.TrimSpace(content) == ""
}
