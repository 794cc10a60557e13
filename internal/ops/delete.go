package ops

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/note"
)

// DeleteNoteOutput contains the result of the DeleteNote operation.
type DeleteNoteOutput struct {
	Deleted       bool  `json:"deleted"`
	ID            int64 `json:"id"`
	RemoteDeleted bool  `json:"remote_deleted"`
}

// DeleteNote removes a note locally, then deletes its remote file on a best-effort basis.
// A remote failure is logged; the local delete stands.
func DeleteNote(ctx context.Context, d *Deps, id int64) (*DeleteNoteOutput, error) {
	var removed note.Note
	err := d.Board.UpdateNotes(ctx, func(notes []note.Note) ([]note.Note, error) {
		i := note.Find(notes, id)
		if i < 0 {
			return nil, errors.NewNotFound("note", formatID(id))
		}
		removed = notes[i]
		return slices.Delete(notes, i, i+1), nil
	})
	if err != nil {
		return nil, err
	}

	out := &DeleteNoteOutput{Deleted: true, ID: id}
	if !removed.Linked() || !d.Online() {
		return out, nil
	}

	rctx, err := d.remoteContext(ctx)
	if err == nil {
		err = d.Remote.DeleteFile(rctx, removed.RemoteFileID)
	}
	if err != nil {
		d.log().Warn("remote delete failed; note removed locally only",
			zap.Int64(logger.FieldNoteID, id),
			zap.String(logger.FieldFileID, removed.RemoteFileID),
			zap.Error(err),
		)
		return out, nil
	}
	out.RemoteDeleted = true
	return out, nil
}
