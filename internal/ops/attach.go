package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/note"
	"github.com/hpungsan/noteboard/internal/remote"
)

// AttachmentsFolderName is the remote folder that holds uploaded attachments,
// kept apart from the note files so a pull never decodes them as notes.
const AttachmentsFolderName = "ViNotes_Files"

// MaxAttachmentBytes bounds an attachment upload.
const MaxAttachmentBytes = 10 << 20

// AttachFileInput contains parameters for the AttachFile operation.
type AttachFileInput struct {
	NoteID int64
	Path   string
}

// AttachFileOutput contains the result of the AttachFile operation.
type AttachFileOutput struct {
	Note   note.Note `json:"note"`
	FileID string    `json:"file_id"`
	Name   string    `json:"name"`
	Link   string    `json:"link"`
	Shared bool      `json:"shared"`
}

// AttachFile uploads a local file to the attachments folder and appends a
// "[File: name](link)" line to the note. The file is made public when the provider
// supports sharing; otherwise the link is the bare file handle.
func AttachFile(ctx context.Context, d *Deps, input AttachFileInput) (*AttachFileOutput, error) {
	if strings.TrimSpace(input.Path) == "" {
		return nil, errors.NewValidation("file path is required")
	}
	if _, ok := d.Board.Note(input.NoteID); !ok {
		return nil, errors.NewNotFound("note", formatID(input.NoteID))
	}
	rctx, err := d.remoteContext(ctx)
	if err != nil {
		return nil, err
	}

	fs := d.fs()
	info, err := fs.Stat(input.Path)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", input.Path, err))
	}
	if info.IsDir() {
		return nil, errors.NewInvalidRequest(input.Path + " is a directory")
	}
	if info.Size() > MaxAttachmentBytes {
		return nil, errors.NewValidation(fmt.Sprintf("attachment exceeds %d bytes", MaxAttachmentBytes))
	}
	data, err := afero.ReadFile(fs, input.Path)
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot read %s: %v", input.Path, err))
	}

	name := filepath.Base(input.Path)
	folderID, err := d.Remote.GetOrCreateFolder(rctx, AttachmentsFolderName)
	if err != nil {
		return nil, err
	}
	fileID, err := d.Remote.CreateFile(rctx, folderID, name, string(data), nil)
	if err != nil {
		return nil, err
	}

	out := &AttachFileOutput{FileID: fileID, Name: name, Link: fileID}
	if ref, err := remote.Share(rctx, d.Remote, fileID); err == nil {
		out.Link = ref
		out.Shared = true
		if u := ShareURL(d.cfg().ShareBaseURL, ref); u != "" {
			out.Link = u
		}
	} else if !errors.Is(err, errors.ErrInvalidRequest) {
		d.log().Warn("attachment uploaded but not shared",
			zap.String(logger.FieldFileID, fileID),
			zap.Error(err),
		)
	}

	line := fmt.Sprintf("[File: %s](%s)", name, out.Link)
	now := d.now()
	err = d.Board.UpdateNotes(ctx, func(notes []note.Note) ([]note.Note, error) {
		i := note.Find(notes, input.NoteID)
		if i < 0 {
			return nil, errors.NewNotFound("note", formatID(input.NoteID))
		}
		n := &notes[i]
		if strings.TrimSpace(n.Content) == "" {
			n.Content = line
		} else {
			n.Content = strings.TrimRight(n.Content, " \t\r\n") + "\n" + line
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

	d.log().Info("attachment uploaded",
		zap.Int64(logger.FieldNoteID, input.NoteID),
		zap.String(logger.FieldFileID, fileID),
		zap.String(logger.FieldFileName, name),
	)
	return out, nil
}
