package ops

import (
	"context"
	"slices"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/note"
)

// FolderIDPrefix starts every folder id.
const FolderIDPrefix = "fld_"

// MaxFolderNameLen bounds folder names in runes.
const MaxFolderNameLen = 100

// CreateFolderOutput contains the result of the CreateFolder operation.
type CreateFolderOutput struct {
	Folder note.Folder `json:"folder"`
}

// CreateFolder adds a folder and mirrors it remotely when possible. The local folder
// is created even if the remote mirror fails.
func CreateFolder(ctx context.Context, d *Deps, name string) (*CreateFolderOutput, error) {
	name = note.CleanTitle(name)
	if name == "" {
		return nil, errors.NewValidation("folder name is required")
	}
	if len([]rune(name)) > MaxFolderNameLen {
		return nil, errors.NewValidation("folder name is too long")
	}

	f := note.Folder{
		ID:        FolderIDPrefix + strings.ToLower(ulid.Make().String()),
		Name:      name,
		CreatedAt: d.now().UnixMilli(),
	}
	if d.Online() {
		f.RemoteFolderID = d.mirrorFolder(ctx, name)
	}

	err := d.Board.UpdateFolders(ctx, func(folders []note.Folder) ([]note.Folder, error) {
		for _, existing := range folders {
			if strings.EqualFold(existing.Name, name) {
				return nil, errors.NewConflict("folder already exists: " + existing.Name)
			}
		}
		return append(folders, f), nil
	})
	if err != nil {
		return nil, err
	}
	return &CreateFolderOutput{Folder: f}, nil
}

// mirrorFolder creates name under the board's remote folder and returns its id, or ""
// when the remote call fails.
func (d *Deps) mirrorFolder(ctx context.Context, name string) string {
	rctx, err := d.remoteContext(ctx)
	var id string
	if err == nil {
		var root string
		root, err = d.Remote.GetOrCreateFolder(rctx, d.cfg().Remote.FolderName)
		if err == nil {
			id, err = d.Remote.CreateFolder(rctx, root, name)
		}
	}
	if err != nil {
		d.log().Warn("remote folder mirror failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	d.log().Debug("remote folder created", zap.String(logger.FieldFolderID, id))
	return id
}

// DeleteFolderOutput contains the result of the DeleteFolder operation.
type DeleteFolderOutput struct {
	Deleted    bool   `json:"deleted"`
	ID         string `json:"id"`
	NotesMoved int    `json:"notes_moved"`
}

// DeleteFolder removes a folder. Its notes move to the root; no note is deleted.
// Notes are moved first, so a failure between the two writes leaves an empty folder
// rather than notes pointing at a missing one.
func DeleteFolder(ctx context.Context, d *Deps, id string) (*DeleteFolderOutput, error) {
	if _, ok := d.Board.Folder(id); !ok {
		return nil, errors.NewNotFound("folder", id)
	}

	moved := 0
	err := d.Board.UpdateNotes(ctx, func(notes []note.Note) ([]note.Note, error) {
		for i := range notes {
			if notes[i].FolderID == id {
				notes[i].FolderID = ""
				moved++
			}
		}
		return notes, nil
	})
	if err != nil {
		return nil, err
	}

	err = d.Board.UpdateFolders(ctx, func(folders []note.Folder) ([]note.Folder, error) {
		return slices.DeleteFunc(folders, func(f note.Folder) bool { return f.ID == id }), nil
	})
	if err != nil {
		return nil, err
	}
	return &DeleteFolderOutput{Deleted: true, ID: id, NotesMoved: moved}, nil
}

// FolderSummary is a folder with its note count.
type FolderSummary struct {
	note.Folder
	Notes int `json:"notes"`
}

// ListFolders returns folders in creation order with note counts.
func ListFolders(d *Deps) []FolderSummary {
	counts := map[string]int{}
	for _, n := range d.Board.Notes() {
		counts[n.FolderID]++
	}
	folders := d.Board.Folders()
	out := make([]FolderSummary, 0, len(folders))
	for _, f := range folders {
		out = append(out, FolderSummary{Folder: f, Notes: counts[f.ID]})
	}
	return out
}
