package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/note"
)

// ExportNotesInput contains parameters for the ExportNotes operation.
type ExportNotesInput struct {
	Dir      string  // optional, default: <base dir>/exports
	FolderID *string // optional filter, "" for root notes
}

// ExportNotesOutput contains the result of the ExportNotes operation.
type ExportNotesOutput struct {
	Dir        string   `json:"dir"`
	Count      int      `json:"count"`
	Files      []string `json:"files"`
	ExportedAt int64    `json:"exported_at"`
}

// ExportNotes writes every note as a file in the remote file format, one file per note,
// named like its remote copy. Existing files with the same name are replaced atomically.
func ExportNotes(ctx context.Context, d *Deps, input ExportNotesInput) (*ExportNotesOutput, error) {
	fs := d.fs()
	dir := input.Dir
	if dir == "" {
		dir = d.exportsDir()
	}
	dir, err := ValidateExportDir(fs, dir, d.exportsDir(), d.cfg())
	if err != nil {
		return nil, err
	}
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	notes := ListNotes(d, ListNotesInput{FolderID: input.FolderID}).Notes
	out := &ExportNotesOutput{Dir: dir, Files: []string{}, ExportedAt: d.now().UnixMilli()}
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelled("export")
		}
		name := note.FileName(n)
		if err := writeFileAtomic(d, filepath.Join(dir, name), []byte(note.Encode(n))); err != nil {
			return nil, err
		}
		out.Files = append(out.Files, name)
	}
	out.Count = len(out.Files)

	d.log().Info("notes exported", zap.String("dir", dir), zap.Int(logger.FieldCount, out.Count))
	return out, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it into place,
// so a failed export never leaves a truncated file behind.
func writeFileAtomic(d *Deps, path string, data []byte) error {
	fs := d.fs()
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	f, err := fs.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|noFollow, 0600)
	if err != nil {
		if isSymlinkErr(err) {
			return errors.NewInvalidRequest("cannot write to symlink")
		}
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if !success {
			_ = fs.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.NewInternal(err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errors.NewInternal(err)
	}
	if err := f.Close(); err != nil {
		return errors.NewInternal(err)
	}
	if isSymlink(fs, path) {
		return errors.NewInvalidRequest("cannot overwrite a symlink: " + filepath.Base(path))
	}
	if err := fs.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize export file: %w", err))
	}
	success = true
	return nil
}
