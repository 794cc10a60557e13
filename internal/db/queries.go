package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/note"
)

// ErrUniqueConstraint is returned when a write violates a UNIQUE constraint
// (two notes claiming the same remote file).
var ErrUniqueConstraint = &errors.NoteError{
	Code:    errors.ErrConflict,
	Status:  409,
	Message: "unique constraint violation",
}

// LoadNotes returns all notes in stored sequence order.
func LoadNotes(ctx context.Context, db *sql.DB) ([]note.Note, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, content, important, remote_file_id, folder_id,
			original_share_id, last_modified, dirty
		FROM notes
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, errors.NewStorage(err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return notes, nil
}

// ReplaceNotes stores notes as the complete note collection.
// The write is a single transaction: on error the previous collection is left intact.
func ReplaceNotes(ctx context.Context, db *sql.DB, notes []note.Note) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return errors.NewStorage(err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notes (
			id, position, title, content, important, remote_file_id,
			folder_id, original_share_id, last_modified, dirty
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return errors.NewStorage(err)
	}
	defer stmt.Close()

	for i, n := range notes {
		_, err := stmt.ExecContext(ctx,
			n.ID, i, n.Title, n.Content, boolToInt(n.Important),
			toNullString(n.RemoteFileID), toNullString(n.FolderID),
			toNullString(n.OriginalShareID), n.LastModified, boolToInt(n.Dirty),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrUniqueConstraint
			}
			return errors.NewStorage(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// LoadFolders returns all folders in stored sequence order.
func LoadFolders(ctx context.Context, db *sql.DB) ([]note.Folder, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, remote_folder_id, created_at
		FROM folders
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, errors.NewStorage(err)
	}
	defer rows.Close()

	var folders []note.Folder
	for rows.Next() {
		var f note.Folder
		var remoteID sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &remoteID, &f.CreatedAt); err != nil {
			return nil, errors.NewStorage(err)
		}
		f.RemoteFolderID = fromNullString(remoteID)
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorage(err)
	}
	return folders, nil
}

// ReplaceFolders stores folders as the complete folder collection, all-or-nothing.
func ReplaceFolders(ctx context.Context, db *sql.DB, folders []note.Folder) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStorage(err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM folders`); err != nil {
		return errors.NewStorage(err)
	}

	for i, f := range folders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO folders (id, position, name, remote_folder_id, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, f.ID, i, f.Name, toNullString(f.RemoteFolderID), f.CreatedAt)
		if err != nil {
			if isUniqueConstraintError(err) {
				return ErrUniqueConstraint
			}
			return errors.NewStorage(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// GetKV returns the value stored under key. ok is false when the key is absent.
func GetKV(ctx context.Context, db *sql.DB, key string) (value string, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewStorage(err)
	}
	return value, true, nil
}

// PutKV stores value under key, replacing any previous value.
func PutKV(ctx context.Context, db *sql.DB, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// DeleteKV removes key. Removing a missing key is not an error.
func DeleteKV(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.NewStorage(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanNote scans a row into a Note.
func scanNote(rows *sql.Rows) (note.Note, error) {
	var n note.Note
	var important, dirty int
	var remoteFileID, folderID, shareID sql.NullString

	err := rows.Scan(
		&n.ID, &n.Title, &n.Content, &important, &remoteFileID, &folderID,
		&shareID, &n.LastModified, &dirty,
	)
	if err != nil {
		return note.Note{}, err
	}

	n.Important = important != 0
	n.Dirty = dirty != 0
	n.RemoteFileID = fromNullString(remoteFileID)
	n.FolderID = fromNullString(folderID)
	n.OriginalShareID = fromNullString(shareID)
	return n, nil
}

// toNullString maps "" to NULL so partial unique indexes ignore unset handles.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
