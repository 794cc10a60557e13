// Package board owns the in-memory note and folder collections for a running process.
//
// All mutation goes through the Board, which persists to the local store before the new
// state becomes visible. Readers always get copies.
package board

import (
	"context"
	"database/sql"
	"slices"
	"sync"

	"github.com/hpungsan/noteboard/internal/db"
	"github.com/hpungsan/noteboard/internal/note"
)

// Board is the authoritative local state.
type Board struct {
	db *sql.DB

	mu      sync.RWMutex
	notes   []note.Note
	folders []note.Folder
	pending bool // in-memory changes not yet flushed
}

// New creates an empty board backed by database. Call Load before use.
func New(database *sql.DB) *Board {
	return &Board{db: database}
}

// Open creates a board and loads both collections from the store.
func Open(ctx context.Context, database *sql.DB) (*Board, error) {
	b := New(database)
	if err := b.Load(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// Load replaces the in-memory collections with the stored ones.
func (b *Board) Load(ctx context.Context) error {
	notes, err := db.LoadNotes(ctx, b.db)
	if err != nil {
		return err
	}
	folders, err := db.LoadFolders(ctx, b.db)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.notes = notes
	b.folders = folders
	b.pending = false
	return nil
}

// Notes returns a copy of the note collection in stored order.
func (b *Board) Notes() []note.Note {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.notes)
}

// Folders returns a copy of the folder collection.
func (b *Board) Folders() []note.Folder {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.folders)
}

// Note returns the note with the given id.
func (b *Board) Note(id int64) (note.Note, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if i := note.Find(b.notes, id); i >= 0 {
		return b.notes[i], true
	}
	return note.Note{}, false
}

// Folder returns the folder with the given id.
func (b *Board) Folder(id string) (note.Folder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, f := range b.folders {
		if f.ID == id {
			return f, true
		}
	}
	return note.Folder{}, false
}

// ReplaceNotes persists notes as the whole collection, then makes it visible.
// On error the board is unchanged.
func (b *Board) ReplaceNotes(ctx context.Context, notes []note.Note) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replaceNotesLocked(ctx, slices.Clone(notes))
}

// ReplaceFolders persists folders as the whole collection, then makes it visible.
func (b *Board) ReplaceFolders(ctx context.Context, folders []note.Folder) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	folders = slices.Clone(folders)
	if err := db.ReplaceFolders(ctx, b.db, folders); err != nil {
		return err
	}
	b.folders = folders
	return nil
}

// UpdateNotes applies fn to a copy of the notes and persists the result.
// fn runs under the board lock, so concurrent updates never interleave.
func (b *Board) UpdateNotes(ctx context.Context, fn func([]note.Note) ([]note.Note, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := fn(slices.Clone(b.notes))
	if err != nil {
		return err
	}
	return b.replaceNotesLocked(ctx, next)
}

// UpdateFolders applies fn to a copy of the folders and persists the result.
func (b *Board) UpdateFolders(ctx context.Context, fn func([]note.Folder) ([]note.Folder, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := fn(slices.Clone(b.folders))
	if err != nil {
		return err
	}
	if err := db.ReplaceFolders(ctx, b.db, next); err != nil {
		return err
	}
	b.folders = next
	return nil
}

// AttachRemote links note id to the remote file created from pushed, in memory only.
// Call Flush to persist. A note edited since pushed was encoded stays Dirty so the next
// push updates the file. It reports whether the note still exists.
func (b *Board) AttachRemote(id int64, fileID string, pushed note.Note) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := note.Find(b.notes, id)
	if i < 0 {
		return false
	}
	b.notes[i].RemoteFileID = fileID
	b.notes[i].Dirty = !sameText(b.notes[i], pushed)
	b.pending = true
	return true
}

// MarkClean clears the Dirty flag of note id in memory only, if the note still has
// the content that was pushed. Call Flush to persist.
func (b *Board) MarkClean(id int64, pushed note.Note) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := note.Find(b.notes, id)
	if i < 0 || !sameText(b.notes[i], pushed) {
		return false
	}
	b.notes[i].Dirty = false
	b.pending = true
	return true
}

// Flush persists in-memory changes made by AttachRemote and MarkClean.
func (b *Board) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.pending {
		return nil
	}
	return b.replaceNotesLocked(ctx, b.notes)
}

// Pending reports whether there are unflushed in-memory changes.
func (b *Board) Pending() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pending
}

// Value returns a small persisted value such as the session.
func (b *Board) Value(ctx context.Context, key string) (string, bool, error) {
	return db.GetKV(ctx, b.db, key)
}

// SetValue persists a small value under key.
func (b *Board) SetValue(ctx context.Context, key, value string) error {
	return db.PutKV(ctx, b.db, key, value)
}

// DeleteValue removes key.
func (b *Board) DeleteValue(ctx context.Context, key string) error {
	return db.DeleteKV(ctx, b.db, key)
}

// sameText reports whether a and b encode to the same file body.
func sameText(a, b note.Note) bool {
	return a.Title == b.Title && a.Content == b.Content && a.Important == b.Important
}

func (b *Board) replaceNotesLocked(ctx context.Context, notes []note.Note) error {
	if err := db.ReplaceNotes(ctx, b.db, notes); err != nil {
		return err
	}
	b.notes = notes
	b.pending = false
	return nil
}
