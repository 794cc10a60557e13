// Package reconcile merges a freshly fetched remote note set into the local one.
//
// Everything here is a pure in-memory transform: no I/O, no retained references.
// Fetching and decoding happen before Reconcile is called, and persisting the
// result is the caller's job.
package reconcile

import "github.com/hpungsan/noteboard/internal/note"

// Reconcile merges remote into local and returns the authoritative set.
//
// Remote entries are indexed by id and by RemoteFileID; when the remote listing holds
// the same id twice the first entry in listing order wins. A local note pairs with the
// remote entry carrying its id, or failing that with the entry carrying its RemoteFileID
// (a file whose decoded id changed). For a pair:
//   - importance is promoted, never demoted (local true beats remote false);
//   - remote title and content win, unless the local copy is Dirty (edited after its
//     last upload and not yet pushed), in which case the local text is kept;
//   - RemoteFileID comes from the remote entry;
//   - FolderID, OriginalShareID and LastModified are kept from the local copy since the
//     file format does not carry them.
//
// Local notes without a remote twin are appended unchanged. The result lists remote
// entries in listing order followed by local-only notes in local order. No two notes
// in the result share a non-empty RemoteFileID.
func Reconcile(local, remote []note.Note) []note.Note {
	merged := make([]note.Note, 0, len(local)+len(remote))
	byID := make(map[int64]int, len(remote))
	byFile := make(map[string]int, len(remote))

	for _, r := range remote {
		if _, dup := byID[r.ID]; dup {
			continue
		}
		if _, dup := byFile[r.RemoteFileID]; dup && r.Linked() {
			continue
		}
		byID[r.ID] = len(merged)
		if r.Linked() {
			byFile[r.RemoteFileID] = len(merged)
		}
		merged = append(merged, r)
	}

	for _, l := range local {
		i, ok := byID[l.ID]
		if !ok && l.Linked() {
			i, ok = byFile[l.RemoteFileID]
		}
		if !ok {
			if l.Linked() {
				byFile[l.RemoteFileID] = len(merged)
			}
			merged = append(merged, l)
			continue
		}

		c := &merged[i]
		if l.Important {
			c.Important = true
		}
		if l.Dirty {
			c.Title = l.Title
			c.Content = l.Content
			c.Dirty = true
		}
		if c.FolderID == "" {
			c.FolderID = l.FolderID
		}
		if c.OriginalShareID == "" {
			c.OriginalShareID = l.OriginalShareID
		}
		if l.LastModified > c.LastModified {
			c.LastModified = l.LastModified
		}
		if !c.Linked() && l.Linked() {
			if _, taken := byFile[l.RemoteFileID]; !taken {
				c.RemoteFileID = l.RemoteFileID
				byFile[l.RemoteFileID] = i
			}
		}
	}

	return merged
}

// NotesNeedingUpload returns the notes that have never been uploaded, in their original order.
func NotesNeedingUpload(notes []note.Note) []note.Note {
	var out []note.Note
	for _, n := range notes {
		if !n.Linked() {
			out = append(out, n)
		}
	}
	return out
}

// NotesNeedingUpdate returns linked notes with local edits that were never pushed.
func NotesNeedingUpdate(notes []note.Note) []note.Note {
	var out []note.Note
	for _, n := range notes {
		if n.Linked() && n.Dirty {
			out = append(out, n)
		}
	}
	return out
}
