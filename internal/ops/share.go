package ops

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/note"
	"github.com/hpungsan/noteboard/internal/remote"
)

// SharedNoteTitle is used when a shared file has no non-empty line.
const SharedNoteTitle = "Shared Note"

// ShareQueryParam is the query parameter that carries a share reference in a link.
const ShareQueryParam = "view"

// ImportShareInput contains parameters for the ImportShare operation.
type ImportShareInput struct {
	// Ref is a share reference or a link carrying one in its view parameter.
	Ref string
}

// ImportShareOutput contains the result of the ImportShare operation.
type ImportShareOutput struct {
	Note    note.Note `json:"note"`
	Created bool      `json:"created"`
	Pushed  bool      `json:"pushed"`
}

// ImportShare fetches a shared file and stores it as a note. Importing the same
// reference again updates that note in place instead of adding a copy. With auto_push
// set, the imported note is pushed to the board's own remote folder.
func ImportShare(ctx context.Context, d *Deps, input ImportShareInput) (*ImportShareOutput, error) {
	ref, err := ParseShareRef(input.Ref)
	if err != nil {
		return nil, err
	}
	rctx, err := d.remoteContext(ctx)
	if err != nil {
		return nil, err
	}
	body, err := d.Remote.GetFileContent(rctx, ref)
	if err != nil {
		return nil, err
	}
	title, content := parseShared(body)

	now := d.now()
	out := &ImportShareOutput{}
	err = d.Board.UpdateNotes(ctx, func(notes []note.Note) ([]note.Note, error) {
		for i := range notes {
			n := &notes[i]
			if n.OriginalShareID != ref {
				continue
			}
			n.Title = title
			n.Content = content
			n.LastModified = now.UnixMilli()
			if n.Linked() {
				n.Dirty = true
			}
			out.Note = *n
			return notes, nil
		}

		n := note.Note{
			ID:              note.NewID(note.MaxID(notes), now),
			Title:           title,
			Content:         content,
			OriginalShareID: ref,
			LastModified:    now.UnixMilli(),
		}
		out.Note = n
		out.Created = true
		return append(notes, n), nil
	})
	if err != nil {
		return nil, err
	}

	d.log().Info("shared note imported",
		zap.String(logger.FieldShareRef, ref),
		zap.Int64(logger.FieldNoteID, out.Note.ID),
		zap.Bool("created", out.Created),
	)

	if n, pushed := d.autoPush(ctx, out.Note.ID); pushed {
		out.Note = n
		out.Pushed = true
	}
	return out, nil
}

// ParseShareRef extracts the share reference from a bare reference or a link.
func ParseShareRef(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.NewValidation("share reference is required")
	}
	if !strings.Contains(raw, "?") && !strings.Contains(raw, "://") {
		return raw, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.NewInvalidRequest("invalid share link: " + err.Error())
	}
	ref := strings.TrimSpace(u.Query().Get(ShareQueryParam))
	if ref == "" {
		return "", errors.NewInvalidRequest("share link has no " + ShareQueryParam + " parameter")
	}
	return ref, nil
}

// parseShared reads a shared file: everything before the first delimiter line is the
// note; its first non-empty line is the title and the rest is the content.
func parseShared(body string) (title, content string) {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == note.Delimiter {
			lines = lines[:i]
			break
		}
	}

	title = SharedNoteTitle
	for i, line := range lines {
		if t := strings.TrimSpace(line); t != "" {
			title = t
			content = strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
			break
		}
	}
	return title, content
}

// ShareNoteOutput contains the result of the ShareNote operation.
type ShareNoteOutput struct {
	NoteID int64  `json:"note_id"`
	Ref    string `json:"ref"`
	URL    string `json:"url,omitempty"`
}

// ShareNote publishes a note's remote file and returns a link others can import.
// A note that is not mirrored yet, or has unpushed edits, is pushed first.
func ShareNote(ctx context.Context, d *Deps, id int64) (*ShareNoteOutput, error) {
	if !d.Online() {
		return nil, errors.NewInvalidRequest("no remote provider configured")
	}
	n, ok := d.Board.Note(id)
	if !ok {
		return nil, errors.NewNotFound("note", formatID(id))
	}

	if (!n.Linked() || n.Dirty) && d.Sync != nil {
		res, err := d.Sync.Push(ctx)
		if err != nil {
			return nil, err
		}
		if res.Skipped && !n.Linked() {
			return nil, errors.NewConflict("a sync is in progress; try again when it finishes")
		}
		n, _ = d.Board.Note(id)
	}
	if !n.Linked() {
		return nil, errors.NewNetwork("upload note", nil)
	}

	rctx, err := d.remoteContext(ctx)
	if err != nil {
		return nil, err
	}
	ref, err := remote.Share(rctx, d.Remote, n.RemoteFileID)
	if err != nil {
		return nil, err
	}
	return &ShareNoteOutput{NoteID: id, Ref: ref, URL: ShareURL(d.cfg().ShareBaseURL, ref)}, nil
}

// ShareURL builds the link for ref, or "" without a base URL.
func ShareURL(base, ref string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set(ShareQueryParam, ref)
	u.RawQuery = q.Encode()
	return u.String()
}
