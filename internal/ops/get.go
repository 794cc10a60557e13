package ops

import (
	"strconv"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/note"
)

// GetNote returns the note with the given id.
func GetNote(d *Deps, id int64) (*note.Note, error) {
	n, ok := d.Board.Note(id)
	if !ok {
		return nil, errors.NewNotFound("note", formatID(id))
	}
	return &n, nil
}

// ParseNoteID parses a note id given as text.
func ParseNoteID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewInvalidRequest("invalid note id: " + s)
	}
	return id, nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
