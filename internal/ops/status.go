package ops

import (
	"context"
	"time"

	"github.com/hpungsan/noteboard/internal/auth"
	"github.com/hpungsan/noteboard/internal/syncer"
)

// StatusOutput summarises the board and the remote session.
type StatusOutput struct {
	Notes     int    `json:"notes"`
	Local     int    `json:"local_only"`
	Dirty     int    `json:"dirty"`
	Folders   int    `json:"folders"`
	Provider  string `json:"provider,omitempty"`
	SignedIn  bool   `json:"signed_in"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Phase     string `json:"phase,omitempty"`
}

// Status reports counts and whether a valid session is stored.
func Status(ctx context.Context, d *Deps) (*StatusOutput, error) {
	out := &StatusOutput{Provider: d.Provider, Folders: len(d.Board.Folders())}
	for _, n := range d.Board.Notes() {
		out.Notes++
		if !n.Linked() {
			out.Local++
		}
		if n.Dirty {
			out.Dirty++
		}
	}

	switch t := d.Tokens.(type) {
	case *auth.Manager:
		s, ok, err := t.Session(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			out.SignedIn = true
			out.ExpiresAt = time.UnixMilli(s.ExpiresAt).UTC().Format(time.RFC3339)
		}
	case auth.NoToken:
		out.SignedIn = d.Online()
	}

	if d.Sync != nil {
		out.Phase = string(d.Sync.Phase())
	} else {
		out.Phase = string(syncer.Idle)
	}
	return out, nil
}
