package ops

import (
	"context"

	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/syncer"
)

// SyncOutput contains the result of a sync or push.
type SyncOutput struct {
	Uploaded       int      `json:"uploaded"`
	Updated        int      `json:"updated"`
	UploadFailed   int      `json:"upload_failed"`
	Downloaded     int      `json:"downloaded"`
	DownloadFailed int      `json:"download_failed"`
	Merged         int      `json:"merged"`
	Skipped        bool     `json:"skipped"`
	Account        string   `json:"account,omitempty"`
	Failures       []string `json:"failures,omitempty"`
}

// Sync runs a full cycle: push, pull, merge.
func Sync(ctx context.Context, d *Deps) (*SyncOutput, error) {
	if d.Sync == nil {
		return nil, errors.NewInvalidRequest("no remote provider configured")
	}
	res, err := d.Sync.Sync(ctx)
	if err != nil {
		return nil, err
	}
	return syncOutput(res), nil
}

// Push uploads new and edited notes without pulling.
func Push(ctx context.Context, d *Deps) (*SyncOutput, error) {
	if d.Sync == nil {
		return nil, errors.NewInvalidRequest("no remote provider configured")
	}
	res, err := d.Sync.Push(ctx)
	if err != nil {
		return nil, err
	}
	return syncOutput(res), nil
}

func syncOutput(res *syncer.Result) *SyncOutput {
	out := &SyncOutput{
		Uploaded:       res.Uploaded,
		Updated:        res.Updated,
		UploadFailed:   res.UploadFailed,
		Downloaded:     res.Downloaded,
		DownloadFailed: res.DownloadFailed,
		Merged:         res.Merged,
		Skipped:        res.Skipped,
		Account:        res.Account,
	}
	for _, f := range res.Failures {
		label := f.Name
		if label == "" {
			label = f.FileID
		}
		out.Failures = append(out.Failures, string(f.Phase)+" "+label+": "+f.Err.Error())
	}
	return out
}
