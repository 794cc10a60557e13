// Package syncer runs a sync cycle between the board and the remote mirror.
//
// A cycle moves through Authenticating, Uploading, Downloading and Merging and always
// ends in Idle. Uploading is a barrier: no file is listed before every upload attempt
// has finished. Within a phase items are independent; one failed note never stops the
// others. Only a failed sign-in, folder lookup, listing or local write fails the cycle.
package syncer

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/noteboard/internal/auth"
	"github.com/hpungsan/noteboard/internal/board"
	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/errors"
	"github.com/hpungsan/noteboard/internal/logger"
	"github.com/hpungsan/noteboard/internal/metrics"
	"github.com/hpungsan/noteboard/internal/note"
	"github.com/hpungsan/noteboard/internal/reconcile"
	"github.com/hpungsan/noteboard/internal/remote"
)

// Phase is the orchestrator state.
type Phase string

const (
	Idle           Phase = "idle"
	Authenticating Phase = "authenticating"
	Uploading      Phase = "uploading"
	Downloading    Phase = "downloading"
	Merging        Phase = "merging"
	Error          Phase = "error"
)

// Progress is reported on every phase change (Current and Total zero) and after every
// item of the upload and download phases. Current is strictly increasing within a phase.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
	Label   string
}

// ItemFailure describes one note or file that could not be transferred.
type ItemFailure struct {
	Phase  Phase
	NoteID int64
	FileID string
	Name   string
	Err    error
}

// Result summarises a cycle.
type Result struct {
	Uploaded       int
	Updated        int
	UploadFailed   int
	Downloaded     int
	DownloadFailed int
	Merged         int

	// Skipped is set when another cycle was already running; nothing was done.
	Skipped bool

	Account  string
	Failures []ItemFailure
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the progress callback. It is never called concurrently.
func WithProgress(fn func(Progress)) Option {
	return func(o *Orchestrator) { o.onProgress = fn }
}

// WithOnChange is called with the merged note set after it has been persisted.
func WithOnChange(fn func([]note.Note)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics records cycle and item counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// Orchestrator drives sync cycles. It is safe for concurrent use; overlapping calls
// are skipped rather than queued.
type Orchestrator struct {
	board   *board.Board
	gateway remote.Gateway
	tokens  auth.Tokens

	folderName      string
	checkpointEvery int
	concurrency     int

	log        *zap.Logger
	metrics    *metrics.Metrics
	onProgress func(Progress)
	onChange   func([]note.Note)
	now        func() time.Time

	running atomic.Bool

	phaseMu sync.Mutex
	phase   Phase

	folderMu sync.Mutex
	folderID string
}

// New returns an idle orchestrator.
func New(b *board.Board, g remote.Gateway, tokens auth.Tokens, cfg *config.Config, opts ...Option) *Orchestrator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if tokens == nil {
		tokens = auth.NoToken{}
	}
	o := &Orchestrator{
		board:           b,
		gateway:         g,
		tokens:          tokens,
		folderName:      cfg.Remote.FolderName,
		checkpointEvery: max(1, cfg.CheckpointEvery),
		concurrency:     max(1, cfg.SyncConcurrency),
		log:             zap.NewNop(),
		now:             time.Now,
		phase:           Idle,
	}
	if o.folderName == "" {
		o.folderName = config.DefaultConfig().Remote.FolderName
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Phase returns the current phase.
func (o *Orchestrator) Phase() Phase {
	o.phaseMu.Lock()
	defer o.phaseMu.Unlock()
	return o.phase
}

// Running reports whether a cycle is in flight.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Sync pushes local changes, then pulls the remote folder and merges it into the board.
func (o *Orchestrator) Sync(ctx context.Context) (*Result, error) {
	return o.run(ctx, "sync", true)
}

// Push uploads new and edited notes without pulling.
func (o *Orchestrator) Push(ctx context.Context) (*Result, error) {
	return o.run(ctx, "push", false)
}

func (o *Orchestrator) run(ctx context.Context, kind string, pull bool) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.log.Debug("cycle already running, skipping", zap.String(logger.FieldOperation, kind))
		o.metrics.Cycle(kind, metrics.Skipped, 0)
		return &Result{Skipped: true}, nil
	}
	defer o.running.Store(false)

	start := o.now()
	res := &Result{}
	err := o.cycle(ctx, res, pull)
	elapsed := o.now().Sub(start)

	if err != nil {
		o.setPhase(Error)
		o.log.Error("sync cycle failed",
			zap.String(logger.FieldOperation, kind),
			zap.Duration(logger.FieldDuration, elapsed),
			zap.Error(err),
		)
		o.metrics.Cycle(kind, metrics.Failed, elapsed)
		if errors.Is(err, errors.ErrAuth) {
			o.forgetSession(ctx)
		}
		o.setPhase(Idle)
		return res, err
	}

	o.setPhase(Idle)
	o.metrics.Cycle(kind, metrics.OK, elapsed)
	o.log.Info("sync cycle finished",
		zap.String(logger.FieldOperation, kind),
		zap.Int("uploaded", res.Uploaded),
		zap.Int("updated", res.Updated),
		zap.Int("downloaded", res.Downloaded),
		zap.Int(logger.FieldFailed, res.UploadFailed+res.DownloadFailed),
		zap.Duration(logger.FieldDuration, elapsed),
	)
	return res, nil
}

func (o *Orchestrator) cycle(ctx context.Context, res *Result, pull bool) error {
	o.setPhase(Authenticating)
	tok, err := o.tokens.Token(ctx)
	if err != nil {
		return err
	}
	ctx = remote.WithToken(ctx, tok)

	account, err := o.gateway.AccountLabel(ctx)
	switch {
	case errors.Is(err, errors.ErrAuth):
		return err
	case err != nil:
		o.log.Warn("account lookup failed", zap.Error(err))
	default:
		res.Account = account
	}

	folderID, err := o.folder(ctx)
	if err != nil {
		return err
	}

	o.setPhase(Uploading)
	if err := o.upload(ctx, folderID, res); err != nil {
		return err
	}
	if !pull {
		return nil
	}

	o.setPhase(Downloading)
	fetched, err := o.download(ctx, folderID, res)
	if err != nil {
		return err
	}

	o.setPhase(Merging)
	var merged []note.Note
	err = o.board.UpdateNotes(ctx, func(local []note.Note) ([]note.Note, error) {
		merged = reconcile.Reconcile(local, fetched)
		return merged, nil
	})
	if err != nil {
		return err
	}
	res.Merged = len(merged)
	o.metrics.SetNotes(len(merged))
	if o.onChange != nil {
		o.onChange(o.board.Notes())
	}
	return nil
}

// folder resolves the remote folder once per orchestrator.
func (o *Orchestrator) folder(ctx context.Context) (string, error) {
	o.folderMu.Lock()
	defer o.folderMu.Unlock()
	if o.folderID != "" {
		return o.folderID, nil
	}
	id, err := o.gateway.GetOrCreateFolder(ctx, o.folderName)
	if err != nil {
		return "", err
	}
	o.folderID = id
	o.log.Debug("remote folder resolved", zap.String(logger.FieldFolderID, id))
	return id, nil
}

func (o *Orchestrator) resetFolder() {
	o.folderMu.Lock()
	o.folderID = ""
	o.folderMu.Unlock()
}

// upload creates files for unlinked notes and rewrites files of dirty linked notes.
// The board is flushed every checkpointEvery successes and once at the end.
func (o *Orchestrator) upload(ctx context.Context, folderID string, res *Result) error {
	notes := o.board.Notes()
	creates := reconcile.NotesNeedingUpload(notes)
	updates := reconcile.NotesNeedingUpdate(notes)
	total := len(creates) + len(updates)
	if total == 0 {
		return nil
	}

	var (
		mu        sync.Mutex
		done      int
		sinceSave int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	push := func(n note.Note, create bool) func() error {
		return func() error {
			body := note.Encode(n)
			var (
				fileID = n.RemoteFileID
				err    error
			)
			if create {
				fileID, err = o.gateway.CreateFile(gctx, folderID, note.FileName(n), body, fileMeta(n))
			} else {
				err = o.gateway.UpdateFileContent(gctx, fileID, body)
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			o.metrics.Item(string(Uploading), err == nil)
			if err != nil {
				res.UploadFailed++
				res.Failures = append(res.Failures, ItemFailure{Phase: Uploading, NoteID: n.ID, FileID: fileID, Name: n.Title, Err: err})
				o.log.Warn("upload failed",
					zap.Int64(logger.FieldNoteID, n.ID),
					zap.String(logger.FieldFileID, fileID),
					zap.Error(err),
				)
			} else {
				if create {
					res.Uploaded++
					if !o.board.AttachRemote(n.ID, fileID, n) {
						o.log.Warn("note deleted during upload; remote file left behind",
							zap.Int64(logger.FieldNoteID, n.ID),
							zap.String(logger.FieldFileID, fileID),
						)
					}
				} else {
					res.Updated++
					o.board.MarkClean(n.ID, n)
				}
				sinceSave++
				if sinceSave >= o.checkpointEvery {
					sinceSave = 0
					if err := o.board.Flush(ctx); err != nil {
						return err
					}
				}
			}
			o.progress(Progress{Phase: Uploading, Current: done, Total: total, Label: n.Title})
			return nil
		}
	}

	for _, n := range creates {
		g.Go(push(n, true))
	}
	for _, n := range updates {
		g.Go(push(n, false))
	}
	waitErr := g.Wait()

	if err := o.board.Flush(ctx); err != nil {
		return err
	}
	if waitErr != nil {
		return waitErr
	}
	if ctx.Err() != nil {
		return errors.NewCancelled("upload")
	}
	return nil
}

// download lists the folder and fetches every file. Results keep listing order.
func (o *Orchestrator) download(ctx context.Context, folderID string, res *Result) ([]note.Note, error) {
	files, err := o.gateway.ListFiles(ctx, folderID)
	if err != nil {
		o.resetFolder()
		return nil, err
	}
	total := len(files)
	fetched := make([]*note.Note, total)

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, f := range files {
		g.Go(func() error {
			body, err := o.gateway.GetFileContent(gctx, f.ID)

			mu.Lock()
			defer mu.Unlock()
			done++
			o.metrics.Item(string(Downloading), err == nil)
			if err != nil {
				res.DownloadFailed++
				res.Failures = append(res.Failures, ItemFailure{Phase: Downloading, FileID: f.ID, Name: f.Name, Err: err})
				o.log.Warn("download failed",
					zap.String(logger.FieldFileID, f.ID),
					zap.String(logger.FieldFileName, f.Name),
					zap.Error(err),
				)
			} else {
				if !note.HasMetadata(body) {
					o.log.Warn("remote file has no metadata block; using fallbacks",
						zap.String(logger.FieldFileName, f.Name),
						zap.Error(errors.NewDecode(f.Name, nil)),
					)
				}
				n := note.Decode(body, note.FallbackTitle(f.Name), note.FallbackID(f.CreatedAt))
				n.RemoteFileID = f.ID
				fetched[i] = &n
				res.Downloaded++
			}
			o.progress(Progress{Phase: Downloading, Current: done, Total: total, Label: f.Name})
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return nil, errors.NewCancelled("download")
	}

	out := make([]note.Note, 0, res.Downloaded)
	for _, n := range fetched {
		if n != nil {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (o *Orchestrator) setPhase(p Phase) {
	o.phaseMu.Lock()
	o.phase = p
	o.phaseMu.Unlock()
	o.log.Debug("sync phase", zap.String(logger.FieldPhase, string(p)))
	o.progress(Progress{Phase: p})
}

func (o *Orchestrator) progress(p Progress) {
	if o.onProgress != nil {
		o.onProgress(p)
	}
}

// forgetSession drops a stored session the remote has rejected.
func (o *Orchestrator) forgetSession(ctx context.Context) {
	lo, ok := o.tokens.(interface{ Logout(context.Context) error })
	if !ok {
		return
	}
	if err := lo.Logout(context.WithoutCancel(ctx)); err != nil {
		o.log.Warn("could not clear rejected session", zap.Error(err))
	}
}

func fileMeta(n note.Note) map[string]string {
	return map[string]string{
		remote.MetaNoteID:    strconv.FormatInt(n.ID, 10),
		remote.MetaImportant: strconv.FormatBool(n.Important),
	}
}
