package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mediaqueue/pkg/admission"
	"github.com/dmitrymomot/mediaqueue/pkg/async"
	"github.com/dmitrymomot/mediaqueue/pkg/file"
	"github.com/dmitrymomot/mediaqueue/pkg/logger"
	"github.com/dmitrymomot/mediaqueue/pkg/media"
	"github.com/dmitrymomot/mediaqueue/pkg/processor"
)

// Item is one file to upload.
type Item struct {
	// ID identifies the upload in statuses and progress reports.
	// Upload assigns one when it is zero.
	ID   uuid.UUID
	Path string
	// Key is the storage key. Upload derives it from KeyPrefix and the file
	// name when it is empty.
	Key string
}

// Result describes a finished upload.
type Result struct {
	ID           uuid.UUID
	Key          string
	URL          string
	Size         int64
	Kind         media.Kind
	ThumbnailURL string
	Duration     time.Duration
}

// Uploader streams local media files into a file.Storage, deciding which
// uploads may run together with an admission policy.
type Uploader struct {
	storage  file.Storage
	cfg      Config
	prober   media.Prober
	status   StatusStore
	progress ProgressFunc
	policy   processor.AdmissionPolicy[Item]
	logger   *slog.Logger
	ctx      context.Context

	proc *processor.Processor[Item, Result]
	wg   sync.WaitGroup

	// gen is cancelled by Cancel to interrupt the uploads it aborts.
	mu     sync.Mutex
	gen    context.Context
	cancel context.CancelFunc

	statusMu sync.Mutex
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(u *Uploader) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithStatusStore records upload statuses in store.
func WithStatusStore(store StatusStore) Option {
	return func(u *Uploader) {
		u.status = store
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(u *Uploader) {
		u.progress = fn
	}
}

// WithProber replaces the default cached filesystem prober.
func WithProber(p media.Prober) Option {
	return func(u *Uploader) {
		if p != nil {
			u.prober = p
		}
	}
}

// WithPolicy replaces MediaPolicy.
func WithPolicy(p processor.AdmissionPolicy[Item]) Option {
	return func(u *Uploader) {
		u.policy = p
	}
}

// WithContext sets the context uploads run under. Cancelling it aborts them.
func WithContext(ctx context.Context) Option {
	return func(u *Uploader) {
		if ctx != nil {
			u.ctx = ctx
		}
	}
}

// New creates an uploader. Call Close to release it.
func New(storage file.Storage, cfg Config, opts ...Option) (*Uploader, error) {
	if storage == nil {
		return nil, ErrStorageNil
	}

	u := &Uploader{
		storage: storage,
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.prober == nil {
		u.prober = media.NewCachedProber(nil)
	}

	if u.policy == nil {
		pc := PolicyConfig{
			MaxConcurrent:    u.cfg.MaxConcurrent,
			MaxBytesInFlight: u.cfg.MaxBytesInFlight,
			LargeFileBytes:   u.cfg.LargeFileBytes,
			LargeImagePixels: u.cfg.LargeImagePixels,
		}
		if u.cfg.RulesFile != "" {
			rules, err := admission.LoadRulesFile(u.cfg.RulesFile)
			if err != nil {
				return nil, errors.Join(ErrFailedToLoadRules, err)
			}
			pc.Rules = &rules
		}
		u.policy = NewMediaPolicy(u.prober, pc, u.logger.With(logger.Component("policy")))
	}

	u.gen, u.cancel = context.WithCancel(context.Background())

	proc, err := processor.New(u.handle, u.policy,
		processor.WithContext(u.ctx),
		processor.WithLogger(u.logger.With(logger.Component("processor"))),
		processor.WithAdmissionTimeout(u.cfg.AdmissionTimeout),
		processor.WithPolicyRetryDelay(u.cfg.PolicyRetryDelay),
	)
	if err != nil {
		u.cancel()
		return nil, err
	}
	u.proc = proc

	return u, nil
}

// Upload queues items and returns one future per item, in the same order.
// Futures of cancelled uploads reject with processor.ErrCancelled.
func (u *Uploader) Upload(items ...Item) []*async.Future[Result] {
	futures := make([]*async.Future[Result], 0, len(items))
	for _, it := range items {
		if it.ID == uuid.Nil {
			it.ID = uuid.New()
		}
		if it.Path == "" {
			futures = append(futures, async.Rejected[Result](ErrEmptyPath))
			continue
		}
		if it.Key == "" {
			it.Key = file.JoinKey(u.cfg.KeyPrefix, filepath.Base(it.Path))
		}

		u.setStatus(Status{ID: it.ID, Key: it.Key, Path: it.Path, State: StateQueued})

		fut := u.proc.Submit(it)
		u.wg.Add(1)
		go u.track(it, fut)
		futures = append(futures, fut)
	}
	return futures
}

// UploadDir uploads every regular, non-hidden file under dir and waits for
// them. Keys mirror the paths relative to dir. Results of successful uploads
// are returned in path order together with the joined errors of the failed ones.
func (u *Uploader) UploadDir(ctx context.Context, dir string) ([]Result, error) {
	items, err := ScanDir(dir, u.cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}

	futures := u.Upload(items...)
	results := make([]Result, 0, len(futures))
	var errs []error
	for i, fut := range futures {
		res, err := fut.AwaitContext(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return results, ctxErr
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", items[i].Path, err))
			continue
		}
		results = append(results, res)
	}

	return results, errors.Join(errs...)
}

// Cancel aborts every queued and running upload. Running uploads have their
// context cancelled; all their futures reject with processor.ErrCancelled.
// The uploader stays usable.
func (u *Uploader) Cancel() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.proc.Clear()
	u.cancel()
	u.gen, u.cancel = context.WithCancel(context.Background())
}

// Pending returns the number of uploads queued or running.
func (u *Uploader) Pending() int {
	s := u.proc.Stats()
	return s.Queued + s.Executing
}

// Stats returns the processor counters.
func (u *Uploader) Stats() processor.Stats {
	return u.proc.Stats()
}

// Close cancels pending uploads and waits until their statuses are recorded.
func (u *Uploader) Close() error {
	err := u.proc.Close()

	u.mu.Lock()
	u.cancel()
	u.mu.Unlock()

	u.wg.Wait()
	return err
}

// bind derives the context for one upload so Cancel can interrupt it.
func (u *Uploader) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	u.mu.Lock()
	gen := u.gen
	u.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(gen, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (u *Uploader) handle(ctx context.Context, it Item) (Result, error) {
	ctx, done := u.bind(ctx)
	defer done()

	start := time.Now()
	u.setStatus(Status{ID: it.ID, Key: it.Key, Path: it.Path, State: StateUploading})

	f, err := os.Open(it.Path)
	if err != nil {
		return Result{}, errors.Join(ErrFailedToOpenFile, err)
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return Result{}, errors.Join(ErrFailedToOpenFile, err)
	}
	if !st.Mode().IsRegular() {
		return Result{}, fmt.Errorf("%w: %s", ErrNotRegularFile, it.Path)
	}

	info, err := u.prober.Probe(ctx, it.Path)
	if err != nil {
		u.logger.WarnContext(ctx, "probe failed, uploading as generic file",
			logger.UploadID(it.ID),
			logger.Path(it.Path),
			logger.Error(err))
		info = media.Info{Kind: media.KindFromExtension(it.Path), MIMEType: file.DefaultContentType}
	}

	var body io.Reader = f
	if u.progress != nil {
		body = &progressReader{
			r:      f,
			p:      Progress{ID: it.ID, Key: it.Key, Total: st.Size()},
			report: u.progress,
		}
	}

	stored, err := u.storage.Put(ctx, it.Key, body, st.Size(), info.MIMEType)
	if err != nil {
		return Result{}, errors.Join(ErrFailedToStore, err)
	}

	res := Result{
		ID:   it.ID,
		Key:  stored.Key,
		URL:  stored.URL,
		Size: stored.Size,
		Kind: info.Kind,
	}
	if u.cfg.Thumbnails && info.Kind == media.KindImage {
		res.ThumbnailURL = u.thumbnail(ctx, it, f)
	}
	res.Duration = time.Since(start)

	u.logger.InfoContext(ctx, "upload completed",
		logger.UploadID(it.ID),
		logger.Key(res.Key),
		logger.Kind(res.Kind),
		logger.Size(res.Size),
		logger.Duration(res.Duration))

	return res, nil
}

// thumbnail renders and stores a preview of the image in f. Failures are
// logged and leave the result without a thumbnail.
func (u *Uploader) thumbnail(ctx context.Context, it Item, f io.ReadSeeker) string {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		u.logger.WarnContext(ctx, "thumbnail skipped", logger.UploadID(it.ID), logger.Error(err))
		return ""
	}

	data, err := media.Thumbnail(f, u.cfg.ThumbnailWidth, u.cfg.ThumbnailHeight)
	if err != nil {
		u.logger.WarnContext(ctx, "thumbnail skipped", logger.UploadID(it.ID), logger.Error(err))
		return ""
	}

	stored, err := u.storage.Put(ctx, ThumbnailKey(it.Key), bytes.NewReader(data), int64(len(data)), "image/jpeg")
	if err != nil {
		u.logger.WarnContext(ctx, "thumbnail upload failed", logger.UploadID(it.ID), logger.Error(err))
		return ""
	}
	return stored.URL
}

// track records the terminal status of an upload once its future settles.
func (u *Uploader) track(it Item, fut *async.Future[Result]) {
	defer u.wg.Done()

	res, err := fut.Await()
	st := Status{ID: it.ID, Key: it.Key, Path: it.Path}
	switch {
	case err == nil:
		st.State = StateCompleted
		st.Key = res.Key
		st.Size = res.Size
		st.URL = res.URL
	case errors.Is(err, processor.ErrCancelled), errors.Is(err, processor.ErrClosed):
		st.State = StateCancelled
	default:
		st.State = StateFailed
		st.Error = err.Error()
		u.logger.Warn("upload failed",
			logger.UploadID(it.ID),
			logger.Path(it.Path),
			logger.Error(err))
	}
	u.setStatus(st)
}

// setStatus writes st unless the upload already reached a terminal state.
func (u *Uploader) setStatus(st Status) {
	if u.status == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(u.ctx), u.cfg.StatusTimeout)
	defer cancel()

	u.statusMu.Lock()
	defer u.statusMu.Unlock()

	if !st.State.Terminal() {
		if cur, err := u.status.Get(ctx, st.ID); err == nil && cur.State.Terminal() {
			return
		}
	}

	st.UpdatedAt = time.Now()
	if err := u.status.Set(ctx, st); err != nil {
		u.logger.Error("failed to record upload status",
			logger.UploadID(st.ID),
			slog.String("state", string(st.State)),
			logger.Error(err))
	}
}

// ThumbnailKey returns the key a thumbnail of key is stored under:
// "a/b/cat.png" becomes "a/b/thumbs/cat.jpg".
func ThumbnailKey(key string) string {
	dir, base := path.Split(key)
	return file.JoinKey(dir, "thumbs", strings.TrimSuffix(base, path.Ext(base))+".jpg")
}

// ScanDir lists the regular, non-hidden files under dir as items keyed by
// prefix joined with their slash-separated path relative to dir.
func ScanDir(dir, prefix string) ([]Item, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Join(ErrFailedToScanDir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}

	var items []Item
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != dir {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		items = append(items, Item{
			ID:   uuid.New(),
			Path: p,
			Key:  file.JoinKey(prefix, filepath.ToSlash(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToScanDir, err)
	}

	return items, nil
}
