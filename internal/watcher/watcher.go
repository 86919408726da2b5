package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"loopforge/internal/items"
	"loopforge/internal/logging"
	"loopforge/internal/notifications"
	"loopforge/internal/services"
	"loopforge/internal/stage"
)

// Result summarizes one drain cycle.
type Result struct {
	Processed int
	Failed    int
	Dropped   int
}

// Watcher feeds a stage processor from an input directory. Items arrive from
// two sources with different correctness roles: a reconciliation scan at
// startup catches work left over from before the process started, and
// file-creation events catch work arriving while it runs. Both feed one FIFO
// retry queue.
type Watcher struct {
	inputDir      string
	processor     stage.Processor
	interval      time.Duration
	retryInterval time.Duration
	logger        *slog.Logger
	notifier      notifications.Service

	mu     sync.Mutex
	queue  []string
	queued map[string]struct{}
}

// Option customizes a watcher.
type Option func(*Watcher)

// WithRetryInterval shortens the wait before the next drain when the last
// one left failed items behind. Ignored unless shorter than the regular
// interval.
func WithRetryInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.retryInterval = d
		}
	}
}

// New constructs a watcher for one stage.
func New(inputDir string, processor stage.Processor, interval time.Duration, logger *slog.Logger, notifier notifications.Service, opts ...Option) (*Watcher, error) {
	if inputDir == "" {
		return nil, errors.New("watcher requires an input directory")
	}
	if processor == nil {
		return nil, errors.New("watcher requires a processor")
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.Noop()
	}
	w := &Watcher{
		inputDir:  inputDir,
		processor: processor,
		interval:  interval,
		logger:    logging.NewComponentLogger(logger, "watcher-"+processor.Name()),
		notifier:  notifier,
		queued:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Enqueue appends an item path to the retry queue unless it is already
// queued.
func (w *Watcher) Enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.queued[path]; ok {
		return
	}
	w.queued[path] = struct{}{}
	w.queue = append(w.queue, path)
}

// QueueLen reports the number of items currently queued.
func (w *Watcher) QueueLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Reconcile scans the input directory and enqueues every item whose status
// does not already reflect this stage's completion. Running it against a
// directory of finished items enqueues nothing.
func (w *Watcher) Reconcile(ctx context.Context) (int, error) {
	found, err := items.ScanDir(w.inputDir, w.logger)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, item := range found {
		if err := ctx.Err(); err != nil {
			return enqueued, err
		}
		if w.processor.Completed(item) {
			continue
		}
		before := w.QueueLen()
		w.Enqueue(item.Path())
		if w.QueueLen() > before {
			enqueued++
		}
	}
	if enqueued > 0 {
		w.logger.Info("reconciled input directory",
			logging.String("dir", w.inputDir),
			logging.Int("enqueued", enqueued))
	}
	return enqueued, nil
}

// Drain attempts every item queued at the start of the call, exactly once
// each. A failed item is re-appended at the tail so other items get a turn
// before its retry. Items newly discovered during the drain wait for the
// next cycle.
func (w *Watcher) Drain(ctx context.Context) Result {
	w.mu.Lock()
	pending := len(w.queue)
	w.mu.Unlock()

	var res Result
	for i := 0; i < pending; i++ {
		if ctx.Err() != nil {
			return res
		}
		path, ok := w.pop()
		if !ok {
			return res
		}
		w.processOne(ctx, path, &res)
	}
	return res
}

func (w *Watcher) pop() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return "", false
	}
	path := w.queue[0]
	w.queue = w.queue[1:]
	delete(w.queued, path)
	return path, true
}

func (w *Watcher) processOne(ctx context.Context, path string, res *Result) {
	item, err := items.Load(path)
	if err != nil {
		res.Dropped++
		w.logger.Warn("dropping unreadable item", logging.String("path", path), logging.Error(err))
		return
	}

	if w.processor.Completed(item) {
		return
	}

	itemCtx := services.WithItemID(ctx, item.Metadata.ID)
	itemCtx = services.WithStage(itemCtx, w.processor.Name())
	log := logging.WithContext(itemCtx, w.logger)

	log.Info("processing item", logging.String("path", path))
	output, err := w.processor.Process(itemCtx, item)
	if err != nil {
		if services.IsTerminal(err) {
			res.Dropped++
			log.Error("item rejected", logging.Error(err))
			if nerr := w.notifier.NotifyItemFailed(ctx, w.processor.Name(), item.Metadata.ID, err); nerr != nil {
				log.Warn("notify item failure", logging.Error(nerr))
			}
			return
		}
		res.Failed++
		if services.IsTransient(err) {
			log.Warn("transient backend failure, requeueing", logging.Error(err))
		} else {
			log.Warn("item failed, requeueing", logging.Error(err))
		}
		w.Enqueue(path)
		return
	}

	res.Processed++
	log.Info("item processed", logging.String("output", output))
}

// Run watches the input directory until the context is cancelled. The queue
// drains once per tick; file-creation events enqueue between ticks.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.inputDir); err != nil {
		return fmt.Errorf("watch %s: %w", w.inputDir, err)
	}

	if _, err := w.Reconcile(ctx); err != nil {
		return err
	}
	res := w.drainAndLog(ctx)

	timer := time.NewTimer(w.delayAfter(res))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			res = w.drainAndLog(ctx)
			timer.Reset(w.delayAfter(res))
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) && items.IsItemFile(filepath.Base(event.Name)) {
				w.logger.Info("new item discovered", logging.String("path", event.Name))
				w.Enqueue(event.Name)
			}
		case werr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", logging.Error(werr))
		}
	}
}

// RunOnce reconciles and drains until the queue is empty or a full cycle
// makes no progress. Items still queued at that point are reported in the
// result and left for the next invocation rather than failing the run; a
// stage with partial output is better than a halted pipeline.
func (w *Watcher) RunOnce(ctx context.Context) (Result, error) {
	if _, err := w.Reconcile(ctx); err != nil {
		return Result{}, err
	}

	var total Result
	for w.QueueLen() > 0 {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res := w.Drain(ctx)
		total.Processed += res.Processed
		total.Failed += res.Failed
		total.Dropped += res.Dropped
		if res.Processed == 0 && w.QueueLen() > 0 {
			w.logger.Warn("leaving unprocessed items for the next run",
				logging.Int("remaining", w.QueueLen()))
			break
		}
	}
	if total.Processed+total.Failed+total.Dropped > 0 {
		if err := w.notifier.NotifyStageCompleted(ctx, w.processor.Name(), total.Processed, total.Failed); err != nil {
			w.logger.Warn("notify stage completion", logging.Error(err))
		}
	}
	return total, nil
}

// delayAfter picks the wait before the next drain. A cycle that left
// failures behind retries sooner when a retry interval is configured.
func (w *Watcher) delayAfter(res Result) time.Duration {
	if res.Failed > 0 && w.retryInterval > 0 && w.retryInterval < w.interval {
		return w.retryInterval
	}
	return w.interval
}

func (w *Watcher) drainAndLog(ctx context.Context) Result {
	res := w.Drain(ctx)
	if res.Processed == 0 && res.Failed == 0 && res.Dropped == 0 {
		return res
	}
	w.logger.Info("drain cycle complete",
		logging.Int("processed", res.Processed),
		logging.Int("failed", res.Failed),
		logging.Int("dropped", res.Dropped),
		logging.Int("remaining", w.QueueLen()))
	return res
}
