package jerseyfolio

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DataWatcher watches the data directory for edits made outside the
// backend, such as a maintenance script rewriting jerseys.json, and reports
// each changed document once its writes have settled.
type DataWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	store       *Store
	onChange    func(Document)
	log         *zap.Logger
	pending     map[Document]time.Time
	debounceDur time.Duration
	suppressDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewDataWatcher creates a watcher over the store's directory. onChange is
// called from the watcher goroutine.
func NewDataWatcher(store *Store, onChange func(Document), log *zap.Logger) (*DataWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &DataWatcher{
		watcher:     w,
		store:       store,
		onChange:    onChange,
		log:         log,
		pending:     make(map[Document]time.Time),
		debounceDur: 300 * time.Millisecond,
		suppressDur: 2 * time.Second,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It does not block.
func (dw *DataWatcher) Start(ctx context.Context) error {
	dw.mu.Lock()
	if dw.running {
		dw.mu.Unlock()
		return nil
	}
	dw.running = true
	dw.mu.Unlock()

	if err := dw.watcher.Add(dw.store.Dir()); err != nil {
		return err
	}
	dw.log.Info("watching data directory", zap.String("dir", dw.store.Dir()))
	go dw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (dw *DataWatcher) Stop() {
	dw.mu.Lock()
	if !dw.running {
		dw.mu.Unlock()
		dw.watcher.Close()
		return
	}
	dw.running = false
	dw.mu.Unlock()

	close(dw.stopCh)
	<-dw.doneCh
	if err := dw.watcher.Close(); err != nil {
		dw.log.Warn("closing data watcher", zap.Error(err))
	}
}

func (dw *DataWatcher) run(ctx context.Context) {
	defer close(dw.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-dw.stopCh:
			return
		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}
			dw.handleEvent(event)
		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			dw.log.Warn("data watcher error", zap.Error(err))
		case <-ticker.C:
			dw.flush(time.Now())
		}
	}
}

func (dw *DataWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	doc, ok := ParseDocument(filepath.Base(event.Name))
	if !ok {
		return
	}
	dw.mu.Lock()
	dw.pending[doc] = time.Now()
	dw.mu.Unlock()
}

// flush reports documents whose last event is older than the debounce
// window. Documents the store wrote itself are dropped.
func (dw *DataWatcher) flush(now time.Time) {
	var ready []Document
	dw.mu.Lock()
	for doc, at := range dw.pending {
		if now.Sub(at) >= dw.debounceDur {
			ready = append(ready, doc)
			delete(dw.pending, doc)
		}
	}
	dw.mu.Unlock()

	for _, doc := range ready {
		if dw.store.WroteRecently(doc, dw.suppressDur) {
			continue
		}
		dw.log.Info("document changed on disk", zap.String("document", string(doc)))
		dw.onChange(doc)
	}
}
