package symbols

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pyintel/internal/engine/analyzer"
)

type WriterConfig struct {
	// BatchSize is the number of pending modules that triggers a flush.
	// Defaults to 50.
	BatchSize int
	// FlushInterval bounds how long a module waits before it is written.
	// Defaults to 1s.
	FlushInterval time.Duration
}

func (c WriterConfig) batchSize() int {
	if c.BatchSize <= 0 {
		return 50
	}
	return c.BatchSize
}

func (c WriterConfig) flushInterval() time.Duration {
	if c.FlushInterval <= 0 {
		return time.Second
	}
	return c.FlushInterval
}

// Writer reindexes modules from a single goroutine so that watch-mode
// updates never contend for the SQLite write lock. A module submitted
// several times before a flush is written once, with its latest analysis.
type Writer struct {
	store *Store
	cfg   WriterConfig

	ch      chan *analyzer.ModuleAnalysis
	flushCh chan chan error
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewWriter(store *Store, cfg WriterConfig) *Writer {
	w := &Writer{
		store:   store,
		cfg:     cfg,
		ch:      make(chan *analyzer.ModuleAnalysis, cfg.batchSize()*2),
		flushCh: make(chan chan error, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Submit queues ma. When the queue is full the module is written directly.
func (w *Writer) Submit(ma *analyzer.ModuleAnalysis) {
	if ma == nil {
		return
	}
	select {
	case w.ch <- ma:
	default:
		if err := w.store.UpsertModule(context.Background(), ma); err != nil {
			slog.Warn("symbol index write failed", "module", ma.Name, "error", err)
		}
	}
}

// Flush writes everything submitted so far and waits for it.
func (w *Writer) Flush() error {
	result := make(chan error, 1)
	select {
	case w.flushCh <- result:
	case <-w.done:
		return nil
	}
	return <-result
}

// Close writes the remaining modules and stops the goroutine.
func (w *Writer) Close() error {
	close(w.done)
	w.wg.Wait()
	var rest []*analyzer.ModuleAnalysis
	drainPending(&rest, w.ch)
	return w.write(rest)
}

func (w *Writer) run() {
	defer w.wg.Done()

	batch := make([]*analyzer.ModuleAnalysis, 0, w.cfg.batchSize())
	ticker := time.NewTicker(w.cfg.flushInterval())
	defer ticker.Stop()

	flush := func() error {
		err := w.write(batch)
		batch = batch[:0]
		return err
	}

	for {
		select {
		case ma := <-w.ch:
			batch = append(batch, ma)
			if len(batch) >= w.cfg.batchSize() {
				drainPending(&batch, w.ch)
				if err := flush(); err != nil {
					slog.Warn("symbol index flush failed", "error", err)
				}
				ticker.Reset(w.cfg.flushInterval())
			}
		case result := <-w.flushCh:
			// Modules submitted before Flush may still sit in the channel.
			drainPending(&batch, w.ch)
			result <- flush()
		case <-ticker.C:
			drainPending(&batch, w.ch)
			if err := flush(); err != nil {
				slog.Warn("symbol index flush failed", "error", err)
			}
		case <-w.done:
			drainPending(&batch, w.ch)
			if err := flush(); err != nil {
				slog.Warn("symbol index flush failed", "error", err)
			}
			return
		}
	}
}

// write keeps the latest analysis per module and writes them in one
// transaction.
func (w *Writer) write(batch []*analyzer.ModuleAnalysis) error {
	if len(batch) == 0 {
		return nil
	}
	latest := make(map[string]int, len(batch))
	var unique []*analyzer.ModuleAnalysis
	for _, ma := range batch {
		if i, ok := latest[ma.Name]; ok {
			if ma.Version >= unique[i].Version {
				unique[i] = ma
			}
			continue
		}
		latest[ma.Name] = len(unique)
		unique = append(unique, ma)
	}
	return w.store.writeBatch(context.Background(), unique)
}

func drainPending(batch *[]*analyzer.ModuleAnalysis, ch <-chan *analyzer.ModuleAnalysis) {
	for {
		select {
		case ma := <-ch:
			*batch = append(*batch, ma)
		default:
			return
		}
	}
}
