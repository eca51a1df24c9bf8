package jobs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/doctrans/internal/htmldoc"
	"github.com/dgallion1/doctrans/internal/source"
	"github.com/dgallion1/doctrans/internal/translate"
)

// Config sizes the orchestrator.
type Config struct {
	WorkerCount  int
	MaxQueueSize int
	JobTTL       time.Duration
}

// Orchestrator manages asynchronous translation jobs.
type Orchestrator struct {
	store *Store
	queue chan *Job
	tr    *translate.Translator
	log   *slog.Logger
	cfg   Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the orchestrator; call Start to launch workers.
func NewOrchestrator(cfg Config, tr *translate.Translator, log *slog.Logger) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 32
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store: NewStore(cfg.JobTTL),
		queue: make(chan *Job, cfg.MaxQueueSize),
		tr:    tr,
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines and the store cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.store.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the workers.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit registers a new job for a document and queues it.
func (o *Orchestrator) Submit(filename, targetLang string, data []byte) (*Job, error) {
	job := &Job{
		ID:         generateULID(),
		Filename:   filename,
		TargetLang: targetLang,
		Status:     StatusQueued,
		Phase:      "queued",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	job.SetFileData(data)
	o.store.Put(job)
	select {
	case o.queue <- job:
		return job, nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return nil, fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.store.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// process runs the full translation for one job.
func (o *Orchestrator) process(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID, "filename", job.Filename)

	job.SetStatus(StatusLoading, "loading")
	loader, err := source.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "loading")
		return
	}
	doc, err := loader.Load(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("load failed", "error", err)
		job.AddError(fmt.Sprintf("load: %s", err))
		job.SetStatus(StatusFailed, "loading")
		return
	}

	groups := htmldoc.Extract(doc.Root)
	job.SetTotalGroups(len(groups))
	log.Info("extracted groups", "groups", len(groups))

	job.SetStatus(StatusTranslating, "translating")
	statuses := o.tr.TranslateGroups(ctx, groups)
	tally := translate.CountStatuses(statuses)
	job.SetTally(tally.Success, tally.Compromise, tally.Fail)
	log.Info("translation done",
		"success", tally.Success, "compromise", tally.Compromise, "fail", tally.Fail)

	var out bytes.Buffer
	if err := doc.Render(&out); err != nil {
		log.Error("render failed", "error", err)
		job.AddError(fmt.Sprintf("render: %s", err))
		job.SetStatus(StatusFailed, "rendering")
		return
	}
	job.SetResult(out.Bytes())

	switch {
	case tally.Fail == 0:
		job.SetStatus(StatusCompleted, "done")
	case tally.Success+tally.Compromise > 0:
		job.SetStatus(StatusPartial, "done")
	default:
		job.SetStatus(StatusFailed, "translating")
	}
}
