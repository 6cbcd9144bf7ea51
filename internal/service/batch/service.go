package batch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/zhouzirui/callsight/backend/internal/analysis/insight"
)

// Status of one transcription job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is the pollable record for one uploaded recording. Results live
// only for the process lifetime.
type Job struct {
	ID          string          `json:"id"`
	FileName    string          `json:"file_name"`
	Status      Status          `json:"status"`
	Transcript  string          `json:"transcript,omitempty"`
	Insights    *insight.Bundle `json:"insights,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Transcriber is the slice of the transcription service batch jobs use.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, useReal bool) string
}

type queuedJob struct {
	id   string
	path string
}

// Service runs the request/response transcription flow: uploads land as
// files in a spool directory, a watcher feeds them to a worker pool,
// workers transcribe and analyze, and callers poll the job table for
// the result.
type Service struct {
	spoolDir    string
	transcriber Transcriber
	watcher     *fsnotify.Watcher
	watcherDone chan struct{}
	queue       chan queuedJob
	workers     sync.WaitGroup
	workerN     int

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewService prepares the spool directory and the watcher. Call Start
// to begin processing and Close to drain.
func NewService(spoolDir string, workers int, transcriber Transcriber) (*Service, error) {
	if workers <= 0 {
		workers = 2
	}
	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create spool watcher: %w", err)
	}

	return &Service{
		spoolDir:    spoolDir,
		transcriber: transcriber,
		watcher:     watcher,
		queue:       make(chan queuedJob, 100),
		workerN:     workers,
		jobs:        make(map[string]*Job),
	}, nil
}

// Start launches the watcher and the worker pool. It does not block.
func (s *Service) Start(ctx context.Context) error {
	if err := s.watcher.Add(s.spoolDir); err != nil {
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	for i := 0; i < s.workerN; i++ {
		s.workers.Add(1)
		go s.worker(ctx)
	}

	s.watcherDone = make(chan struct{})
	go func() {
		defer close(s.watcherDone)
		s.watchSpool(ctx)
	}()

	log.Printf("[batch] watching spool dir %s with %d workers", s.spoolDir, s.workerN)
	return nil
}

// Close stops the watcher and waits for in-flight jobs. The queue is
// closed only after the watcher goroutine has exited, since that
// goroutine is the only queue producer.
func (s *Service) Close() error {
	err := s.watcher.Close()
	if s.watcherDone != nil {
		<-s.watcherDone
	}
	close(s.queue)
	s.workers.Wait()
	return err
}

// Submit records a new job and parks the upload in the spool directory,
// where the watcher picks it up. The returned job is immediately
// pollable.
func (s *Service) Submit(fileName string, data []byte) (Job, error) {
	job := &Job{
		ID:          uuid.NewString(),
		FileName:    fileName,
		Status:      StatusPending,
		SubmittedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	// Write-then-rename so the watcher only ever sees complete files.
	final := filepath.Join(s.spoolDir, spoolName(job.ID, fileName))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.fail(job.ID, "failed to store upload")
		return *job, fmt.Errorf("failed to store upload: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		s.fail(job.ID, "failed to store upload")
		return *job, fmt.Errorf("failed to store upload: %w", err)
	}

	return s.snapshot(job.ID), nil
}

// Lookup returns a copy of the job record.
func (s *Service) Lookup(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *Service) watchSpool(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleSpoolEvent(event)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[batch] spool watcher error: %v", err)
		}
	}
}

func (s *Service) handleSpoolEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) || strings.HasSuffix(event.Name, ".tmp") {
		return
	}

	id := jobIDFromSpoolName(filepath.Base(event.Name))

	s.mu.Lock()
	if _, ok := s.jobs[id]; !ok {
		// A file dropped into the spool outside the upload endpoint
		// still becomes a job.
		id = uuid.NewString()
		s.jobs[id] = &Job{
			ID:          id,
			FileName:    filepath.Base(event.Name),
			Status:      StatusPending,
			SubmittedAt: time.Now().UTC(),
		}
		log.Printf("[batch] adopted spool file %s as job %s", filepath.Base(event.Name), id)
	}
	s.mu.Unlock()

	select {
	case s.queue <- queuedJob{id: id, path: event.Name}:
	default:
		log.Printf("[batch] job queue full, failing job %s", id)
		s.fail(id, "job queue full")
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.workers.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-s.queue:
			if !ok {
				return
			}
			s.process(ctx, job)
		}
	}
}

func (s *Service) process(ctx context.Context, job queuedJob) {
	data, err := os.ReadFile(job.path)
	if err != nil {
		log.Printf("[batch] failed to read spool file for job %s: %v", job.id, err)
		s.fail(job.id, "failed to read uploaded audio")
		return
	}

	transcript := s.transcriber.Transcribe(ctx, data, true)

	var bundle *insight.Bundle
	if strings.TrimSpace(transcript) != "" {
		b := insight.Analyze(transcript)
		bundle = &b
	}
	s.complete(job.id, transcript, bundle)

	if err := os.Remove(job.path); err != nil {
		log.Printf("[batch] failed to remove spool file %s: %v", job.path, err)
	}

	log.Printf("[batch] job %s completed, transcript %d chars", job.id, len(transcript))
}

func (s *Service) complete(id, transcript string, bundle *insight.Bundle) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusCompleted
		job.Transcript = transcript
		job.Insights = bundle
		job.CompletedAt = &now
	}
}

func (s *Service) fail(id, message string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusFailed
		job.Error = message
		job.CompletedAt = &now
	}
}

func (s *Service) snapshot(id string) Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.jobs[id]
}

func spoolName(jobID, fileName string) string {
	base := filepath.Base(fileName)
	base = strings.ReplaceAll(base, "__", "-")
	if base == "" || base == "." {
		base = "audio"
	}
	return jobID + "__" + base
}

func jobIDFromSpoolName(name string) string {
	id, _, ok := strings.Cut(name, "__")
	if !ok {
		return ""
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}
