package batch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"
)

type stubTranscriber struct {
	mu     sync.Mutex
	calls  int
	text   string
	gotLen int
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio []byte, useReal bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.gotLen = len(audio)
	return s.text
}

func (s *stubTranscriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func waitForStatus(t *testing.T, svc *Service, id string, want Status) Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := svc.Lookup(id); ok && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := svc.Lookup(id)
	t.Fatalf("job %s never reached status %s, last seen %+v", id, want, job)
	return Job{}
}

func TestSubmitProcessesUpload(t *testing.T) {
	tr := &stubTranscriber{text: "I am so frustrated with my billing problem"}
	svc, err := NewService(t.TempDir(), 1, tr)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Close()

	job, err := svc.Submit("call.webm", []byte("fake audio bytes"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != StatusPending {
		t.Fatalf("fresh job status = %s, want %s", job.Status, StatusPending)
	}

	done := waitForStatus(t, svc, job.ID, StatusCompleted)
	if done.Transcript != tr.text {
		t.Errorf("transcript = %q, want %q", done.Transcript, tr.text)
	}
	if done.Insights == nil {
		t.Fatal("completed job has no insights")
	}
	if done.Insights.Emotion != "frustrated" {
		t.Errorf("customer emotion = %q, want frustrated", done.Insights.Emotion)
	}
	if done.CompletedAt == nil {
		t.Error("completed job has no completion time")
	}
	if tr.gotLen != len("fake audio bytes") {
		t.Errorf("transcriber saw %d bytes, want %d", tr.gotLen, len("fake audio bytes"))
	}
}

func TestEmptyTranscriptCompletesWithoutInsights(t *testing.T) {
	tr := &stubTranscriber{text: ""}
	svc, err := NewService(t.TempDir(), 1, tr)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Close()

	job, err := svc.Submit("silence.wav", []byte("quiet"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	done := waitForStatus(t, svc, job.ID, StatusCompleted)
	if done.Insights != nil {
		t.Errorf("empty transcript produced insights: %+v", done.Insights)
	}
}

func TestSpoolFileRemovedAfterProcessing(t *testing.T) {
	dir := t.TempDir()
	tr := &stubTranscriber{text: "thanks for your help"}
	svc, err := NewService(dir, 1, tr)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Close()

	job, err := svc.Submit("call.wav", []byte("audio"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitForStatus(t, svc, job.ID, StatusCompleted)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("ReadDir: %v", err)
		}
		if len(entries) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	entries, _ := os.ReadDir(dir)
	t.Fatalf("spool dir not emptied, %d entries remain", len(entries))
}

func TestForeignSpoolFileAdopted(t *testing.T) {
	dir := t.TempDir()
	tr := &stubTranscriber{text: "please update my account"}
	svc, err := NewService(dir, 1, tr)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer svc.Close()

	// Dropped in by hand, no Submit call and no job id prefix.
	path := filepath.Join(dir, "stray-recording.wav")
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if tr.callCount() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("foreign spool file never transcribed")
}

func TestCloseWhileSpoolFilesLand(t *testing.T) {
	for round := 0; round < 10; round++ {
		dir := t.TempDir()
		svc, err := NewService(dir, 1, &stubTranscriber{text: "ok"})
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		if err := svc.Start(ctx); err != nil {
			cancel()
			t.Fatalf("Start: %v", err)
		}

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				name := filepath.Join(dir, "drop-"+strconv.Itoa(i)+".wav")
				if err := os.WriteFile(name, []byte("audio"), 0o600); err != nil {
					return
				}
			}
		}()

		time.Sleep(5 * time.Millisecond)
		if err := svc.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		close(stop)
		wg.Wait()
		cancel()
	}
}

func TestLookupUnknownJob(t *testing.T) {
	svc, err := NewService(t.TempDir(), 1, &stubTranscriber{})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Close()

	if _, ok := svc.Lookup("no-such-job"); ok {
		t.Error("Lookup returned a job for an unknown id")
	}
}

func TestSpoolNameRoundTrip(t *testing.T) {
	name := spoolName("3f2c", "my__call.webm")
	if jobIDFromSpoolName(name) != "" {
		// "3f2c" is not a UUID, adoption path applies.
		t.Errorf("non-uuid prefix parsed as job id from %q", name)
	}

	id := "a81bc81b-dead-4e5d-abff-90865d1e13b1"
	name = spoolName(id, "call.wav")
	if got := jobIDFromSpoolName(name); got != id {
		t.Errorf("jobIDFromSpoolName(%q) = %q, want %q", name, got, id)
	}
}
