package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	batchservice "github.com/zhouzirui/callsight/backend/internal/service/batch"
)

type fixedTranscriber struct {
	text string
}

func (f fixedTranscriber) Transcribe(context.Context, []byte, bool) string {
	return f.text
}

func newTestServer(t *testing.T, text string) (*httptest.Server, *batchservice.Service) {
	t.Helper()

	svc, err := batchservice.NewService(t.TempDir(), 1, fixedTranscriber{text: text})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		svc.Close()
	})

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func uploadAudio(t *testing.T, url string, payload []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", "call.webm")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(payload); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	resp, err := http.Post(url+"/transcriptions/", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /transcriptions: %v", err)
	}
	return resp
}

func TestSubmitAndPoll(t *testing.T) {
	srv, _ := newTestServer(t, "I need to fix this billing problem now")

	resp := uploadAudio(t, srv.URL, []byte("fake audio"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("upload status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	var job batchservice.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("job id is empty")
	}
	if job.FileName != "call.webm" {
		t.Errorf("file name = %q, want call.webm", job.FileName)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, ok := pollJob(t, srv.URL, job.ID)
		if ok && got.Status == batchservice.StatusCompleted {
			if got.Transcript != "I need to fix this billing problem now" {
				t.Errorf("transcript = %q", got.Transcript)
			}
			if got.Insights == nil {
				t.Error("completed job has no insights")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never completed")
}

func pollJob(t *testing.T, url, id string) (batchservice.Job, bool) {
	t.Helper()

	resp, err := http.Get(url + "/transcriptions/" + id)
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return batchservice.Job{}, false
	}
	var job batchservice.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	return job, true
}

func TestSubmitWithoutFile(t *testing.T) {
	srv, _ := newTestServer(t, "")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("note", "no audio here")
	mw.Close()

	resp, err := http.Post(srv.URL+"/transcriptions/", mw.FormDataContentType(), &body)
	if err != nil {
		t.Fatalf("POST /transcriptions: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestSubmitEmptyFile(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp := uploadAudio(t, srv.URL, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestLookupUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Get(srv.URL + "/transcriptions/not-a-job")
	if err != nil {
		t.Fatalf("GET job: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
