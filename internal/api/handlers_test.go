package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"voice-transcribe-go/internal/enrichment"
	"voice-transcribe-go/internal/fault"
	"voice-transcribe-go/internal/logger"
	"voice-transcribe-go/internal/pipeline"
	"voice-transcribe-go/internal/transcription"
)

type stubRunner struct {
	out   pipeline.Outcome
	err   error
	calls int
	seen  pipeline.Upload
}

func (s *stubRunner) Run(ctx context.Context, up pipeline.Upload) (pipeline.Outcome, error) {
	s.calls++
	s.seen = up
	return s.out, s.err
}

func newTestServer(t *testing.T, runner Runner) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(runner, logger.New("test", "error")).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func multipartUpload(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func transcriptOnlyOutcome() pipeline.Outcome {
	raw := json.RawMessage(`{"recognizedPhrases":[{"channel":0}],"source":"https://blob/a.wav"}`)
	return pipeline.Outcome{Transcript: &transcription.Transcript{Raw: raw}}
}

func TestTranscribeMissingFileIs400WithoutPipelineRun(t *testing.T) {
	runner := &stubRunner{}
	srv := newTestServer(t, runner)

	resp, err := http.Post(srv.URL+"/transcribe", "application/x-www-form-urlencoded", strings.NewReader("nope"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d; want 400", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] == "" {
		t.Errorf(`body should be {"error": ...}, got %v (%v)`, body, err)
	}
	if runner.calls != 0 {
		t.Error("pipeline must not run without a file")
	}
}

func TestTranscribePlainTranscriptResponse(t *testing.T) {
	runner := &stubRunner{out: transcriptOnlyOutcome()}
	srv := newTestServer(t, runner)

	body, ctype := multipartUpload(t, "file", "sample.mp3", []byte("mp3-bytes"))
	resp, err := http.Post(srv.URL+"/transcribe", ctype, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d; want 200", resp.StatusCode)
	}
	var parsed struct {
		Transcription json.RawMessage `json:"transcription"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Contains(parsed.Transcription, []byte("recognizedPhrases")) {
		t.Errorf("transcription body = %s", parsed.Transcription)
	}
	if runner.seen.Filename != "sample.mp3" {
		t.Errorf("filename = %q", runner.seen.Filename)
	}
}

func TestTranscribeEnrichedResponse(t *testing.T) {
	out := transcriptOnlyOutcome()
	out.Insights = &enrichment.DocumentInsights{
		Summary: "짧은 요약",
		Phrases: []enrichment.PhraseInsight{{Display: "본문", KeyPhrases: []string{"요약"}}},
	}
	srv := newTestServer(t, &stubRunner{out: out})

	body, ctype := multipartUpload(t, "file", "sample.wav", []byte("wav"))
	resp, err := http.Post(srv.URL+"/transcribe", ctype, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Summary           string                     `json:"summary"`
		RecognizedPhrases []enrichment.PhraseInsight `json:"recognizedPhrases"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if parsed.Summary != "짧은 요약" || len(parsed.RecognizedPhrases) != 1 {
		t.Errorf("parsed = %+v", parsed)
	}
}

func TestTranscribeErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"decode", fault.New(fault.Decode, "cannot decode audio"), 400},
		{"infrastructure", fault.New(fault.Infrastructure, "storage unreachable"), 500},
		{"job failed", fault.New(fault.JobFailed, "remote failure detail"), 500},
		{"timeout", fault.New(fault.Timeout, "transcription timed out after 30 polls"), 500},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := newTestServer(t, &stubRunner{err: c.err})
			body, ctype := multipartUpload(t, "file", "a.wav", []byte("x"))
			resp, err := http.Post(srv.URL+"/transcribe", ctype, body)
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != c.status {
				t.Errorf("status = %d; want %d", resp.StatusCode, c.status)
			}
			var parsed map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !strings.Contains(parsed["error"], strings.Split(c.err.Error(), ":")[0]) {
				t.Errorf("error body %q should carry the fault message %q", parsed["error"], c.err)
			}
		})
	}
}

func TestTranscribeXLSXExport(t *testing.T) {
	out := transcriptOnlyOutcome()
	out.Transcript.RecognizedPhrases = []transcription.RecognizedPhrase{
		{Speaker: 1, NBest: []transcription.NBest{{Confidence: 0.9, Display: "hello there"}}},
	}
	srv := newTestServer(t, &stubRunner{out: out})

	body, ctype := multipartUpload(t, "file", "a.wav", []byte("x"))
	resp, err := http.Post(srv.URL+"/transcribe?format=xlsx", ctype, body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); !strings.Contains(got, "spreadsheetml") {
		t.Errorf("Content-Type = %q", got)
	}
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("response is not a readable workbook: %v", err)
	}
	cell, err := f.GetCellValue("Phrases", "E2")
	if err != nil || cell != "hello there" {
		t.Errorf("Phrases!E2 = %q, %v", cell, err)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubRunner{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d; want 200", resp.StatusCode)
	}
}
