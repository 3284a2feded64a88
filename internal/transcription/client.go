package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"voice-transcribe-go/internal/fault"
	"voice-transcribe-go/internal/logger"
)

// PollPolicy bounds the wait loop. Injected so tests can run with
// near-zero intervals.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

type Client struct {
	endpoint   string // e.g. https://<region>.api.cognitive.microsoft.com/speechtotext/v3.2
	key        string
	locale     string
	policy     PollPolicy
	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(endpoint, key, locale string, policy PollPolicy, callTimeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		key:        key,
		locale:     locale,
		policy:     policy,
		httpClient: &http.Client{Timeout: callTimeout},
		log:        log.WithField("component", "transcription"),
	}
}

type submitRequest struct {
	ContentURLs []string         `json:"contentUrls"`
	Locale      string           `json:"locale"`
	DisplayName string           `json:"displayName"`
	Properties  submitProperties `json:"properties"`
}

type submitProperties struct {
	WordLevelTimestampsEnabled bool `json:"wordLevelTimestampsEnabled"`
	DiarizationEnabled         bool `json:"diarizationEnabled"`
}

// Submit creates the batch job and returns its status URL. A non-201
// answer is a hard failure; the POST is never retried.
func (c *Client) Submit(ctx context.Context, contentURL string) (string, error) {
	body, err := json.Marshal(submitRequest{
		ContentURLs: []string{contentURL},
		Locale:      c.locale,
		DisplayName: "voice-transcribe upload",
		Properties: submitProperties{
			WordLevelTimestampsEnabled: true,
			DiarizationEnabled:         true,
		},
	})
	if err != nil {
		return "", fault.Wrap(fault.Infrastructure, "encode submit body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/transcriptions", bytes.NewReader(body))
	if err != nil {
		return "", fault.Wrap(fault.Infrastructure, "build submit request", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fault.Wrap(fault.Infrastructure, "transcription submit", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return "", fault.Newf(fault.Infrastructure, "transcription submit failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	jobURL := resp.Header.Get("Location")
	if jobURL == "" {
		return "", fault.New(fault.Infrastructure, "transcription submit response missing Location header")
	}

	c.log.WithField("job_url", jobURL).Info("transcription job submitted")
	return jobURL, nil
}

// Wait polls the job to a terminal state. Sleep first, then poll, like the
// service's own samples do; the loop observes at most MaxAttempts statuses
// and reports exhaustion as a timeout fault, never as success.
func (c *Client) Wait(ctx context.Context, jobURL string) (*Transcript, error) {
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := sleepCtx(ctx, c.policy.Interval); err != nil {
			return nil, fault.Wrap(fault.Infrastructure, "poll interrupted", err)
		}

		var job jobStatus
		if err := c.getJSON(ctx, jobURL, true, &job); err != nil {
			return nil, err
		}
		c.log.WithFields(logrus.Fields{"attempt": attempt, "status": job.Status}).Debug("job status")

		switch job.Status {
		case "Succeeded":
			return c.fetchTranscript(ctx, job.Links.Files)
		case "Failed":
			msg := job.Properties.Error.Message
			if msg == "" {
				msg = "transcription job failed"
			}
			return nil, fault.New(fault.JobFailed, msg)
		}
	}
	return nil, fault.Newf(fault.Timeout, "transcription timed out after %d polls", c.policy.MaxAttempts)
}

// Transcribe is Submit followed by Wait.
func (c *Client) Transcribe(ctx context.Context, contentURL string) (*Transcript, error) {
	jobURL, err := c.Submit(ctx, contentURL)
	if err != nil {
		return nil, err
	}
	return c.Wait(ctx, jobURL)
}

// fetchTranscript walks the two-level indirection: files manifest, then the
// first result's content URL. Each hop can fail on its own and is reported
// as a retrieval failure, not a job failure.
func (c *Client) fetchTranscript(ctx context.Context, filesURL string) (*Transcript, error) {
	if filesURL == "" {
		return nil, fault.New(fault.Infrastructure, "succeeded job carries no files link")
	}

	var manifest fileManifest
	if err := c.getJSON(ctx, filesURL, true, &manifest); err != nil {
		return nil, err
	}
	if len(manifest.Values) == 0 || manifest.Values[0].Links.ContentURL == "" {
		return nil, fault.New(fault.Infrastructure, "result manifest is empty")
	}

	// The content URL is pre-signed; no subscription key goes with it.
	body, err := c.getRaw(ctx, manifest.Values[0].Links.ContentURL, false)
	if err != nil {
		return nil, err
	}
	t, err := parseTranscript(body)
	if err != nil {
		return nil, fault.Wrap(fault.Infrastructure, "parse transcript body", err)
	}
	return t, nil
}

func (c *Client) getJSON(ctx context.Context, url string, withKey bool, target interface{}) error {
	body, err := c.getRaw(ctx, url, withKey)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fault.Wrap(fault.Infrastructure, fmt.Sprintf("decode response from %s", url), err)
	}
	return nil
}

// getRaw GETs with the per-call timeout and retries transient transport and
// 5xx failures with a short exponential backoff. 4xx answers are permanent.
func (c *Client) getRaw(ctx context.Context, url string, withKey bool) ([]byte, error) {
	var out []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if withKey {
			req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if resp.StatusCode >= 300 {
			return backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
		}
		out = body
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.httpClient.Timeout
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fault.Wrap(fault.Infrastructure, fmt.Sprintf("GET %s", url), err)
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
