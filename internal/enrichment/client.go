package enrichment

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
	"voice-transcribe-go/internal/transcription"
)

// DocumentInsights is the enriched view of a transcript: one document-level
// summary plus key phrases per recognized phrase.
type DocumentInsights struct {
	Summary string          `json:"summary"`
	Phrases []PhraseInsight `json:"recognizedPhrases"`
}

type PhraseInsight struct {
	Speaker    int      `json:"speaker,omitempty"`
	Channel    int      `json:"channel"`
	Offset     string   `json:"offset,omitempty"`
	Display    string   `json:"display"`
	KeyPhrases []string `json:"keyPhrases"`
}

type Client struct {
	endpoint   string
	key        string
	sentences  int
	httpClient *http.Client
	log        *logrus.Entry
}

func NewClient(endpoint, key string, summarySentences int, callTimeout time.Duration, log *logger.Logger) *Client {
	if summarySentences <= 0 {
		summarySentences = 3
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		key:        key,
		sentences:  summarySentences,
		httpClient: &http.Client{Timeout: callTimeout},
		log:        log.WithField("component", "enrichment"),
	}
}

// Enrich runs one summary call for the whole document and one key-phrase
// call per phrase, sequentially. Any failure aborts enrichment as a whole;
// the caller keeps the transcript and degrades.
func (c *Client) Enrich(ctx context.Context, t *transcription.Transcript) (*DocumentInsights, error) {
	text := t.FullText()
	if text == "" {
		return nil, fault.New(fault.Enrichment, "transcript has no text to enrich")
	}

	summary, err := c.Summarize(ctx, text)
	if err != nil {
		return nil, err
	}

	out := &DocumentInsights{Summary: summary}
	for _, p := range t.RecognizedPhrases {
		display := p.BestDisplay()
		if display == "" {
			continue
		}
		phrases, err := c.KeyPhrases(ctx, display)
		if err != nil {
			return nil, err
		}
		out.Phrases = append(out.Phrases, PhraseInsight{
			Speaker:    p.Speaker,
			Channel:    p.Channel,
			Offset:     p.Offset,
			Display:    display,
			KeyPhrases: phrases,
		})
	}
	c.log.WithField("phrases", len(out.Phrases)).Info("transcript enriched")
	return out, nil
}

// Summarize asks for an extractive summary bounded by the configured
// sentence count and joins the returned sentences in rank order.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := c.analyze(ctx, "ExtractiveSummarization", map[string]interface{}{
		"sentenceCount": c.sentences,
	}, text)
	if err != nil {
		return "", err
	}
	var parts []string
	for _, s := range resp.Sentences {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " "), nil
}

// KeyPhrases extracts the key phrase list for one piece of text.
func (c *Client) KeyPhrases(ctx context.Context, text string) ([]string, error) {
	resp, err := c.analyze(ctx, "KeyPhraseExtraction", nil, text)
	if err != nil {
		return nil, err
	}
	return resp.KeyPhrases, nil
}

type analyzeRequest struct {
	Kind          string                 `json:"kind"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
	AnalysisInput analysisInput          `json:"analysisInput"`
}

type analysisInput struct {
	Documents []analysisDocument `json:"documents"`
}

type analysisDocument struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type analyzedDocument struct {
	ID         string   `json:"id"`
	KeyPhrases []string `json:"keyPhrases,omitempty"`
	Sentences  []struct {
		Text      string  `json:"text"`
		RankScore float64 `json:"rankScore,omitempty"`
	} `json:"sentences,omitempty"`
}

type analyzeResponse struct {
	Kind    string `json:"kind,omitempty"`
	Results struct {
		Documents []analyzedDocument `json:"documents"`
		Errors    []struct {
			ID    string `json:"id"`
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		} `json:"errors"`
	} `json:"results"`
}

// analyze posts one document to the :analyze-text operation. The service
// flags per-document errors inside the body instead of failing the call,
// so both layers are checked here.
func (c *Client) analyze(ctx context.Context, kind string, params map[string]interface{}, text string) (*analyzedDocument, error) {
	reqBody, err := json.Marshal(analyzeRequest{
		Kind:       kind,
		Parameters: params,
		AnalysisInput: analysisInput{
			Documents: []analysisDocument{{ID: "1", Text: text}},
		},
	})
	if err != nil {
		return nil, fault.Wrap(fault.Enrichment, "encode analyze request", err)
	}

	url := c.endpoint + "/language/:analyze-text?api-version=2023-04-01"

	var parsed analyzeResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
		req.Header.Set("Content-Type", "application/json")

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
		if err := json.Unmarshal(body, &parsed); err != nil {
			return backoff.Permanent(fmt.Errorf("decode analyze response: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = c.httpClient.Timeout
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fault.Wrap(fault.Enrichment, fmt.Sprintf("%s call", kind), err)
	}

	if len(parsed.Results.Errors) > 0 {
		e := parsed.Results.Errors[0]
		return nil, fault.Newf(fault.Enrichment, "%s rejected document %s: %s", kind, e.ID, e.Error.Message)
	}
	if len(parsed.Results.Documents) == 0 {
		return nil, fault.Newf(fault.Enrichment, "%s returned no documents", kind)
	}
	return &parsed.Results.Documents[0], nil
}
