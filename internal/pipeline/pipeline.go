package pipeline

import (
	"context"
	"time"

	"voice-transcribe-go/internal/enrichment"
	"voice-transcribe-go/internal/logger"
	"voice-transcribe-go/internal/storage"
	"voice-transcribe-go/internal/transcription"
)

// Upload is the raw multipart payload handed in by the HTTP layer.
type Upload struct {
	Filename string
	Data     []byte
}

// Outcome is the pipeline result. Insights == nil is the explicit
// transcript-only variant used when enrichment is disabled or failed.
type Outcome struct {
	Transcript *transcription.Transcript
	Insights   *enrichment.DocumentInsights
}

func (o Outcome) Enriched() bool { return o.Insights != nil }

type Normalizer interface {
	Normalize(data []byte, filename string) ([]byte, error)
}

type Transcriber interface {
	Submit(ctx context.Context, contentURL string) (string, error)
	Wait(ctx context.Context, jobURL string) (*transcription.Transcript, error)
}

type Enricher interface {
	Enrich(ctx context.Context, t *transcription.Transcript) (*enrichment.DocumentInsights, error)
}

type Pipeline struct {
	norm     Normalizer
	store    storage.Store
	stt      Transcriber
	enricher Enricher // nil when enrichment is not configured
	log      *logger.Logger
}

func New(norm Normalizer, store storage.Store, stt Transcriber, enricher Enricher, log *logger.Logger) *Pipeline {
	return &Pipeline{norm: norm, store: store, stt: stt, enricher: enricher, log: log}
}

// Run executes normalize → store → submit → wait → enrich for one upload.
// The stages are strictly sequential; transcription errors fail the run,
// enrichment errors degrade it to transcript-only.
func (p *Pipeline) Run(ctx context.Context, up Upload) (Outcome, error) {
	log := p.log.WithField("filename", up.Filename)
	start := time.Now()

	wavBytes, err := p.norm.Normalize(up.Data, up.Filename)
	if err != nil {
		return Outcome{}, err
	}
	log.WithField("wav_bytes", len(wavBytes)).Info("audio normalized")

	obj, err := p.store.Put(ctx, wavBytes)
	if err != nil {
		return Outcome{}, err
	}

	jobURL, err := p.stt.Submit(ctx, obj.SASURL)
	if err != nil {
		return Outcome{}, err
	}

	t, err := p.stt.Wait(ctx, jobURL)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Transcript: t}
	if p.enricher != nil {
		insights, err := p.enricher.Enrich(ctx, t)
		if err != nil {
			// Best effort only: the transcript is never discarded.
			log.WithError(err).Warn("enrichment failed, returning transcript only")
		} else {
			out.Insights = insights
		}
	}

	log.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("enriched", out.Enriched()).
		Info("pipeline finished")
	return out, nil
}
