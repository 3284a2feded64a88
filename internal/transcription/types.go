package transcription

import "encoding/json"

// Transcript mirrors the batch transcription result file. Raw keeps the
// exact body fetched from the content URL so the response can pass it
// through untouched; the typed fields exist for enrichment and export.
type Transcript struct {
	Source                    string             `json:"source,omitempty"`
	Timestamp                 string             `json:"timestamp,omitempty"`
	Duration                  string             `json:"duration,omitempty"`
	DurationInTicks           int64              `json:"durationInTicks,omitempty"`
	CombinedRecognizedPhrases []CombinedPhrase   `json:"combinedRecognizedPhrases,omitempty"`
	RecognizedPhrases         []RecognizedPhrase `json:"recognizedPhrases,omitempty"`

	Raw json.RawMessage `json:"-"`
}

type CombinedPhrase struct {
	Channel   int    `json:"channel"`
	Lexical   string `json:"lexical,omitempty"`
	ITN       string `json:"itn,omitempty"`
	MaskedITN string `json:"maskedITN,omitempty"`
	Display   string `json:"display,omitempty"`
}

type RecognizedPhrase struct {
	RecognitionStatus string  `json:"recognitionStatus,omitempty"`
	Channel           int     `json:"channel"`
	Speaker           int     `json:"speaker,omitempty"`
	Offset            string  `json:"offset,omitempty"`
	Duration          string  `json:"duration,omitempty"`
	OffsetInTicks     float64 `json:"offsetInTicks,omitempty"`
	DurationInTicks   float64 `json:"durationInTicks,omitempty"`
	NBest             []NBest `json:"nBest,omitempty"`
}

type NBest struct {
	Confidence float64 `json:"confidence"`
	Lexical    string  `json:"lexical,omitempty"`
	ITN        string  `json:"itn,omitempty"`
	MaskedITN  string  `json:"maskedITN,omitempty"`
	Display    string  `json:"display,omitempty"`
	Words      []Word  `json:"words,omitempty"`
}

type Word struct {
	Word            string  `json:"word"`
	Offset          string  `json:"offset,omitempty"`
	Duration        string  `json:"duration,omitempty"`
	OffsetInTicks   float64 `json:"offsetInTicks,omitempty"`
	DurationInTicks float64 `json:"durationInTicks,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// BestDisplay picks the highest-confidence candidate's display text.
func (p RecognizedPhrase) BestDisplay() string {
	best := ""
	conf := -1.0
	for _, c := range p.NBest {
		if c.Confidence > conf && c.Display != "" {
			best = c.Display
			conf = c.Confidence
		}
	}
	return best
}

// FullText flattens the transcript to one document for enrichment: the
// combined display text when present, else the phrases joined in order.
func (t *Transcript) FullText() string {
	for _, c := range t.CombinedRecognizedPhrases {
		if c.Display != "" {
			return c.Display
		}
	}
	text := ""
	for _, p := range t.RecognizedPhrases {
		if d := p.BestDisplay(); d != "" {
			if text != "" {
				text += " "
			}
			text += d
		}
	}
	return text
}

func parseTranscript(body []byte) (*Transcript, error) {
	var t Transcript
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, err
	}
	t.Raw = append(json.RawMessage(nil), body...)
	return &t, nil
}

// jobStatus is the GET body of the job status URL.
type jobStatus struct {
	Status string `json:"status"`
	Links  struct {
		Files string `json:"files"`
	} `json:"links"`
	Properties struct {
		Error struct {
			Code    string `json:"code,omitempty"`
			Message string `json:"message,omitempty"`
		} `json:"error,omitempty"`
	} `json:"properties,omitempty"`
}

// fileManifest is the GET body of the files link.
type fileManifest struct {
	Values []struct {
		Kind  string `json:"kind,omitempty"`
		Links struct {
			ContentURL string `json:"contentUrl"`
		} `json:"links"`
	} `json:"values"`
}
