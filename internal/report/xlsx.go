package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"voice-transcribe-go/internal/pipeline"
)

// Workbook renders a pipeline outcome as a two-sheet spreadsheet: a summary
// sheet and one row per recognized phrase. Used by the ?format=xlsx export.
func Workbook(out pipeline.Outcome) (*excelize.File, error) {
	f := excelize.NewFile()

	const summarySheet = "Summary"
	f.SetSheetName(f.GetSheetName(0), summarySheet)

	t := out.Transcript
	summaryRows := [][]interface{}{
		{"Source", t.Source},
		{"Duration", t.Duration},
		{"Recognized phrases", len(t.RecognizedPhrases)},
		{"Enriched", out.Enriched()},
	}
	if out.Enriched() {
		summaryRows = append(summaryRows, []interface{}{"Summary", out.Insights.Summary})
	}
	for i, row := range summaryRows {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, fmt.Errorf("write summary row: %w", err)
		}
	}

	const phraseSheet = "Phrases"
	if _, err := f.NewSheet(phraseSheet); err != nil {
		return nil, fmt.Errorf("create phrase sheet: %w", err)
	}
	header := []interface{}{"Speaker", "Channel", "Offset", "Duration", "Text", "Key phrases"}
	if err := f.SetSheetRow(phraseSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	// Insights skip phrases with no display text, so match on the text
	// rather than on position.
	keyPhrases := map[string]string{}
	if out.Enriched() {
		for _, p := range out.Insights.Phrases {
			keyPhrases[p.Display] = strings.Join(p.KeyPhrases, ", ")
		}
	}
	for i, p := range t.RecognizedPhrases {
		display := p.BestDisplay()
		row := []interface{}{p.Speaker, p.Channel, p.Offset, p.Duration, display, keyPhrases[display]}
		if err := f.SetSheetRow(phraseSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, fmt.Errorf("write phrase row: %w", err)
		}
	}

	return f, nil
}
