package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"voice-transcribe-go/internal/fault"
	"voice-transcribe-go/internal/pipeline"
	"voice-transcribe-go/internal/report"
)

// maxUploadBytes caps the multipart body; batch transcription inputs are
// bounded anyway and this keeps memory per request predictable.
const maxUploadBytes = 200 << 20

// Transcribe accepts one multipart file field, runs the pipeline and writes
// either the enriched view, the raw transcript, or an xlsx export.
func (rt *Router) Transcribe(w http.ResponseWriter, r *http.Request) {
	log := rt.log.WithRequest(r).WithField("handler", "transcribe")

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fault.New(fault.Validation, "no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, fault.Wrap(fault.Validation, "read upload", err))
		return
	}
	log = log.WithField("filename", header.Filename).WithField("bytes", len(data))
	log.Info("upload received")

	out, err := rt.pipe.Run(r.Context(), pipeline.Upload{Filename: header.Filename, Data: data})
	if err != nil {
		log.WithField("error", err.Error()).Warn("pipeline failed")
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		rt.writeXLSX(w, out)
		return
	}

	if out.Enriched() {
		writeJSON(w, http.StatusOK, out.Insights)
		return
	}
	writeJSON(w, http.StatusOK, map[string]json.RawMessage{
		"transcription": out.Transcript.Raw,
	})
}

func (rt *Router) writeXLSX(w http.ResponseWriter, out pipeline.Outcome) {
	f, err := report.Workbook(out)
	if err != nil {
		writeError(w, fault.Wrap(fault.Infrastructure, "xlsx export", err))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="transcript.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := f.Write(w); err != nil {
		rt.log.WithError(err).Error("failed to stream xlsx")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders the structured error body. Fault messages are already
// safe for clients; anything unclassified gets a generic message instead of
// leaking internals.
func writeError(w http.ResponseWriter, err error) {
	status := fault.HTTPStatus(err)
	msg := err.Error()
	var fe *fault.Error
	if !errors.As(err, &fe) {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}
