package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"voice-transcribe-go/internal/logger"
	"voice-transcribe-go/internal/pipeline"
)

// Runner is what the transcribe handler needs from the pipeline.
type Runner interface {
	Run(ctx context.Context, up pipeline.Upload) (pipeline.Outcome, error)
}

type Router struct {
	mux  *chi.Mux
	pipe Runner
	log  *logger.Logger
}

func NewRouter(pipe Runner, log *logger.Logger) *Router {
	return &Router{mux: chi.NewRouter(), pipe: pipe, log: log}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(rt.log))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	r.Post("/transcribe", rt.Transcribe)

	return r
}
