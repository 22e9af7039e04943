package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	"gradekey/internal/domain"
	"gradekey/internal/ports"
	"gradekey/internal/services/keys"
	"gradekey/internal/workers/regrader"
)

// Server exposes the grading engine and the correction use case over HTTP.
type Server struct {
	engine      *keys.Engine
	corrections ports.Corrections
	exams       ports.ExamRepository
	entries     ports.CorrectionRepository
	jobs        ports.JobRepository
	processor   regrader.Processor

	origins []string
	newID   func() string
}

type Option func(*Server)

// WithAllowedOrigins sets the CORS origins; the default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

func WithIDGenerator(gen func() string) Option { return func(s *Server) { s.newID = gen } }

func New(engine *keys.Engine, corrections ports.Corrections, exams ports.ExamRepository, entries ports.CorrectionRepository,
	jobs ports.JobRepository, processor regrader.Processor, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		corrections: corrections,
		exams:       exams,
		entries:     entries,
		jobs:        jobs,
		processor:   processor,
		origins:     []string{"*"},
		newID:       uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes returns a chi.Router with every endpoint mounted.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Length"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handle(s.getHealthz))

	r.Post("/grades/calculate", s.handle(s.postCalculateGrade))
	r.Post("/grades/error-points", s.handle(s.postErrorPoints))

	r.Route("/keys", func(r chi.Router) {
		r.Post("/", s.handle(s.postKey))
		r.Post("/validate", s.handle(s.postValidateKey))
		r.Post("/convert", s.handle(s.postConvertKey))
		r.Post("/compare", s.handle(s.postCompareKeys))
		r.Post("/clone", s.handle(s.postCloneKey))
		r.Get("/{keyId}/history", s.handle(s.getKeyHistory))
	})

	r.Route("/exams", func(r chi.Router) {
		r.Post("/", s.handle(s.postExam))
		r.Route("/{examId}", func(r chi.Router) {
			r.Get("/", s.handle(s.getExam))
			r.Put("/grading-key", s.handle(s.putGradingKey))
			r.Post("/grading-key/preview", s.handle(s.postGradingKeyPreview))
			r.Get("/suggestions", s.handle(s.getSuggestions))
			r.Post("/corrections", s.handle(s.postCorrection))
			r.Get("/corrections", s.handle(s.getCorrections))
			r.Get("/export", s.handle(s.getExport))
			r.Post("/regrades", s.handle(s.postRegrade))
		})
	})
	r.Get("/regrades/{jobId}", s.handle(s.getRegrade))
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	return nil
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle turns a handler error into a JSON error response.
func (s *Server) handle(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var re *runtimeError
		switch {
		case errors.As(err, &re):
			writeErr(w, re.code, re.msg)
		case errors.Is(err, domain.ErrNotFound):
			writeErr(w, http.StatusNotFound, err.Error())
		case errors.Is(err, domain.ErrConflict):
			writeErr(w, http.StatusConflict, err.Error())
		default:
			log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
			writeErr(w, http.StatusInternalServerError, "internal error")
		}
	}
}

type runtimeError struct {
	code int
	msg  string
}

func (e *runtimeError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &runtimeError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("missing body")
		}
		return badRequest("invalid body: %v", err)
	}
	return nil
}

func pathParam(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &v,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", badRequest("invalid format for parameter %s: %v", name, err)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResp struct {
	Error string `json:"error"`
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg})
}
