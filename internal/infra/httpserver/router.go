package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/roundsiq/internal/application/analysis"
	domain "github.com/bryanwahyu/roundsiq/internal/domain/analysis"
	"github.com/bryanwahyu/roundsiq/internal/domain/cases"
	"github.com/bryanwahyu/roundsiq/internal/domain/joberrors"
	"github.com/bryanwahyu/roundsiq/internal/middleware"
)

// Analyses is the queued analysis surface of the orchestrator.
type Analyses interface {
	Submit(ctx context.Context, clinician domain.Clinician, caseID int64) (domain.Job, error)
	Job(handle domain.JobHandle) (domain.Job, error)
	Cancel(handle domain.JobHandle) (domain.Job, error)
}

type Reanalyzer interface {
	Reanalyze(ctx context.Context, clinician domain.Clinician, caseID int64) (*domain.Result, error)
}

type Deps struct {
	Analyses   Analyses
	Reanalyzer Reanalyzer
	Cases      cases.Repository
	Results    domain.Repository
	JobErrors  joberrors.Repository
	Metrics    *middleware.Metrics
	Limiter    *middleware.RateLimiter
	Clinicians map[string]domain.Clinician
	Health     map[string]middleware.HealthChecker
	Ready      func() bool
	Tracked    func() int
	CORS       []string
	Logger     *slog.Logger
}

type Router struct {
	Deps
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Metrics == nil {
		d.Metrics = middleware.NewMetrics()
	}
	r := &Router{Deps: d}
	mux := chi.NewRouter()

	origins := d.CORS
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.Logging(d.Logger))
	mux.Use(d.Metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready, d.Tracked))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", d.Metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Use(middleware.ClinicianAuth(d.Clinicians))
		if d.Limiter != nil {
			rt.Use(d.Limiter.Middleware)
		}

		rt.Post("/cases", r.wrap(r.handleCreateCase))
		rt.Get("/cases/{caseID}", r.wrap(r.handleGetCase))
		rt.Post("/cases/{caseID}/analyses", r.wrap(r.handleSubmit))
		rt.Get("/cases/{caseID}/analyses", r.wrap(r.handleHistory))
		rt.Get("/cases/{caseID}/analyses/latest", r.wrap(r.handleLatest))
		rt.Post("/cases/{caseID}/reanalyze", r.wrap(r.handleReanalyze))

		rt.Get("/jobs/{handle}", r.wrap(r.handleJob))
		rt.Delete("/jobs/{handle}", r.wrap(r.handleCancel))
		rt.Get("/jobs/{handle}/errors", r.wrap(r.handleJobErrors))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks caller input errors detected by the handlers.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status := StatusFor(err)
		if status >= 500 {
			r.Logger.Error("request failed", "path", req.URL.Path, "status", status, "error", err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
	}
}

// StatusFor maps an error to the HTTP status reported to the caller.
func StatusFor(err error) int {
	var (
		br  badRequest
		svc *domain.ServiceError
	)
	switch {
	case errors.As(err, &br), errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, cases.ErrNotFound), errors.Is(err, domain.ErrJobNotFound), errors.Is(err, domain.ErrNoResult):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateJob):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrServiceUnavailable), errors.Is(err, appanalysis.ErrShutdown):
		return http.StatusServiceUnavailable
	case errors.As(err, &svc), errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clinicianOf(req *http.Request) domain.Clinician {
	c, _ := middleware.ClinicianFromContext(req.Context())
	return c
}

func caseIDParam(req *http.Request) (int64, error) {
	id, err := middleware.ParseCaseID(chi.URLParam(req, "caseID"))
	if err != nil {
		return 0, badRequest{err.Error()}
	}
	return id, nil
}

func handleParam(req *http.Request) (domain.JobHandle, error) {
	h := chi.URLParam(req, "handle")
	if err := middleware.ValidateHandle(h); err != nil {
		return "", badRequest{err.Error()}
	}
	return domain.JobHandle(h), nil
}

// POST /v1/cases
// Body: {"specialty","symptoms","history","lab_results","note","attachments":[...]}
func (r *Router) handleCreateCase(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Specialty   string   `json:"specialty"`
		Symptoms    string   `json:"symptoms"`
		History     string   `json:"history"`
		LabResults  string   `json:"lab_results"`
		Note        string   `json:"note"`
		Attachments []string `json:"attachments"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest{"invalid JSON body: " + err.Error()}
	}
	c := &cases.Case{
		ClinicianID: clinicianOf(req).ID,
		Specialty:   middleware.SanitizeString(body.Specialty),
		Symptoms:    middleware.SanitizeString(body.Symptoms),
		History:     middleware.SanitizeString(body.History),
		LabResults:  middleware.SanitizeString(body.LabResults),
		Note:        middleware.SanitizeString(body.Note),
	}
	for _, a := range body.Attachments {
		if a = strings.TrimSpace(a); a != "" {
			c.Attachments = append(c.Attachments, a)
		}
	}
	if !c.HasContent() {
		return badRequest{"case needs at least one of symptoms, history, lab_results, note"}
	}
	if err := r.Cases.Save(req.Context(), c); err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, c)
	return nil
}

// GET /v1/cases/{caseID}
func (r *Router) handleGetCase(w http.ResponseWriter, req *http.Request) error {
	id, err := caseIDParam(req)
	if err != nil {
		return err
	}
	c, err := r.Cases.Get(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, c)
	return nil
}

// POST /v1/cases/{caseID}/analyses
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	id, err := caseIDParam(req)
	if err != nil {
		return err
	}
	job, err := r.Analyses.Submit(req.Context(), clinicianOf(req), id)
	if err != nil {
		return err
	}
	w.Header().Set("Location", "/v1/jobs/"+string(job.Handle))
	writeJSON(w, http.StatusAccepted, job)
	return nil
}

// GET /v1/cases/{caseID}/analyses?page=&page_size=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	id, err := caseIDParam(req)
	if err != nil {
		return err
	}
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.Results.ListByCase(req.Context(), id, middleware.ValidatePage(page), middleware.ValidateLimit(size))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /v1/cases/{caseID}/analyses/latest
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	id, err := caseIDParam(req)
	if err != nil {
		return err
	}
	res, err := r.Results.LatestByCase(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /v1/cases/{caseID}/reanalyze
func (r *Router) handleReanalyze(w http.ResponseWriter, req *http.Request) error {
	id, err := caseIDParam(req)
	if err != nil {
		return err
	}
	res, err := r.Reanalyzer.Reanalyze(req.Context(), clinicianOf(req), id)
	r.Metrics.ReanalysisDone(err)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, res)
	return nil
}

// GET /v1/jobs/{handle}
func (r *Router) handleJob(w http.ResponseWriter, req *http.Request) error {
	h, err := handleParam(req)
	if err != nil {
		return err
	}
	job, err := r.Analyses.Job(h)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

// DELETE /v1/jobs/{handle}
func (r *Router) handleCancel(w http.ResponseWriter, req *http.Request) error {
	h, err := handleParam(req)
	if err != nil {
		return err
	}
	job, err := r.Analyses.Cancel(h)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, job)
	return nil
}

// GET /v1/jobs/{handle}/errors?limit=20
func (r *Router) handleJobErrors(w http.ResponseWriter, req *http.Request) error {
	h, err := handleParam(req)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.JobErrors.ListByJob(req.Context(), string(h), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*joberrors.JobError{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}
