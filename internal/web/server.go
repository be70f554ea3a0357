package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jgoulah/gridflex/internal/analysis"
	"github.com/jgoulah/gridflex/internal/cache"
	"github.com/jgoulah/gridflex/internal/chart"
	"github.com/jgoulah/gridflex/internal/loader"
	"github.com/jgoulah/gridflex/internal/metrics"
)

// Refresher reloads a workbook sheet on demand
type Refresher interface {
	Refresh(path, sheet string) (*loader.Table, error)
	Stats() cache.Stats
}

// Options configures optional server features
type Options struct {
	DefaultK  int
	RenderPNG bool
	PNG       chart.PNGOptions
}

// Server is the dashboard HTTP server
type Server struct {
	analyzer *analysis.Analyzer
	tables   Refresher
	metrics  *metrics.Metrics
	logger   *zap.Logger
	opts     Options
	validate *validator.Validate
	router   chi.Router
}

// analysisQuery is the validated form of ?company=&k=
type analysisQuery struct {
	Company string `validate:"required"`
	K       int    `validate:"min=1,max=5"`
}

// AnalysisResponse is returned by GET /api/analysis
type AnalysisResponse struct {
	Result *analysis.Result `json:"result"`
	Chart  chart.Spec       `json:"chart"`
}

// RefreshResponse is returned by POST /api/cache/refresh
type RefreshResponse struct {
	Workbook  string      `json:"workbook"`
	Sheet     string      `json:"sheet"`
	Records   int         `json:"records"`
	Companies int         `json:"companies"`
	Cache     cache.Stats `json:"cache"`
}

// New creates the server and its routes. m may be nil.
func New(analyzer *analysis.Analyzer, tables Refresher, m *metrics.Metrics, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultK == 0 {
		opts.DefaultK = analysis.DefaultSensitivity
	}

	s := &Server{
		analyzer: analyzer,
		tables:   tables,
		metrics:  m,
		logger:   logger.Named("web"),
		opts:     opts,
		validate: validator.New(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleDashboard)
	r.Get("/chart.png", s.handleChartPNG)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/companies", s.handleCompanies)
		r.Get("/analysis", s.handleAnalysis)
		r.Post("/cache/refresh", s.handleRefresh)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			render.Render(w, r, errNotFound("no such endpoint"))
		})
	})

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down dashboard")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// parseQuery reads company and k, defaulting k, and validates both
func (s *Server) parseQuery(r *http.Request) (analysisQuery, error) {
	q := analysisQuery{
		Company: r.URL.Query().Get("company"),
		K:       s.opts.DefaultK,
	}
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil {
			return q, newAPIError(http.StatusBadRequest, "INVALID_PARAMETER",
				fmt.Sprintf("k must be an integer, got %q", raw), nil)
		}
		q.K = k
	}
	if err := s.validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.analyzer.Companies()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if companies == nil {
		companies = []string{}
	}
	render.JSON(w, r, companies)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.analyzer.Analyze(q.Company, q.K)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	render.JSON(w, r, AnalysisResponse{Result: result, Chart: chart.Build(result)})
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	if !s.opts.RenderPNG {
		s.fail(w, r, errNotFound("PNG rendering is disabled"))
		return
	}

	q, err := s.parseQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	result, err := s.analyzer.Analyze(q.Company, q.K)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	img, err := chart.RenderPNG(r.Context(), chart.Build(result), s.opts.PNG)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(img)))
	w.Write(img)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	path, sheet := s.analyzer.Workbook()
	table, err := s.tables.Refresh(path, sheet)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("workbook reloaded",
		zap.String("path", table.Path),
		zap.String("sheet", table.Sheet),
		zap.Int("records", len(table.Records)))

	render.JSON(w, r, RefreshResponse{
		Workbook:  table.Path,
		Sheet:     table.Sheet,
		Records:   len(table.Records),
		Companies: len(table.Companies()),
		Cache:     s.tables.Stats(),
	})
}

// fail renders err as an APIError, logging server-side failures
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	render.Render(w, r, apiErr)
}
