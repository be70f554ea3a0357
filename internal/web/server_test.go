package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/gridflex/internal/analysis"
	"github.com/jgoulah/gridflex/internal/cache"
	"github.com/jgoulah/gridflex/internal/metrics"
	"github.com/jgoulah/gridflex/internal/testutil"
)

func newTestServer(t *testing.T, path string) *Server {
	t.Helper()
	tables := cache.New()
	m := metrics.New()
	m.WatchCache(tables.Stats)

	a := analysis.NewAnalyzer(tables, path, testutil.DefaultSheet, nil)
	a.SetRecorder(m)
	return New(a, tables, m, nil, Options{})
}

func sampleWorkbook(t *testing.T) string {
	t.Helper()
	return testutil.WriteConsumption(t,
		[]any{"Acme", "2023-10-03", 10},
		[]any{"Acme", "2023-11-03", 12},
		[]any{"Acme", "2023-12-03", 11},
		[]any{"Acme", "2024-01-03", 13},
		[]any{"Acme", "2024-02-03", 50},
		[]any{"Zero", "2024-01-03", 0},
		[]any{"Zero", "2024-02-03", 0},
	)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestCompanies(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/api/companies")
	require.Equal(t, http.StatusOK, rec.Code)

	var companies []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &companies))
	assert.Equal(t, []string{"Acme", "Zero"}, companies)
}

func TestAnalysis(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/api/analysis?company=Acme&k=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Acme", resp.Result.Company)
	assert.Equal(t, 2, resp.Result.Band.K)
	assert.InDelta(t, 25.0, resp.Result.Band.FlexibilityPct, 1e-9)
	assert.Len(t, resp.Result.Months, 5)
	assert.Len(t, resp.Result.InBandMonths, 4)
	assert.Len(t, resp.Chart.Bars, 5)
	assert.Equal(t, "Estimated flexibility: 25.00%", resp.Chart.LegendTitle)
}

func TestAnalysisDefaultsK(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/api/analysis?company=Acme")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, analysis.DefaultSensitivity, resp.Result.Band.K)
}

func TestAnalysisErrors(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	tests := []struct {
		name   string
		target string
		status int
		code   string
	}{
		{"missing company", "/api/analysis?k=2", http.StatusBadRequest, "VALIDATION_FAILED"},
		{"k too large", "/api/analysis?company=Acme&k=9", http.StatusBadRequest, "VALIDATION_FAILED"},
		{"k too small", "/api/analysis?company=Acme&k=0", http.StatusBadRequest, "VALIDATION_FAILED"},
		{"k not a number", "/api/analysis?company=Acme&k=abc", http.StatusBadRequest, "INVALID_PARAMETER"},
		{"unknown company", "/api/analysis?company=Nope&k=2", http.StatusUnprocessableEntity, "COMPUTATION_FAILED"},
		{"zero median", "/api/analysis?company=Zero&k=2", http.StatusUnprocessableEntity, "COMPUTATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			apiErr := decodeError(t, rec)
			assert.Equal(t, tt.code, apiErr.ErrorCode)
			assert.Equal(t, tt.status, apiErr.StatusCode)
		})
	}
}

func TestAnalysisZeroMedianCarriesBand(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/api/analysis?company=Zero&k=2")
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Details struct {
			Reason string `json:"reason"`
			Band   *struct {
				InBand int `json:"in_band"`
			} `json:"band"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, analysis.ReasonZeroMedian, body.Details.Reason)
	require.NotNil(t, body.Details.Band)
	assert.Equal(t, 2, body.Details.Band.InBand)
}

func TestAnalysisMissingWorkbook(t *testing.T) {
	s := newTestServer(t, filepath.Join(t.TempDir(), "missing.xlsx"))

	rec := get(t, s, "/api/analysis?company=Acme&k=2")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "DATA_LOAD_FAILED", decodeError(t, rec).ErrorCode)

	rec = get(t, s, "/api/companies")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Select a company to view its consumption history.")
	assert.Contains(t, body, `<option value="Acme">Acme</option>`)
	assert.Contains(t, body, `value="2"`)
	assert.NotContains(t, body, "<svg")

	rec = get(t, s, "/?company=Acme&k=3")
	require.Equal(t, http.StatusOK, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, "<svg")
	assert.Contains(t, body, "Estimated flexibility")
	assert.Contains(t, body, `<option value="Acme" selected>Acme</option>`)
	assert.Contains(t, body, "<output>3</output>")
}

func TestDashboardShowsErrors(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/?company=Zero&k=2")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="error"`)
	assert.NotContains(t, rec.Body.String(), "<svg")

	rec = get(t, s, "/?company=Acme&k=7")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChartPNGDisabled(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/chart.png?company=Acme")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshCache(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	require.Equal(t, http.StatusOK, get(t, s, "/api/companies").Code)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cache/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Records)
	assert.Equal(t, 2, resp.Companies)
	assert.Equal(t, uint64(2), resp.Cache.Loads)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	get(t, s, "/api/analysis?company=Acme&k=2")

	rec = get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gridflex_analyses_total{outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), "gridflex_cache_loads_total 1")
}

func TestUnknownAPIRoute(t *testing.T) {
	s := newTestServer(t, sampleWorkbook(t))

	rec := get(t, s, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).ErrorCode)
}
