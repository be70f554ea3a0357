package web

import (
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"github.com/jgoulah/gridflex/internal/analysis"
	"github.com/jgoulah/gridflex/internal/chart"
	"github.com/jgoulah/gridflex/pkg/models"
)

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Consumption flexibility</title>
<style>
body { font-family: sans-serif; margin: 2em; }
form { display: flex; gap: 1.5em; align-items: center; flex-wrap: wrap; }
.error { color: #b00020; }
.prompt { color: #555; }
table.band td { padding: 0.2em 1em 0.2em 0; }
</style>
</head>
<body>
<h1>Consumption flexibility</h1>
<form method="get" action="/">
<label>Company
<select name="company">
<option value=""{{if not .Company}} selected{{end}}>Select a company</option>
{{- range .Companies}}
<option value="{{.}}"{{if eq . $.Company}} selected{{end}}>{{.}}</option>
{{- end}}
</select>
</label>
<label>Sensitivity (k)
<input type="range" name="k" min="{{.MinK}}" max="{{.MaxK}}" step="1" value="{{.K}}" oninput="this.nextElementSibling.value = this.value">
<output>{{.K}}</output>
</label>
<button type="submit">Calculate</button>
</form>
{{- if .Error}}
<p class="error">{{.Error}}</p>
{{- else if not .Company}}
<p class="prompt">Select a company to view its consumption history.</p>
{{- else if .Chart}}
{{.Chart}}
<table class="band">
<tr><td>Median</td><td>{{printf "%.2f" .Band.Median}}</td></tr>
<tr><td>MAD</td><td>{{printf "%.2f" .Band.MAD}}</td></tr>
<tr><td>Bounds</td><td>{{printf "%.2f" .Band.Lower}} to {{printf "%.2f" .Band.Upper}}</td></tr>
<tr><td>Months in band</td><td>{{.Band.InBand}} of {{.Months}}</td></tr>
<tr><td>Estimated flexibility</td><td>{{printf "%.2f" .Band.FlexibilityPct}}%</td></tr>
</table>
{{- if .Dropped}}
<p class="prompt">{{.Dropped}} rows with unreadable dates were ignored.</p>
{{- end}}
{{- end}}
</body>
</html>
`))

type dashboardView struct {
	Companies  []string
	Company    string
	K          int
	MinK, MaxK int
	Error      string
	Chart      template.HTML
	Band       models.OutlierBand
	Months     int
	Dropped    int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	view := dashboardView{
		Company: r.URL.Query().Get("company"),
		K:       s.opts.DefaultK,
		MinK:    analysis.MinSensitivity,
		MaxK:    analysis.MaxSensitivity,
	}

	companies, err := s.analyzer.Companies()
	if err != nil {
		s.logger.Error("listing companies", zap.Error(err))
		view.Error = err.Error()
		s.renderDashboard(w, http.StatusInternalServerError, view)
		return
	}
	view.Companies = companies

	status := http.StatusOK
	if q, err := s.parseQuery(r); err == nil {
		view.K = q.K
		status = s.fillChart(&view, q)
	} else if view.Company != "" {
		view.Error = apiError(err).Message
		status = http.StatusBadRequest
	}

	s.renderDashboard(w, status, view)
}

// fillChart runs the analysis for the selected company and embeds its chart
func (s *Server) fillChart(view *dashboardView, q analysisQuery) int {
	result, err := s.analyzer.Analyze(q.Company, q.K)
	if err != nil {
		apiErr := apiError(err)
		view.Error = apiErr.Message
		return apiErr.StatusCode
	}

	svg, err := chart.SVG(chart.Build(result))
	if err != nil {
		s.logger.Error("rendering chart", zap.Error(err))
		view.Error = "could not draw chart"
		return http.StatusInternalServerError
	}

	view.Chart = svg
	view.Band = result.Band
	view.Months = len(result.Months)
	view.Dropped = result.Dropped
	return http.StatusOK
}

func (s *Server) renderDashboard(w http.ResponseWriter, status int, view dashboardView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := dashboardTemplate.Execute(w, view); err != nil {
		s.logger.Error("rendering dashboard", zap.Error(err))
	}
}
