package chart

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"math"
)

const (
	svgWidth     = 1200
	svgHeight    = 600
	marginLeft   = 90
	marginRight  = 290
	marginTop    = 50
	marginBottom = 90
	barFraction  = 0.5
	yTicks       = 5
)

type svgBar struct {
	X, Y, W, H float64
	LabelX     float64
	Label      string
	Value      float64
	InBand     bool
}

type svgLine struct {
	Y      float64
	Color  string
	Dashed bool
}

type svgTick struct {
	Y     float64
	Label string
}

type svgLegendItem struct {
	Y      float64
	Color  string
	Dashed bool
	Bar    bool
	Label  string
}

type svgLayout struct {
	Spec
	Width, Height          float64
	Left, Right, Top, Base float64
	Zero                   float64
	LegendX                float64
	LegendLineEnd          float64
	LegendTextX            float64
	Columns                []svgBar
	RefLines               []svgLine
	Ticks                  []svgTick
	Legend                 []svgLegendItem
}

var svgTemplate = template.Must(template.New("svg").Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.Width}}" height="{{.Height}}" viewBox="0 0 {{.Width}} {{.Height}}" font-family="sans-serif" font-size="12">
<rect width="100%" height="100%" fill="white"/>
<text x="{{.Left}}" y="28" font-size="18" font-weight="bold">{{.Title}}</text>
{{- range .Ticks}}
<line x1="{{$.Left}}" x2="{{$.Right}}" y1="{{printf "%.2f" .Y}}" y2="{{printf "%.2f" .Y}}" stroke="#ccc" stroke-dasharray="4 4"/>
<text x="{{$.Left}}" dx="-6" y="{{printf "%.2f" .Y}}" dy="4" text-anchor="end">{{.Label}}</text>
{{- end}}
{{- range .Columns}}
<rect class="bar" x="{{printf "%.2f" .X}}" y="{{printf "%.2f" .Y}}" width="{{printf "%.2f" .W}}" height="{{printf "%.2f" .H}}" fill="{{$.BarColor}}" fill-opacity="{{if .InBand}}0.7{{else}}0.4{{end}}"><title>{{.Label}}: {{printf "%.2f" .Value}}</title></rect>
<text x="{{printf "%.2f" .LabelX}}" y="{{$.Base}}" dy="8" transform="rotate(90 {{printf "%.2f" .LabelX}} {{$.Base}})" font-size="10">{{.Label}}</text>
{{- end}}
{{- range .RefLines}}
<line class="ref" x1="{{$.Left}}" x2="{{$.Right}}" y1="{{printf "%.2f" .Y}}" y2="{{printf "%.2f" .Y}}" stroke="{{.Color}}" stroke-width="2"{{if .Dashed}} stroke-dasharray="8 5"{{end}}/>
{{- end}}
<line x1="{{.Left}}" x2="{{.Left}}" y1="{{.Top}}" y2="{{.Base}}" stroke="black"/>
<line x1="{{.Left}}" x2="{{.Right}}" y1="{{printf "%.2f" .Zero}}" y2="{{printf "%.2f" .Zero}}" stroke="black"/>
<text x="{{.Left}}" y="{{.Height}}" dy="-8">{{.XLabel}}</text>
<text transform="rotate(-90 18 {{.Top}})" x="18" y="{{.Top}}" text-anchor="end">{{.YLabel}}</text>
<text class="legend-title" x="{{.LegendX}}" y="{{.Top}}" font-weight="bold">{{.LegendTitle}}</text>
{{- range .Legend}}
{{- if .Bar}}
<rect x="{{$.LegendX}}" y="{{printf "%.2f" .Y}}" transform="translate(0 -6)" width="24" height="10" fill="{{.Color}}" fill-opacity="0.7"/>
{{- else}}
<line x1="{{$.LegendX}}" x2="{{$.LegendLineEnd}}" y1="{{printf "%.2f" .Y}}" y2="{{printf "%.2f" .Y}}" stroke="{{.Color}}" stroke-width="2"{{if .Dashed}} stroke-dasharray="6 3"{{end}}/>
{{- end}}
<text class="legend" x="{{$.LegendTextX}}" y="{{printf "%.2f" .Y}}" dy="4">{{.Label}}</text>
{{- end}}
</svg>`))

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body { margin: 0; background: white; }</style>
</head>
<body>
{{.SVG}}
</body>
</html>
`))

// SVG renders spec as an inline SVG document
func SVG(spec Spec) (template.HTML, error) {
	var buf bytes.Buffer
	if err := svgTemplate.Execute(&buf, layout(spec)); err != nil {
		return "", fmt.Errorf("rendering chart: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// RenderHTML writes spec as a standalone HTML page
func RenderHTML(w io.Writer, spec Spec) error {
	svg, err := SVG(spec)
	if err != nil {
		return err
	}
	return pageTemplate.Execute(w, struct {
		Title string
		SVG   template.HTML
	}{Title: spec.Title, SVG: svg})
}

func layout(spec Spec) svgLayout {
	l := svgLayout{
		Spec:    spec,
		Width:   svgWidth,
		Height:  svgHeight,
		Left:    marginLeft,
		Right:   svgWidth - marginRight,
		Top:     marginTop,
		Base:    svgHeight - marginBottom,
		LegendX: svgWidth - marginRight + 20,
	}
	if l.BarColor == "" {
		l.BarColor = ColorBars
	}
	l.LegendLineEnd = l.LegendX + 24
	l.LegendTextX = l.LegendX + 32

	lo, hi := 0.0, 0.0
	for _, b := range spec.Bars {
		lo, hi = math.Min(lo, b.Value), math.Max(hi, b.Value)
	}
	for _, ln := range spec.Lines {
		lo, hi = math.Min(lo, ln.Value), math.Max(hi, ln.Value)
	}
	if hi == lo {
		hi = lo + 1
	}
	hi += (hi - lo) * 0.05

	plotH := l.Base - l.Top
	scale := func(v float64) float64 {
		return l.Top + plotH*(1-(v-lo)/(hi-lo))
	}
	zero := scale(0)
	l.Zero = zero

	if n := len(spec.Bars); n > 0 {
		slot := (l.Right - l.Left) / float64(n)
		w := slot * barFraction
		for i, b := range spec.Bars {
			x := l.Left + slot*float64(i) + (slot-w)/2
			y := scale(b.Value)
			top, h := y, zero-y
			if h < 0 {
				top, h = zero, -h
			}
			l.Columns = append(l.Columns, svgBar{
				X: x, Y: top, W: w, H: h,
				LabelX: x + w/2,
				Label:  b.Label,
				Value:  b.Value,
				InBand: b.InBand,
			})
		}
	}

	for _, ln := range spec.Lines {
		l.RefLines = append(l.RefLines, svgLine{Y: scale(ln.Value), Color: ln.Color, Dashed: ln.Dashed})
	}

	for i := 0; i <= yTicks; i++ {
		v := lo + (hi-lo)*float64(i)/yTicks
		l.Ticks = append(l.Ticks, svgTick{Y: scale(v), Label: fmt.Sprintf("%.0f", v)})
	}

	y := l.Top + 24
	l.Legend = append(l.Legend, svgLegendItem{Y: y, Bar: true, Color: l.BarColor, Label: spec.BarLabel})
	for _, ln := range spec.Lines {
		y += 22
		l.Legend = append(l.Legend, svgLegendItem{Y: y, Color: ln.Color, Dashed: ln.Dashed, Label: ln.Label})
	}

	return l
}
