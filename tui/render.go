package tui

import (
	"fmt"
	"math"
	"strings"

	"binaural"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Nord palette
	nord3  = lipgloss.Color("#4C566A")
	nord4  = lipgloss.Color("#D8DEE9")
	nord8  = lipgloss.Color("#88C0D0")
	nord9  = lipgloss.Color("#81A1C1")
	nord11 = lipgloss.Color("#BF616A")
	nord13 = lipgloss.Color("#EBCB8B")
	nord14 = lipgloss.Color("#A3BE8C")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(nord8)
	sectionStyle = lipgloss.NewStyle().MarginTop(1).Foreground(nord9)
	faintStyle   = lipgloss.NewStyle().Faint(true)
	traceStyle   = lipgloss.NewStyle().Foreground(nord4)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(nord3).Padding(0, 1)
	statusStyle  = lipgloss.NewStyle().Bold(true).Padding(1, 4).Foreground(nord8)
	errorStyle   = lipgloss.NewStyle().Foreground(nord11)
)

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// levelColor 质量分级对应的图例颜色
func levelColor(l binaural.QualityLevel) lipgloss.Color {
	switch l {
	case binaural.QualityGood:
		return nord14
	case binaural.QualityMarginal:
		return nord13
	default:
		return nord11
	}
}

// sparkline 把采样序列压缩成 width 个字符，每列取绝对值最大的点
func sparkline(samples []float64, width int) string {
	if width <= 0 || len(samples) == 0 {
		return ""
	}
	cols := make([]float64, min(width, len(samples)))
	per := float64(len(samples)) / float64(len(cols))
	for c := range cols {
		start := int(float64(c) * per)
		end := max(int(float64(c+1)*per), start+1)
		v := samples[start]
		for _, s := range samples[start:min(end, len(samples))] {
			if math.Abs(s) > math.Abs(v) {
				v = s
			}
		}
		cols[c] = v
	}

	lo, hi := cols[0], cols[0]
	for _, v := range cols {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	var b strings.Builder
	for _, v := range cols {
		idx := len(sparkRunes) / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(len(sparkRunes)-1)))
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func renderLegend(tr binaural.Trace) string {
	label := fmt.Sprintf("%-3s %5.1f %-8s", tr.Name, tr.Quality, tr.Level)
	return lipgloss.NewStyle().Foreground(levelColor(tr.Level)).Render(label)
}

func renderFrame(frame binaural.Frame, width int) string {
	traceWidth := max(width-24, 10)
	lines := make([]string, 0, len(frame.Traces))
	for _, tr := range frame.Traces {
		lines = append(lines, renderLegend(tr)+" "+traceStyle.Render(sparkline(tr.Samples, traceWidth)))
	}
	lines = append(lines, faintStyle.Render(fmt.Sprintf("%d samples, notch %s", frame.Samples, frame.Mains)))
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderReport(r binaural.Report) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%d samples exported", r.Rows))
	if r.CSVPath != "" {
		lines = append(lines, "CSV  "+r.CSVPath)
	}
	if r.EDFPath != "" {
		lines = append(lines, "EDF  "+r.EDFPath)
	}
	codes := make([]string, len(r.Markers))
	for i, m := range r.Markers {
		codes[i] = fmt.Sprint(int(m))
	}
	lines = append(lines, "markers "+strings.Join(codes, " "))
	return panelStyle.Render(strings.Join(lines, "\n"))
}
