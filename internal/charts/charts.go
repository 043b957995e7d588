// Package charts renders the monthly report as an image.
package charts

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/ivanoskov/sheets_bot/internal/service"
)

// ChartGenerator renders report images for the bot.
type ChartGenerator struct{}

func NewChartGenerator() *ChartGenerator {
	return &ChartGenerator{}
}

// MonthlyDashboard draws a bar chart of the month's per-category
// totals, expenses besides income. Returns nil when the report has no
// data to draw.
func (g *ChartGenerator) MonthlyDashboard(report *service.Report) ([]byte, error) {
	if len(report.Expenses) == 0 && len(report.Income) == 0 {
		return nil, nil
	}

	bars := make([]chart.Value, 0, len(report.Expenses)+len(report.Income))
	for _, cat := range report.Expenses {
		amount, _ := cat.Total.Float64()
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s\n%.0f", cat.Name, amount),
			Value: amount,
			Style: chart.Style{
				StrokeColor: chart.ColorRed,
				FillColor:   chart.ColorRed.WithAlpha(100),
				FontSize:    10,
				FontColor:   chart.ColorBlack,
			},
		})
	}
	for _, cat := range report.Income {
		amount, _ := cat.Total.Float64()
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s\n%.0f", cat.Name, amount),
			Value: amount,
			Style: chart.Style{
				StrokeColor: chart.ColorGreen,
				FillColor:   chart.ColorGreen.WithAlpha(100),
				FontSize:    10,
				FontColor:   chart.ColorBlack,
			},
		})
	}

	graph := chart.BarChart{
		Title: fmt.Sprintf("Report for %s", report.Period),
		TitleStyle: chart.Style{
			FontSize:  14,
			FontColor: chart.ColorBlack,
		},
		Width:    1200,
		Height:   600,
		BarWidth: 60,
		Background: chart.Style{
			Padding: chart.Box{
				Top:    50,
				Left:   50,
				Right:  50,
				Bottom: 50,
			},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				return fmt.Sprintf("%.0f", v.(float64))
			},
			Style: chart.Style{
				FontSize:  12,
				FontColor: chart.ColorBlack,
			},
		},
		Bars: bars,
	}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("failed to render monthly dashboard: %w", err)
	}
	return buffer.Bytes(), nil
}
