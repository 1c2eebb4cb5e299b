package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/lfmartins/carteira/internal/models"
)

// chartCategory is the file store bucket for rendered charts.
const chartCategory = "charts"

// RenderShareValueChart renders the user's share value history as a PNG and
// stores it in the file store. Returns the storage key.
func (s *Service) RenderShareValueChart(ctx context.Context, userID string, from, to *time.Time) (string, error) {
	history, err := s.storage.FundShares().History(ctx, userID, from, to, 0)
	if err != nil {
		return "", err
	}
	if len(history) < 2 {
		return "", fmt.Errorf("%w: need at least two fund share rows to chart", models.ErrValidation)
	}

	xs := make([]time.Time, len(history))
	ys := make([]float64, len(history))
	for i, row := range history {
		xs[i] = row.Date
		ys[i], _ = row.ShareValue.Float64()
	}

	baseline, _ := models.InitialShareValue.Float64()
	graph := chart.Chart{
		Width:  1200,
		Height: 500,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "Share value",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Share value",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: drawing.ColorBlue,
					StrokeWidth: 2,
				},
			},
			chart.TimeSeries{
				Name:    "Initial",
				XValues: []time.Time{xs[0], xs[len(xs)-1]},
				YValues: []float64{baseline, baseline},
				Style: chart.Style{
					StrokeColor:     drawing.ColorFromHex("9ca3af"),
					StrokeWidth:     1,
					StrokeDashArray: []float64{4, 4},
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("failed to render chart: %w", err)
	}

	key := fmt.Sprintf("%s/share-value-%s.png", userID, history[len(history)-1].Date.Format("2006-01-02"))
	if err := s.storage.Files().SaveFile(ctx, chartCategory, key, buf.Bytes(), "image/png"); err != nil {
		return "", err
	}
	return key, nil
}
