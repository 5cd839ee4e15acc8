package tuning

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	lsErrors "github.com/YuminosukeSato/leadscore/pkg/errors"
)

// SaveResult writes res as YAML.
func SaveResult(res *Result, path string) error {
	data, err := yaml.Marshal(res)
	if err != nil {
		return lsErrors.Wrap(err, "failed to encode search result")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lsErrors.Wrapf(err, "failed to create directory for %s", path)
	}
	return lsErrors.Wrap(os.WriteFile(path, data, 0o644), "failed to write search result")
}

// History returns the trial numbers and scores of successful trials together
// with the running best score.
func History(res *Result) (numbers, scores, bestSoFar []float64) {
	best := 0.0
	for _, t := range res.Trials {
		if t.State != TrialComplete {
			continue
		}
		if len(scores) == 0 || t.Score > best {
			best = t.Score
		}
		numbers = append(numbers, float64(t.Number))
		scores = append(scores, t.Score)
		bestSoFar = append(bestSoFar, best)
	}
	return numbers, scores, bestSoFar
}

// PlotHistory renders the optimisation history (score per trial and best so
// far) as an image; the format follows the file extension.
func PlotHistory(res *Result, path string) error {
	if res == nil {
		return lsErrors.NewValueError("PlotHistory", "result is nil")
	}
	numbers, scores, bestSoFar := History(res)
	if len(scores) == 0 {
		return lsErrors.NewValueError("PlotHistory", "no successful trial to plot")
	}

	p := plot.New()
	p.Title.Text = "Optimization History"
	p.X.Label.Text = "Trial"
	p.Y.Label.Text = res.Objective

	pts := make(plotter.XYs, len(scores))
	bestPts := make(plotter.XYs, len(scores))
	for i := range scores {
		pts[i].X, pts[i].Y = numbers[i], scores[i]
		bestPts[i].X, bestPts[i].Y = numbers[i], bestSoFar[i]
	}

	s, err := plotter.NewScatter(pts)
	if err != nil {
		return lsErrors.Wrap(err, "failed to build score scatter")
	}
	s.Color = color.RGBA{B: 255, A: 255, R: 50, G: 50}
	p.Add(s)

	l, err := plotter.NewLine(bestPts)
	if err != nil {
		return lsErrors.Wrap(err, "failed to build best score line")
	}
	l.Color = color.RGBA{R: 255, A: 255}
	l.LineStyle.Width = vg.Points(2)
	p.Add(l)
	p.Legend.Add("objective", s)
	p.Legend.Add("best so far", l)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return lsErrors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return lsErrors.Wrap(err, "failed to save optimization history")
	}
	return nil
}
