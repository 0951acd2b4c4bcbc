package ensemble

import (
	"math"
	"sort"
)

// isotonicPoint is one (x, y) knot of a fitted isotonic step function.
type isotonicPoint struct {
	X float64
	Y float64
}

// isotonicModel is a monotone, non-decreasing step function fit by pool
// adjacent violators (PAV) over raw-probability/empirical-outcome pairs.
type isotonicModel struct {
	Points []isotonicPoint
}

// fitIsotonic runs PAV over (x[i], y[i]) pairs sorted by x, merging any
// adjacent blocks that violate monotonicity into their weighted mean.
func fitIsotonic(x, y []float64) *isotonicModel {
	n := len(x)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })

	type block struct {
		sumX, sumY float64
		n          float64
	}
	var blocks []block
	for _, idx := range order {
		b := block{sumX: x[idx], sumY: y[idx], n: 1}
		blocks = append(blocks, b)
		for len(blocks) > 1 && blocks[len(blocks)-2].sumY/blocks[len(blocks)-2].n > blocks[len(blocks)-1].sumY/blocks[len(blocks)-1].n {
			last := blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
			blocks[len(blocks)-1].sumX += last.sumX
			blocks[len(blocks)-1].sumY += last.sumY
			blocks[len(blocks)-1].n += last.n
		}
	}

	points := make([]isotonicPoint, 0, len(blocks))
	for _, b := range blocks {
		points = append(points, isotonicPoint{X: b.sumX / b.n, Y: b.sumY / b.n})
	}
	return &isotonicModel{Points: points}
}

// predict linearly interpolates between the two bracketing knots, clamping
// at the ends — the standard isotonic-regression inference rule.
func (m *isotonicModel) predict(x float64) float64 {
	pts := m.Points
	if len(pts) == 0 {
		return x
	}
	if x <= pts[0].X {
		return pts[0].Y
	}
	if x >= pts[len(pts)-1].X {
		return pts[len(pts)-1].Y
	}
	for i := 0; i < len(pts)-1; i++ {
		if x >= pts[i].X && x <= pts[i+1].X {
			span := pts[i+1].X - pts[i].X
			if span == 0 {
				return pts[i].Y
			}
			t := (x - pts[i].X) / span
			return pts[i].Y + t*(pts[i+1].Y-pts[i].Y)
		}
	}
	return pts[len(pts)-1].Y
}

// plattModel is a 1-D logistic regression p = sigmoid(a*x + b), the classic
// Platt-scaling recalibration of a raw score onto a probability.
type plattModel struct {
	A, B float64
}

// fitPlatt fits a, b by gradient descent on the binary cross-entropy loss,
// the same loop shape as the tree learners' logistic residual fitting.
func fitPlatt(x, y []float64) *plattModel {
	a, b := 1.0, 0.0
	const lr = 0.05
	const iters = 500
	n := float64(len(x))
	if n == 0 {
		return &plattModel{A: 1, B: 0}
	}
	for it := 0; it < iters; it++ {
		var gradA, gradB float64
		for i := range x {
			p := sigmoid(a*x[i] + b)
			err := p - y[i]
			gradA += err * x[i]
			gradB += err
		}
		a -= lr * gradA / n
		b -= lr * gradB / n
	}
	return &plattModel{A: a, B: b}
}

func (m *plattModel) predict(x float64) float64 {
	return sigmoid(m.A*x + m.B)
}

// Calibrator blends isotonic and Platt-scaled views of a raw classifier
// score into one calibrated probability: `iso_w*isotonic(p) + (1-iso_w)*logistic(p)`, clipped to
// [0,1]. IsoWeight defaults to 0.6.
type Calibrator struct {
	Isotonic  *isotonicModel
	Platt     *plattModel
	IsoWeight float64
}

const defaultIsoWeight = 0.6

// FitCalibrator trains both component models against the same
// (rawScore, label) calibration-split pairs.
func FitCalibrator(rawScores, labels []float64) *Calibrator {
	return &Calibrator{
		Isotonic:  fitIsotonic(rawScores, labels),
		Platt:     fitPlatt(rawScores, labels),
		IsoWeight: defaultIsoWeight,
	}
}

// Apply returns the blended, clipped calibrated probability for one raw
// classifier score.
func (c *Calibrator) Apply(raw float64) float64 {
	if c == nil {
		return clip01(raw)
	}
	blended := c.IsoWeight*c.Isotonic.predict(raw) + (1-c.IsoWeight)*c.Platt.predict(raw)
	return clip01(blended)
}

func clip01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
