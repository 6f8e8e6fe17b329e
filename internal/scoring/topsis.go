package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/gridatlas/siterank-cli/internal/persona"
)

// TOPSISScores ranks a cohort by closeness to the ideal alternative. For
// each component the positive ideal is the cohort maximum and the negative
// ideal the minimum (every component is benefit-oriented; tariff is already
// inverted into its score). Distances are weighted Euclidean, and the
// returned score is 100 times the closeness ratio D- / (D+ + D-).
//
// A cohort of one has nothing to compare against and scores 100. A cohort
// of identical alternatives is equidistant from both ideals and every
// member scores 100.
func TOPSISScores(cohort []ComponentSet, w persona.Weights) ([]float64, error) {
	n := len(cohort)
	if n == 0 {
		return nil, nil
	}
	if n == 1 {
		return []float64{100}, nil
	}

	norm, err := w.Normalized()
	if err != nil {
		return nil, eris.Wrap(err, "scoring: cannot normalize weights")
	}
	wv := norm.Vector()

	var posIdeal, negIdeal [8]float64
	for j := 0; j < 8; j++ {
		posIdeal[j] = math.Inf(-1)
		negIdeal[j] = math.Inf(1)
	}
	vectors := make([][8]float64, n)
	for i, c := range cohort {
		vectors[i] = c.Vector()
		for j, v := range vectors[i] {
			posIdeal[j] = math.Max(posIdeal[j], v)
			negIdeal[j] = math.Min(negIdeal[j], v)
		}
	}

	scores := make([]float64, n)
	for i := range vectors {
		var distPos, distNeg float64
		for j, v := range vectors[i] {
			dp := v - posIdeal[j]
			dn := v - negIdeal[j]
			distPos += wv[j] * dp * dp
			distNeg += wv[j] * dn * dn
		}
		distPos = math.Sqrt(distPos)
		distNeg = math.Sqrt(distNeg)

		if distPos+distNeg == 0 {
			// Identical to both ideals, i.e. an identical cohort.
			scores[i] = 100
			continue
		}
		scores[i] = 100 * distNeg / (distPos + distNeg)
	}
	return scores, nil
}
