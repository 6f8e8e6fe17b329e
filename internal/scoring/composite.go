package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/gridatlas/siterank-cli/internal/persona"
)

// WeightedComposite combines component scores with the persona's weights,
// re-normalized so they sum to 1.0. The result stays in [0,100] because
// every component does.
func WeightedComposite(comps ComponentSet, w persona.Weights) (float64, error) {
	norm, err := w.Normalized()
	if err != nil {
		return 0, eris.Wrap(err, "scoring: cannot normalize weights")
	}
	cv := comps.Vector()
	wv := norm.Vector()
	var sum float64
	for i := range cv {
		sum += cv[i] * wv[i]
	}
	return sum, nil
}

// RatingFromScore converts a 0-100 score to the 1.0-10.0 display rating.
func RatingFromScore(score float64) float64 {
	rating := score / 10
	return math.Max(1.0, math.Min(10.0, rating))
}

// bucketFor resolves the label and color for a score. Buckets are matched
// by descending threshold; the lowest bucket catches everything else.
func (c Config) bucketFor(score float64) (label, color string) {
	best := -1
	for i, b := range c.Buckets {
		if score < b.MinScore {
			continue
		}
		if best == -1 || b.MinScore > c.Buckets[best].MinScore {
			best = i
		}
	}
	if best == -1 {
		// Score below every threshold; fall back to the lowest bucket.
		best = 0
		for i, b := range c.Buckets {
			if b.MinScore < c.Buckets[best].MinScore {
				best = i
			}
		}
	}
	return c.Buckets[best].Label, c.Buckets[best].Color
}
