package metrics

import "github.com/san-kum/gravlab/internal/step"

// TraversalCost averages the number of kernel interactions evaluated
// per owned particle per step, counting a multipole approximation the
// same as a direct pair.
type TraversalCost struct {
	name    string
	total   float64
	samples int
}

func NewTraversalCost() *TraversalCost {
	return &TraversalCost{name: "traversal_cost"}
}

func (c *TraversalCost) Name() string { return c.name }

func (c *TraversalCost) Observe(rep *step.Report) {
	if rep.NumOwned == 0 {
		return
	}
	c.total += float64(rep.Stats.NumP2P+rep.Stats.NumM2P) / float64(rep.NumOwned)
	c.samples++
}

func (c *TraversalCost) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.total / float64(c.samples)
}

func (c *TraversalCost) Reset() {
	c.total = 0
	c.samples = 0
}
