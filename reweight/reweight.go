// Package reweight implements the node-magnitude flattening factor W(x) of
// spec.md §4.5: fills divide stored weights (sharply peaked at small x) by
// W(x), and convolution multiplies the PDF node cache back by W(x) to
// compensate, so that a uniform-in-y basis sees an approximately constant
// magnitude across nodes.
package reweight

import "math"

// Weight computes W(x) = sqrt(x^3) / (1 - 0.99x)^3.
func Weight(x float64) float64 {
	d := 1 - 0.99*x
	return math.Sqrt(x*x*x) / (d * d * d)
}
