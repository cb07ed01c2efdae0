/*Package luminosity implements the linear map from incoming (pdg1, pdg2)
flavour pairs to "generalised PDF" partonic channels (component C5),
grounded on the channel-evaluation loop in the original implementation's
appl_pdf.cxx.
*/
package luminosity

import "fmt"

// NumFlavours is the number of PDG flavour slots carried by a PDF callback
// invocation: {-6..-1, g=21, 1..6, gamma=22}.
const NumFlavours = 14

// pdgOrder is the flavour-slot layout named in spec.md §6.
var pdgOrder = [NumFlavours]int{-6, -5, -4, -3, -2, -1, 21, 1, 2, 3, 4, 5, 6, 22}

// IndexOf returns the flavour-slot index of a PDG code, and false if pdg is
// not one of the 14 supported codes.
func IndexOf(pdg int) (int, bool) {
	switch {
	case pdg >= -6 && pdg <= -1:
		return pdg + 6, true
	case pdg == 21:
		return 6, true
	case pdg >= 1 && pdg <= 6:
		return pdg + 6, true
	case pdg == 22:
		return 13, true
	}
	return 0, false
}

// PDGAt returns the PDG code occupying flavour slot i.
func PDGAt(i int) int { return pdgOrder[i] }

// Pair is one (pdg1, pdg2, coefficient) entry of a channel.
type Pair struct {
	PDG1, PDG2 int
	Coeff      float64
}

// Channel is one partonic channel: a linear combination of flavour pairs.
// Channels may overlap in flavour pairs with each other.
type Channel struct {
	Pairs []Pair
}

// Luminosity is the ordered list of K channels that a Grid owns.
type Luminosity struct {
	Channels []Channel
}

// New validates and wraps a channel list. It fails if any pair names a PDG
// code outside the 14 supported flavour slots.
func New(channels []Channel) (*Luminosity, error) {
	for c, ch := range channels {
		for _, p := range ch.Pairs {
			if _, ok := IndexOf(p.PDG1); !ok {
				return nil, fmt.Errorf("luminosity: channel %d: unsupported pdg1 %d", c, p.PDG1)
			}
			if _, ok := IndexOf(p.PDG2); !ok {
				return nil, fmt.Errorf("luminosity: channel %d: unsupported pdg2 %d", c, p.PDG2)
			}
		}
	}
	return &Luminosity{Channels: channels}, nil
}

// K returns the number of channels.
func (l *Luminosity) K() int { return len(l.Channels) }

// Evaluate computes out[c] = sum over channel c's pairs of
// coeff * f1[idx(pdg1)] * f2[idx(pdg2)]. out must have length K(); a
// disabled flavour slot (e.g. photon absent from a PDF set) contributes
// zero simply because the caller writes 0 into that slot of f1/f2.
func (l *Luminosity) Evaluate(f1, f2 *[NumFlavours]float64, out []float64) {
	for c, ch := range l.Channels {
		sum := 0.0
		for _, p := range ch.Pairs {
			i1, _ := IndexOf(p.PDG1)
			i2, _ := IndexOf(p.PDG2)
			sum += p.Coeff * f1[i1] * f2[i2]
		}
		out[c] = sum
	}
}
