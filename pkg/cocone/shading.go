package cocone

// Shading selects how per-corner normals of an accepted facet are derived.
// It is fixed when the facet is classified. The set of variants is closed.
type Shading interface {
	shading()
}

// Flat facets use their geometric ortho only.
type Flat struct{}

// Interpolated facets use the raw pole normals of their vertices.
type Interpolated struct{}

// Reversed facets use pole normals, negated where Flip is set.
type Reversed struct {
	Flip []bool
}

func (Flat) shading()         {}
func (Interpolated) shading() {}
func (Reversed) shading()     {}

func shadingFor(states []State, cosines []float64) Shading {
	for _, s := range states {
		if s != Reliable {
			return Flat{}
		}
	}
	flip := make([]bool, len(cosines))
	flipped := false
	for i, c := range cosines {
		flip[i] = c < 0
		flipped = flipped || flip[i]
	}
	if !flipped {
		return Interpolated{}
	}
	return Reversed{Flip: flip}
}
