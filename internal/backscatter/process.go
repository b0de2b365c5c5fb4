package backscatter

import (
	"fmt"

	"github.com/hydroline-data/swathproc/internal/swath"
)

// Settings toggles the individual stages of the correction chain. The zero
// value disables everything; use DefaultSettings for the standard chain.
type Settings struct {
	RemoveFixedGain        bool
	AddTVG                 bool
	RemoveTransmissionLoss bool
	RemoveArea             bool
}

// DefaultSettings enables the full chain.
func DefaultSettings() Settings {
	return Settings{
		RemoveFixedGain:        true,
		AddTVG:                 true,
		RemoveTransmissionLoss: true,
		RemoveArea:             true,
	}
}

// Component is one recorded term of the chain for the first ping of a
// chunk, used for diagnostics plots. Scalar terms record a single value,
// grid terms the first-ping row.
type Component struct {
	Name   string
	Scalar *float64
	Row    []float64
}

// Corrector runs the correction chain for one chunk. Like the
// georeferencing projector it is a pure function of its inputs; recording
// components is observation only and never changes the numbers.
type Corrector struct {
	Model    Model
	Settings Settings
	// RecordComponents captures each chain term for the first ping so the
	// run can render a diagnostics plot.
	RecordComponents bool

	components []Component
}

// Components returns the recorded first-ping chain terms from the last
// Process call. Empty unless RecordComponents was set.
func (c *Corrector) Components() []Component { return c.components }

func (c *Corrector) record(name string, term Correction) {
	if !c.RecordComponents {
		return
	}
	if term.IsGrid {
		if len(term.Grid) == 0 {
			return
		}
		row := make([]float64, len(term.Grid[0]))
		copy(row, term.Grid[0])
		c.components = append(c.components, Component{Name: name, Row: row})
		return
	}
	v := term.Scalar
	c.components = append(c.components, Component{Name: name, Scalar: &v})
}

func apply(out swath.Grid, term Correction, sign float64) {
	for i := range out {
		for j := range out[i] {
			out[i][j] += sign * term.At(i, j)
		}
	}
}

// Process runs the enabled stages over the model's raw intensity and
// returns the corrected grid:
//
//	out = raw - fixed gain + tvg - transmission loss - area
//
// The input grid is never modified. Missing samples (NaN) stay missing.
func (c *Corrector) Process() (swath.Grid, error) {
	if c.Model == nil {
		return nil, fmt.Errorf("backscatter corrector requires a sonar model")
	}
	c.components = nil

	raw := c.Model.Raw()
	out := raw.Clone()
	c.record("raw_intensity", GridTerm(raw))

	if c.Settings.RemoveFixedGain {
		term := c.Model.FixedGain()
		apply(out, term, -1)
		c.record("fixed_gain", term)
	}
	if c.Settings.AddTVG {
		term := c.Model.TVG()
		apply(out, term, +1)
		c.record("tvg", term)
	}
	if c.Settings.RemoveTransmissionLoss {
		term := c.Model.TransmissionLoss()
		apply(out, term, -1)
		c.record("transmission_loss", term)
	}
	if c.Settings.RemoveArea {
		term := c.Model.AreaCorrection()
		apply(out, term, -1)
		c.record("area_correction", term)
	}

	c.record("final_intensity", GridTerm(out))
	return out, nil
}
