// Package backscatter removes the acquisition effects from raw multibeam
// intensity: fixed receiver gain, time-varying gain, transmission loss and
// insonified-area normalization, with a sonar-family-specific model
// supplying each term, followed by an empirical angle-response corrector.
// The pipeline is independent of georeferencing and chunk-parallel in the
// same way.
package backscatter

import (
	"fmt"
	"math"

	"github.com/hydroline-data/swathproc/internal/swath"
)

// Family identifies the sonar family whose runtime parameters drive the
// correction terms. The set is closed; an unrecognized family is fatal for
// the unit of work and reported with the offending identifier.
type Family string

const (
	FamilyReson7k       Family = "s7k"
	FamilyKongsbergAll  Family = "all"
	FamilyKongsbergKmall Family = "kmall"
)

// Geometry is the raw per-chunk geometry every family needs: intensity,
// slant range and beam angle as time×beam grids, surface sound speed per
// ping.
type Geometry struct {
	RawIntensity      swath.Grid // dB
	SlantRange        swath.Grid // meters
	BeamAngle         swath.Grid // degrees from nadir
	SurfaceSoundSpeed []float64  // m/s, time-indexed
}

// Correction is one additive term of the chain: either a scalar applied to
// every sample or a full time×beam grid.
type Correction struct {
	Scalar float64
	Grid   swath.Grid
	IsGrid bool
}

// ScalarTerm wraps a constant correction.
func ScalarTerm(v float64) Correction { return Correction{Scalar: v} }

// GridTerm wraps an array correction.
func GridTerm(g swath.Grid) Correction { return Correction{Grid: g, IsGrid: true} }

// At returns the term value for a sample.
func (c Correction) At(i, j int) float64 {
	if c.IsGrid {
		return c.Grid[i][j]
	}
	return c.Scalar
}

// Model supplies the four family-specific correction terms. Models are
// constructed per processing chunk from that chunk's runtime parameters and
// are stateless beyond construction.
type Model interface {
	Family() Family
	// Raw is the uncorrected intensity grid the chain starts from.
	Raw() swath.Grid
	FixedGain() Correction
	TVG() Correction
	TransmissionLoss() Correction
	AreaCorrection() Correction
}

// sphericalSpreading is the 40·log10(r) two-way spreading loss.
func sphericalSpreading(slant swath.Grid) swath.Grid {
	out := swath.ZerosLike(slant)
	for i := range slant {
		for j, r := range slant[i] {
			out[i][j] = 40 * math.Log10(r)
		}
	}
	return out
}

// attenuation is the two-way absorption loss 2·α·r with α in dB/m.
func attenuation(absorptionDBPerM float64, slant swath.Grid) swath.Grid {
	out := swath.ZerosLike(slant)
	for i := range slant {
		for j, r := range slant[i] {
			out[i][j] = 2 * absorptionDBPerM * r
		}
	}
	return out
}

const degToRad = math.Pi / 180

// areaCorrection selects, in linear area terms before the log, the smaller
// of the beam-limited and pulse-limited footprint models. This min is the
// physical footprint regime switch: near nadir the pulse-limited area blows
// up and the beam-limited footprint governs, away from nadir the reverse.
// It is exact, not an approximation, and must stay that way.
func areaCorrection(txBeamWidthDeg, rxBeamWidthDeg float64, slant swath.Grid,
	soundSpeed []float64, pulseLength Correction, beamAngle swath.Grid) swath.Grid {

	out := swath.ZerosLike(slant)
	for i := range slant {
		for j, r := range slant[i] {
			beamLimited := txBeamWidthDeg * rxBeamWidthDeg * (r * degToRad) * (r * degToRad)
			pulseLimited := (soundSpeed[i] * pulseLength.At(i, j) * txBeamWidthDeg * r * degToRad) /
				(2 * math.Sin(math.Abs(beamAngle[i][j]*degToRad)))
			out[i][j] = 10 * math.Log10(math.Min(beamLimited, pulseLimited))
		}
	}
	return out
}

// Reson7kParams are the runtime parameters of the Reson 7k family.
type Reson7kParams struct {
	AbsorptionDBPerKm float64
	SpreadingLossDB   float64
	PowerSelectionDB  float64
	GainSelectionDB   float64
	TxPulseWidthSec   float64
	TxBeamWidthDeg    float64
	RxBeamWidthDeg    float64
}

type reson7k struct {
	p   Reson7kParams
	geo Geometry
}

func (m *reson7k) Family() Family { return FamilyReson7k }

func (m *reson7k) Raw() swath.Grid { return m.geo.RawIntensity }

func (m *reson7k) FixedGain() Correction {
	return ScalarTerm(m.p.GainSelectionDB + m.p.PowerSelectionDB)
}

func (m *reson7k) attenuation() swath.Grid {
	return attenuation(m.p.AbsorptionDBPerKm/1000, m.geo.SlantRange)
}

func (m *reson7k) TVG() Correction {
	att := m.attenuation()
	out := swath.ZerosLike(att)
	for i := range out {
		for j := range out[i] {
			out[i][j] = m.p.SpreadingLossDB*math.Log10(m.geo.SlantRange[i][j]) + att[i][j]
		}
	}
	return GridTerm(out)
}

func (m *reson7k) TransmissionLoss() Correction {
	spread := sphericalSpreading(m.geo.SlantRange)
	att := m.attenuation()
	for i := range spread {
		for j := range spread[i] {
			spread[i][j] += att[i][j]
		}
	}
	return GridTerm(spread)
}

func (m *reson7k) AreaCorrection() Correction {
	return GridTerm(areaCorrection(m.p.TxBeamWidthDeg, m.p.RxBeamWidthDeg, m.geo.SlantRange,
		m.geo.SurfaceSoundSpeed, ScalarTerm(m.p.TxPulseWidthSec), m.geo.BeamAngle))
}

// KongsbergAllParams are the runtime parameters of the Kongsberg .all
// family. The receiver fixed gain field of that format is legacy and is
// carried as zero.
type KongsbergAllParams struct {
	AbsorptionDBPerKm   float64
	TxBeamWidthDeg      float64
	RxBeamWidthDeg      float64
	NearNormalCorrector swath.Grid
	PulseLength         swath.Grid // seconds
}

type kongsbergAll struct {
	p   KongsbergAllParams
	geo Geometry
}

func (m *kongsbergAll) Family() Family { return FamilyKongsbergAll }

func (m *kongsbergAll) Raw() swath.Grid { return m.geo.RawIntensity }

func (m *kongsbergAll) FixedGain() Correction { return ScalarTerm(0) }

func (m *kongsbergAll) attenuation() swath.Grid {
	return attenuation(m.p.AbsorptionDBPerKm/1000, m.geo.SlantRange)
}

func (m *kongsbergAll) TVG() Correction {
	att := m.attenuation()
	out := swath.ZerosLike(att)
	for i := range out {
		for j := range out[i] {
			out[i][j] = 40*math.Log10(m.geo.SlantRange[i][j]) + att[i][j] - m.p.NearNormalCorrector[i][j]
		}
	}
	return GridTerm(out)
}

func (m *kongsbergAll) TransmissionLoss() Correction {
	spread := sphericalSpreading(m.geo.SlantRange)
	att := m.attenuation()
	for i := range spread {
		for j := range spread[i] {
			spread[i][j] += att[i][j]
		}
	}
	return GridTerm(spread)
}

func (m *kongsbergAll) AreaCorrection() Correction {
	return GridTerm(areaCorrection(m.p.TxBeamWidthDeg, m.p.RxBeamWidthDeg, m.geo.SlantRange,
		m.geo.SurfaceSoundSpeed, GridTerm(m.p.PulseLength), m.geo.BeamAngle))
}

// KongsbergKmallParams are the runtime parameters of the Kongsberg .kmall
// family, which delivers its gain and TVG as ready-made arrays.
type KongsbergKmallParams struct {
	TxBeamWidthDeg float64
	RxBeamWidthDeg float64
	PulseLength    swath.Grid
	TVG            swath.Grid
	FixedGain      swath.Grid
}

type kongsbergKmall struct {
	p   KongsbergKmallParams
	geo Geometry
}

func (m *kongsbergKmall) Family() Family { return FamilyKongsbergKmall }

func (m *kongsbergKmall) Raw() swath.Grid { return m.geo.RawIntensity }

func (m *kongsbergKmall) FixedGain() Correction { return GridTerm(m.p.FixedGain) }

func (m *kongsbergKmall) TVG() Correction { return GridTerm(m.p.TVG) }

// TransmissionLoss is zero for this family: the loss is already folded
// into the supplied TVG array.
func (m *kongsbergKmall) TransmissionLoss() Correction { return ScalarTerm(0) }

func (m *kongsbergKmall) AreaCorrection() Correction {
	return GridTerm(areaCorrection(m.p.TxBeamWidthDeg, m.p.RxBeamWidthDeg, m.geo.SlantRange,
		m.geo.SurfaceSoundSpeed, GridTerm(m.p.PulseLength), m.geo.BeamAngle))
}

// NewModel dispatches on the sonar family tag. params must be the matching
// family's parameter record.
func NewModel(family Family, params any, geo Geometry) (Model, error) {
	switch family {
	case FamilyReson7k:
		p, ok := params.(Reson7kParams)
		if !ok {
			return nil, fmt.Errorf("family %s requires Reson7kParams, got %T", family, params)
		}
		return &reson7k{p: p, geo: geo}, nil
	case FamilyKongsbergAll:
		p, ok := params.(KongsbergAllParams)
		if !ok {
			return nil, fmt.Errorf("family %s requires KongsbergAllParams, got %T", family, params)
		}
		return &kongsbergAll{p: p, geo: geo}, nil
	case FamilyKongsbergKmall:
		p, ok := params.(KongsbergKmallParams)
		if !ok {
			return nil, fmt.Errorf("family %s requires KongsbergKmallParams, got %T", family, params)
		}
		return &kongsbergKmall{p: p, geo: geo}, nil
	}
	return nil, fmt.Errorf("sonar family %q is not supported for backscatter processing", family)
}
