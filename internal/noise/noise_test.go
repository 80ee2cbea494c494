package noise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// fixedSource replays a fixed sequence of variates.
type fixedSource struct {
	vals []float64
	i    int
}

func (s *fixedSource) RandU01() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func TestResolveDepolar(t *testing.T) {
	tests := []struct {
		name      string
		params    Params
		want      float64
		defaulted bool
	}{
		{"valid", Params{ParamDepolarRate: cty.NumberFloatVal(1e3)}, 1e3, false},
		{"absent", Params{}, 0, true},
		{"string", Params{ParamDepolarRate: cty.StringVal("fast")}, 0, true},
		{"numeric string", Params{ParamDepolarRate: cty.StringVal("12")}, 12, false},
		{"negative", Params{ParamDepolarRate: cty.NumberIntVal(-1)}, 0, true},
		{"null", Params{ParamDepolarRate: cty.NullVal(cty.Number)}, 0, true},
		{"unknown", Params{ParamDepolarRate: cty.UnknownVal(cty.Number)}, 0, true},
		{"list", Params{ParamDepolarRate: cty.ListValEmpty(cty.Number)}, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, reason := ResolveDepolar(tc.params)
			assert.Equal(t, tc.want, m.Rate)
			if tc.defaulted {
				assert.Error(t, reason)
			} else {
				assert.NoError(t, reason)
			}
		})
	}
}

func TestResolveDetector(t *testing.T) {
	m, reason := ResolveDetector(Params{ParamDetectorEff: cty.NumberFloatVal(0.9)})
	require.NoError(t, reason)
	assert.Equal(t, 0.9, m.Efficiency)

	for name, p := range map[string]Params{
		"absent":       {},
		"out of range": {ParamDetectorEff: cty.NumberFloatVal(1.5)},
		"malformed":    {ParamDetectorEff: cty.BoolVal(true)},
	} {
		t.Run(name, func(t *testing.T) {
			m, reason := ResolveDetector(p)
			assert.Error(t, reason)
			assert.Equal(t, PerfectDetector, m)
		})
	}
}

func TestResolveFibreLoss(t *testing.T) {
	m, reason := ResolveFibreLoss(Params{})
	require.NoError(t, reason)
	assert.Equal(t, DefaultFibreLoss, m)

	m, reason = ResolveFibreLoss(Params{
		ParamLossInit:   cty.NumberFloatVal(0.1),
		ParamLossLength: cty.NumberFloatVal(0.25),
	})
	require.NoError(t, reason)
	assert.Equal(t, FibreLoss{InitialLoss: 0.1, LengthLoss: 0.25}, m)

	m, reason = ResolveFibreLoss(Params{ParamLossInit: cty.StringVal("lots")})
	assert.Error(t, reason)
	assert.Equal(t, DefaultFibreLoss, m)
}

func TestFibreLoss_DeliveryProbability(t *testing.T) {
	m := FibreLoss{InitialLoss: 0.5, LengthLoss: 10}
	assert.InDelta(t, 0.5, m.DeliveryProbability(0), 1e-12)
	assert.InDelta(t, 0.05, m.DeliveryProbability(1), 1e-12)

	assert.False(t, m.Lost(0, &fixedSource{vals: []float64{0.49}}))
	assert.True(t, m.Lost(0, &fixedSource{vals: []float64{0.5}}))
}

func TestDepolar_Probability(t *testing.T) {
	assert.Zero(t, Depolar{}.Probability(time.Second))
	assert.InDelta(t, 0.6321, Depolar{Rate: 1}.Probability(time.Second), 1e-4)
}

func TestDetector_Apply(t *testing.T) {
	assert.Equal(t, 2, PerfectDetector.Apply(2, &fixedSource{vals: []float64{0.999}}))

	d := Detector{Efficiency: 0.5}
	// A miss draws a replacement from the second variate: 0.8*4 -> 3.
	assert.Equal(t, 3, d.Apply(0, &fixedSource{vals: []float64{0.9, 0.8}}))
	assert.Equal(t, 1, d.Apply(1, &fixedSource{vals: []float64{0.1}}))
}

func TestParamsFromValue(t *testing.T) {
	p := ParamsFromValue(cty.ObjectVal(map[string]cty.Value{
		"det_eff":      cty.NumberFloatVal(0.8),
		"depolar_rate": cty.NumberIntVal(5),
	}))
	assert.Equal(t, []string{"depolar_rate", "det_eff"}, p.Keys())

	assert.Empty(t, ParamsFromValue(cty.NullVal(cty.DynamicPseudoType)))
	assert.Empty(t, ParamsFromValue(cty.StringVal("nope")))
	assert.Empty(t, ParamsFromValue(cty.EmptyObjectVal))
}
