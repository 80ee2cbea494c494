// Package noise resolves the physical noise models attached to nodes and
// quantum channels.
//
// Resolution is a validate-or-default step: every model is decoded from the
// template's parameter object into a typed value before anything is built.
// Absent or malformed parameters never fail; the perfect model is used and
// the reason is handed back for logging.
package noise

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Parameter names understood by the resolvers.
const (
	ParamDepolarRate  = "depolar_rate"
	ParamDetectorEff  = "det_eff"
	ParamLossInit     = "p_loss_init"
	ParamLossLength   = "p_loss_length"
	defaultLossLength = 0.2
)

// Params is the parameter object of a node or channel template.
type Params map[string]cty.Value

// ParamsFromValue converts an evaluated HCL object or map into Params. Any
// other value yields an empty set.
func ParamsFromValue(v cty.Value) Params {
	if v.IsNull() || !v.IsKnown() {
		return Params{}
	}
	ty := v.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return Params{}
	}
	if v.LengthInt() == 0 {
		return Params{}
	}
	return Params(v.AsValueMap())
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// number decodes one numeric parameter. ok is false when the parameter is
// absent; err is set when it is present but not a finite number.
func (p Params) number(name string) (f float64, ok bool, err error) {
	v, present := p[name]
	if !present || v.IsNull() {
		return 0, false, nil
	}
	if !v.IsKnown() {
		return 0, true, fmt.Errorf("parameter %q is not known", name)
	}
	nv, err := convert.Convert(v, cty.Number)
	if err != nil {
		return 0, true, fmt.Errorf("parameter %q: %w", name, err)
	}
	if err := gocty.FromCtyValue(nv, &f); err != nil {
		return 0, true, fmt.Errorf("parameter %q: %w", name, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true, fmt.Errorf("parameter %q is not finite", name)
	}
	return f, true, nil
}

// Depolar is the memory noise model of every qubit slot of a node.
type Depolar struct {
	// Rate is the depolarizing rate in Hz. Zero means a perfect memory.
	Rate float64
}

// Probability returns the chance that a qubit stored for d has depolarized.
func (m Depolar) Probability(d time.Duration) float64 {
	if m.Rate <= 0 || d <= 0 {
		return 0
	}
	return 1 - math.Exp(-m.Rate*d.Seconds())
}

// ResolveDepolar reads depolar_rate. A non-nil reason means the perfect
// memory was used instead.
func ResolveDepolar(p Params) (Depolar, error) {
	rate, ok, err := p.number(ParamDepolarRate)
	switch {
	case err != nil:
		return Depolar{}, err
	case !ok:
		return Depolar{}, fmt.Errorf("parameter %q not set", ParamDepolarRate)
	case rate < 0:
		return Depolar{}, fmt.Errorf("parameter %q must not be negative, got %g", ParamDepolarRate, rate)
	}
	return Depolar{Rate: rate}, nil
}

// Detector is the classical noise model of Bell-state measurements.
type Detector struct {
	// Efficiency is the probability that a measurement reports the true
	// outcome.
	Efficiency float64
}

// PerfectDetector never alters a result.
var PerfectDetector = Detector{Efficiency: 1}

// Apply returns the reported outcome of a Bell-state measurement whose true
// outcome is result. A miss replaces it with a uniformly random 0..3.
func (d Detector) Apply(result int, src Source) int {
	if src.RandU01() > d.Efficiency {
		return Intn(src, 4)
	}
	return result
}

// ResolveDetector reads det_eff. A non-nil reason means the perfect detector
// was used instead.
func ResolveDetector(p Params) (Detector, error) {
	eff, ok, err := p.number(ParamDetectorEff)
	switch {
	case err != nil:
		return PerfectDetector, err
	case !ok:
		return PerfectDetector, fmt.Errorf("parameter %q not set", ParamDetectorEff)
	case eff < 0 || eff > 1:
		return PerfectDetector, fmt.Errorf("parameter %q must be within [0, 1], got %g", ParamDetectorEff, eff)
	}
	return Detector{Efficiency: eff}, nil
}

// FibreLoss is the photon loss model shared by both directions of a quantum
// link.
type FibreLoss struct {
	// InitialLoss is the probability of losing a qubit on entering the fibre.
	InitialLoss float64
	// LengthLoss is the attenuation in dB/km.
	LengthLoss float64
}

// DefaultFibreLoss has no insertion loss and standard telecom attenuation.
var DefaultFibreLoss = FibreLoss{LengthLoss: defaultLossLength}

// DeliveryProbability is the chance a qubit survives lengthKm of fibre.
func (m FibreLoss) DeliveryProbability(lengthKm float64) float64 {
	if lengthKm < 0 {
		lengthKm = 0
	}
	return (1 - m.InitialLoss) * math.Pow(10, -m.LengthLoss*lengthKm/10)
}

// Lost samples whether a qubit is lost over lengthKm.
func (m FibreLoss) Lost(lengthKm float64, src Source) bool {
	return src.RandU01() >= m.DeliveryProbability(lengthKm)
}

// ResolveFibreLoss reads p_loss_init and p_loss_length. Each absent parameter
// takes its default; a malformed one makes the whole model fall back to
// DefaultFibreLoss with a non-nil reason.
func ResolveFibreLoss(p Params) (FibreLoss, error) {
	m := DefaultFibreLoss
	initial, ok, err := p.number(ParamLossInit)
	if err != nil {
		return DefaultFibreLoss, err
	}
	if ok {
		if initial < 0 || initial > 1 {
			return DefaultFibreLoss, fmt.Errorf("parameter %q must be within [0, 1], got %g", ParamLossInit, initial)
		}
		m.InitialLoss = initial
	}
	length, ok, err := p.number(ParamLossLength)
	if err != nil {
		return DefaultFibreLoss, err
	}
	if ok {
		if length < 0 {
			return DefaultFibreLoss, fmt.Errorf("parameter %q must not be negative, got %g", ParamLossLength, length)
		}
		m.LengthLoss = length
	}
	return m, nil
}
