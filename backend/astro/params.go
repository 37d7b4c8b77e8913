package astro

import (
	"fmt"
	"math"
)

// Parameters of a multi-exposure sequence, all in seconds except the
// subframe count.
type Parameters struct {
	InitialDelaySec uint16 `json:"initialDelaySec"`
	ExposureSec     uint16 `json:"exposureSec"`
	SubframeCount   uint16 `json:"subframeCount"`
	IntervalSec     uint16 `json:"intervalSec"`
}

// Limit describes one tunable parameter.
type Limit struct {
	Name    string `json:"name"`
	Default uint16 `json:"default"`
	Step    uint16 `json:"step"`
	Min     uint16 `json:"min"`
	Max     uint16 `json:"max"`
	field   func(p *Parameters) *uint16
}

var limits = []Limit{
	{Name: "initialDelaySec", Default: 5, Step: 5, Min: 0, Max: math.MaxUint16,
		field: func(p *Parameters) *uint16 { return &p.InitialDelaySec }},
	{Name: "exposureSec", Default: 60, Step: 30, Min: 30, Max: 600,
		field: func(p *Parameters) *uint16 { return &p.ExposureSec }},
	{Name: "subframeCount", Default: 10, Step: 10, Min: 10, Max: 480,
		field: func(p *Parameters) *uint16 { return &p.SubframeCount }},
	{Name: "intervalSec", Default: 5, Step: 1, Min: 1, Max: 60,
		field: func(p *Parameters) *uint16 { return &p.IntervalSec }},
}

// Limits returns the parameter table in wire order.
func Limits() []Limit {
	out := make([]Limit, len(limits))
	copy(out, limits)
	return out
}

func DefaultParameters() Parameters {
	var p Parameters
	for _, l := range limits {
		*l.field(&p) = l.Default
	}
	return p
}

// TotalDurationSec is the initial delay plus every exposure and the interval
// that follows it.
func (p Parameters) TotalDurationSec() uint32 {
	return uint32(p.InitialDelaySec) + uint32(p.SubframeCount)*(uint32(p.ExposureSec)+uint32(p.IntervalSec))
}

func (p Parameters) Validate() error {
	for _, l := range limits {
		if err := l.check(int(*l.field(&p))); err != nil {
			return err
		}
	}
	return nil
}

// With returns a copy of p with the named parameter set to value.
func (p Parameters) With(name string, value int) (Parameters, error) {
	for _, l := range limits {
		if l.Name != name {
			continue
		}
		if err := l.check(value); err != nil {
			return p, err
		}
		*l.field(&p) = uint16(value)
		return p, nil
	}
	return p, &ParameterValidationError{Name: name, Value: value, Reason: "unknown parameter"}
}

func (l Limit) check(v int) error {
	if v < int(l.Min) || v > int(l.Max) {
		return &ParameterValidationError{Name: l.Name, Value: v,
			Reason: fmt.Sprintf("out of range [%d, %d]", l.Min, l.Max)}
	}
	if v%int(l.Step) != 0 {
		return &ParameterValidationError{Name: l.Name, Value: v,
			Reason: fmt.Sprintf("not a multiple of %d", l.Step)}
	}
	return nil
}
