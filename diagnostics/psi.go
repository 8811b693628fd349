package diagnostics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/lixenwraith/synapse/parameter"
	"github.com/lixenwraith/synapse/particle"
)

// PsiTerms is the per-term breakdown of Ψ summed over particles
type PsiTerms struct {
	Energy           float64 `json:"energyTerm"`           // φ Ec/Eref
	Lambda           float64 `json:"lambdaTerm"`           // ln(|v|+1)/100
	VelocityIntegral float64 `json:"velocityIntegralTerm"` // ∫ |v|/vref dt
	X12Integral      float64 `json:"x12IntegralTerm"`      // ∫ |x12| dt
	Omega            float64 `json:"omegaTerm"`            // Ω Ec/Eref
	Potential        float64 `json:"potentialTerm"`        // (Ugrav+Udm)/Eref
}

// Psi is the composite diagnostic with its breakdown
type Psi struct {
	Terms PsiTerms `json:"terms"`
	Total float64  `json:"psiTotal"`
}

// Named returns the terms in reporting order
func (t PsiTerms) Named() []NamedValue {
	return []NamedValue{
		{"energyTerm", t.Energy},
		{"lambdaTerm", t.Lambda},
		{"velocityIntegralTerm", t.VelocityIntegral},
		{"x12IntegralTerm", t.X12Integral},
		{"omegaTerm", t.Omega},
		{"potentialTerm", t.Potential},
	}
}

// NamedValue is a labelled scalar
type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ComputePsi sums Ψ terms over particles using their accumulated integrals
// eRef of 0 falls back to 1
func ComputePsi(particles []*particle.Particle, acc *Accumulators, eRef float64) Psi {
	var t PsiTerms
	if len(particles) == 0 {
		return Psi{}
	}
	if eRef == 0 {
		eRef = 1
	}

	for _, p := range particles {
		a := acc.Get(p.ID)
		t.Energy += parameter.Phi * (p.Ec / eRef)
		t.Lambda += math.Log(p.Speed()+1) / 100
		t.VelocityIntegral += a.Velocity
		t.X12Integral += a.X12
		t.Omega += p.Omega * (p.Ec / eRef)
		t.Potential += (p.UGrav + p.UDm) / eRef
	}

	return Psi{
		Terms: t,
		Total: floats.Sum([]float64{t.Energy, t.Lambda, t.VelocityIntegral, t.X12Integral, t.Omega, t.Potential}),
	}
}

// Anomalies lists terms, and the total, that are non-finite or exceed PsiAnomalyLimit in magnitude
func Anomalies(psi Psi) []NamedValue {
	var out []NamedValue
	values := append(psi.Terms.Named(), NamedValue{"psiTotal", psi.Total})
	for _, nv := range values {
		if math.IsNaN(nv.Value) || math.IsInf(nv.Value, 0) || math.Abs(nv.Value) > parameter.PsiAnomalyLimit {
			out = append(out, nv)
		}
	}
	return out
}
