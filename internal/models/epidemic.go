package models

import (
	"fmt"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
)

// SIR is the Kermack-McKendrick model with frequency-dependent transmission:
//
//	dS/dt = -beta*S*I/N
//	dI/dt =  beta*S*I/N - gamma*I
//	dR/dt =  gamma*I
type SIR struct {
	Population float64
	Beta       float64
	Gamma      float64
}

func NewSIR(n, beta, gamma float64) (*SIR, error) {
	if err := check("N", n, positive); err != nil {
		return nil, err
	}
	if err := check("beta", beta, nonNegative); err != nil {
		return nil, err
	}
	if err := check("gamma", gamma, nonNegative); err != nil {
		return nil, err
	}
	return &SIR{Population: n, Beta: beta, Gamma: gamma}, nil
}

func (m *SIR) StateDim() int    { return 3 }
func (m *SIR) Labels() []string { return []string{"S", "I", "R"} }

func (m *SIR) Derive(x dynamo.State, t float64) dynamo.State {
	s, i := x[0], x[1]
	infection := m.Beta * s * i / m.Population
	recovery := m.Gamma * i
	return dynamo.State{-infection, infection - recovery, recovery}
}

// InitialState places i0 infected and r0 removed in the population and the
// remainder in S. A negative remainder is rejected.
func (m *SIR) InitialState(i0, r0 float64) (dynamo.State, error) {
	return splitPopulation(m.Population, i0, r0, "I0", "R0", 3, 1, 2)
}

func (m *SIR) GetParams() map[string]float64 {
	return map[string]float64{"N": m.Population, "beta": m.Beta, "gamma": m.Gamma}
}

func (m *SIR) SetParam(name string, value float64) error {
	switch name {
	case "N":
		return assign(&m.Population, name, value, positive)
	case "beta":
		return assign(&m.Beta, name, value, nonNegative)
	case "gamma":
		return assign(&m.Gamma, name, value, nonNegative)
	}
	return unknownParam(name)
}

// SEIR adds a latent compartment E entered at rate beta*S*I/N and left at
// rate sigma.
type SEIR struct {
	Population float64
	Beta       float64
	Sigma      float64
	Gamma      float64
}

func NewSEIR(n, beta, sigma, gamma float64) (*SEIR, error) {
	if err := check("N", n, positive); err != nil {
		return nil, err
	}
	if err := check("beta", beta, nonNegative); err != nil {
		return nil, err
	}
	if err := check("sigma", sigma, nonNegative); err != nil {
		return nil, err
	}
	if err := check("gamma", gamma, nonNegative); err != nil {
		return nil, err
	}
	return &SEIR{Population: n, Beta: beta, Sigma: sigma, Gamma: gamma}, nil
}

func (m *SEIR) StateDim() int    { return 4 }
func (m *SEIR) Labels() []string { return []string{"S", "E", "I", "R"} }

func (m *SEIR) Derive(x dynamo.State, t float64) dynamo.State {
	s, e, i := x[0], x[1], x[2]
	exposure := m.Beta * s * i / m.Population
	onset := m.Sigma * e
	recovery := m.Gamma * i
	return dynamo.State{-exposure, exposure - onset, onset - recovery, recovery}
}

// InitialState places e0 exposed and i0 infected, nobody removed.
func (m *SEIR) InitialState(e0, i0 float64) (dynamo.State, error) {
	return splitPopulation(m.Population, e0, i0, "E0", "I0", 4, 1, 2)
}

func (m *SEIR) GetParams() map[string]float64 {
	return map[string]float64{"N": m.Population, "beta": m.Beta, "sigma": m.Sigma, "gamma": m.Gamma}
}

func (m *SEIR) SetParam(name string, value float64) error {
	switch name {
	case "N":
		return assign(&m.Population, name, value, positive)
	case "beta":
		return assign(&m.Beta, name, value, nonNegative)
	case "sigma":
		return assign(&m.Sigma, name, value, nonNegative)
	case "gamma":
		return assign(&m.Gamma, name, value, nonNegative)
	}
	return unknownParam(name)
}

// Variant selects one of the social diffusion case studies. The dynamics are
// identical; only naming and defaults differ.
type Variant string

const (
	VariantEpidemic Variant = "epidemic"
	VariantRumor    Variant = "rumor"
	VariantPolicy   Variant = "policy"
)

var variantNames = map[Variant][3]string{
	VariantEpidemic: {"susceptible", "infected", "recovered"},
	VariantRumor:    {"ignorant", "spreader", "rational"},
	VariantPolicy:   {"susceptible", "influencer", "rejecter"},
}

func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if _, ok := variantNames[v]; !ok {
		return "", fmt.Errorf("%w: unknown diffusion variant %q (want epidemic, rumor or policy)", dynamo.ErrInvalidInput, s)
	}
	return v, nil
}

// Compartments returns the long names of S, I and R for this variant.
func (v Variant) Compartments() []string {
	names := variantNames[v]
	return names[:]
}

// Diffusion is an SIR-type spread with mass-action (un-normalized) contact:
//
//	dS/dt = -b*S*I
//	dI/dt =  b*S*I - k*I
//	dR/dt =  k*I
type Diffusion struct {
	Variant  Variant
	Contact  float64
	Recovery float64
}

func NewDiffusion(v Variant, b, k float64) (*Diffusion, error) {
	if _, ok := variantNames[v]; !ok {
		return nil, fmt.Errorf("%w: unknown diffusion variant %q", dynamo.ErrInvalidInput, v)
	}
	if err := check("b", b, nonNegative); err != nil {
		return nil, err
	}
	if err := check("k", k, nonNegative); err != nil {
		return nil, err
	}
	return &Diffusion{Variant: v, Contact: b, Recovery: k}, nil
}

func (m *Diffusion) StateDim() int    { return 3 }
func (m *Diffusion) Labels() []string { return []string{"S", "I", "R"} }

func (m *Diffusion) Derive(x dynamo.State, t float64) dynamo.State {
	s, i := x[0], x[1]
	contact := m.Contact * s * i
	recovery := m.Recovery * i
	return dynamo.State{-contact, contact - recovery, recovery}
}

func (m *Diffusion) InitialState(n, i0, r0 float64) (dynamo.State, error) {
	if err := check("N", n, positive); err != nil {
		return nil, err
	}
	return splitPopulation(n, i0, r0, "I0", "R0", 3, 1, 2)
}

func (m *Diffusion) GetParams() map[string]float64 {
	return map[string]float64{"b": m.Contact, "k": m.Recovery}
}

func (m *Diffusion) SetParam(name string, value float64) error {
	switch name {
	case "b":
		return assign(&m.Contact, name, value, nonNegative)
	case "k":
		return assign(&m.Recovery, name, value, nonNegative)
	}
	return unknownParam(name)
}

// splitPopulation builds a state of dim compartments with a at index ia, b at
// index ib and n-a-b in compartment 0.
func splitPopulation(n, a, b float64, nameA, nameB string, dim, ia, ib int) (dynamo.State, error) {
	if err := check(nameA, a, nonNegative); err != nil {
		return nil, err
	}
	if err := check(nameB, b, nonNegative); err != nil {
		return nil, err
	}
	s0 := n - a - b
	if s0 < 0 {
		return nil, &dynamo.InputError{Param: "S0", Value: s0, Reason: "must be >= 0 (initial compartments exceed N)"}
	}
	x := make(dynamo.State, dim)
	x[0] = s0
	x[ia] = a
	x[ib] = b
	return x, nil
}
