package models_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/models"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

var _ = Describe("SIR", func() {
	var m *models.SIR

	BeforeEach(func() {
		var err error
		m, err = models.NewSIR(1000, 0.4, 0.1)
		Expect(err).NotTo(HaveOccurred())
	})

	It("splits the population into compartments", func() {
		x, err := m.InitialState(2, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(x).To(Equal(dynamo.State{998, 2, 0}))
	})

	It("rejects more infected than people", func() {
		_, err := m.InitialState(1200, 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("has derivatives summing to zero", func() {
		dx := m.Derive(dynamo.State{600, 300, 100}, 0)
		Expect(dx.Sum()).To(BeNumerically("~", 0, 1e-12))
	})

	It("conserves N and never grows S", func() {
		x0, _ := m.InitialState(2, 0)
		grid, _ := dynamo.Linspace(160, 300)
		res, err := sim.Solve(m, x0, grid, sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		s := res.Trajectory.Series(0)
		for k, x := range res.Trajectory.States {
			Expect(math.Abs(x.Sum()-1000) / 1000).To(BeNumerically("<", 1e-3))
			if k > 0 {
				Expect(s[k]).To(BeNumerically("<=", s[k-1]+1e-6))
			}
		}
	})

	It("requires a positive population", func() {
		_, err := models.NewSIR(0, 0.4, 0.1)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})
})

var _ = Describe("SEIR", func() {
	It("moves people through E before I", func() {
		m, err := models.NewSEIR(1000, 0.5, 0.2, 0.1)
		Expect(err).NotTo(HaveOccurred())
		x0, err := m.InitialState(5, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(x0).To(Equal(dynamo.State{993, 5, 2, 0}))

		dx := m.Derive(x0, 0)
		Expect(dx[0]).To(BeNumerically("<", 0))
		Expect(dx.Sum()).To(BeNumerically("~", 0, 1e-12))
	})

	It("conserves N over a run", func() {
		m, _ := models.NewSEIR(1000, 0.5, 0.2, 0.1)
		x0, _ := m.InitialState(5, 2)
		grid, _ := dynamo.Linspace(160, 300)
		res, err := sim.Solve(m, x0, grid, sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Final().Sum()).To(BeNumerically("~", 1000, 1))
	})

	It("rejects a negative incubation rate", func() {
		_, err := models.NewSEIR(1000, 0.5, -0.2, 0.1)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})
})

var _ = Describe("Diffusion", func() {
	It("parses the three case studies", func() {
		for _, name := range []string{"epidemic", "rumor", "policy"} {
			v, err := models.ParseVariant(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Compartments()).To(HaveLen(3))
		}
		_, err := models.ParseVariant("zombie")
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("names the rumor compartments", func() {
		Expect(models.VariantRumor.Compartments()).To(Equal([]string{"ignorant", "spreader", "rational"}))
	})

	It("handles rates many orders of magnitude apart", func() {
		m, err := models.NewDiffusion(models.VariantPolicy, 0.00005, 0.00002)
		Expect(err).NotTo(HaveOccurred())
		x0, err := m.InitialState(10050, 50, 0)
		Expect(err).NotTo(HaveOccurred())

		grid, _ := dynamo.Linspace(100, 200)
		res, err := sim.Solve(m, x0, grid, sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Final().Sum()).To(BeNumerically("~", 10050, 1e-2))
	})

	It("starts the rumor with rational listeners", func() {
		m, _ := models.NewDiffusion(models.VariantRumor, 0.004, 0.01)
		x0, err := m.InitialState(275, 1, 8)
		Expect(err).NotTo(HaveOccurred())
		Expect(x0).To(Equal(dynamo.State{266, 1, 8}))
	})

	It("updates rates through SetParam", func() {
		m, _ := models.NewDiffusion(models.VariantEpidemic, 0.0001401, 0.4)
		Expect(m.SetParam("b", 0.0002)).To(Succeed())
		Expect(m.GetParams()).To(HaveKeyWithValue("b", 0.0002))
		Expect(m.SetParam("beta", 1)).To(MatchError(dynamo.ErrInvalidInput))
	})
})
