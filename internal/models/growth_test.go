package models_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Jason9-Alex/Lab-Modelos/internal/dynamo"
	"github.com/Jason9-Alex/Lab-Modelos/internal/models"
	"github.com/Jason9-Alex/Lab-Modelos/internal/sim"
)

var _ = Describe("Exponential", func() {
	It("allows a negative rate", func() {
		m, err := models.NewExponential(-0.2)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Derive(dynamo.State{10}, 0)[0]).To(BeNumerically("~", -2, 1e-12))
	})

	It("rejects a non-finite rate", func() {
		_, err := models.NewExponential(math.NaN())
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("agrees with numerical integration", func() {
		m, _ := models.NewExponential(0.03)
		grid, _ := dynamo.Linspace(100, 100)

		exact := m.Solve(grid, 100)
		res, err := sim.Solve(m, dynamo.State{100}, grid, sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		for i, v := range res.Trajectory.Series(0) {
			Expect(math.Abs(v-exact[i]) / exact[i]).To(BeNumerically("<", 1e-6))
		}
	})

	It("keeps an empty population at zero past overflow", func() {
		m, _ := models.NewExponential(1)
		Expect(m.Solve(dynamo.Grid{0, 1000}, 0)).To(Equal([]float64{0, 0}))
		Expect(math.IsInf(m.Solve(dynamo.Grid{1000}, 1)[0], 1)).To(BeTrue())
	})

	It("builds the linear comparison from the initial slope", func() {
		m, _ := models.NewExponential(0.03)
		line := m.Linear(dynamo.Grid{0, 10}, 100)
		Expect(line).To(Equal([]float64{100, 130}))
	})

	It("exposes and updates its parameters", func() {
		m, _ := models.NewExponential(0.1)
		Expect(m.GetParams()).To(HaveKeyWithValue("r", 0.1))
		Expect(m.SetParam("r", 0.5)).To(Succeed())
		Expect(m.Rate).To(Equal(0.5))
		Expect(m.SetParam("K", 1)).To(MatchError(dynamo.ErrInvalidInput))
	})
})

var _ = Describe("Logistic", func() {
	It("rejects a non-positive carrying capacity", func() {
		_, err := models.NewLogistic(0.04, 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))

		var ie *dynamo.InputError
		Expect(err).To(BeAssignableToTypeOf(ie))
		Expect(err.(*dynamo.InputError).Param).To(Equal("K"))
	})

	It("rejects a negative rate", func() {
		_, err := models.NewLogistic(-1, 750)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("has equilibria at 0 and K", func() {
		m, _ := models.NewLogistic(0.04, 750)
		Expect(m.Derive(dynamo.State{0}, 0)[0]).To(BeZero())
		Expect(m.Derive(dynamo.State{750}, 0)[0]).To(BeZero())
	})

	It("approaches K from above and below", func() {
		m, _ := models.NewLogistic(0.5, 750)
		grid, _ := dynamo.Linspace(100, 20)
		Expect(m.Solve(grid, 200)[19]).To(BeNumerically("~", 750, 1e-6))
		Expect(m.Solve(grid, 1500)[19]).To(BeNumerically("~", 750, 1e-6))
	})

	It("matches its own ODE", func() {
		m, _ := models.NewLogistic(0.04, 750)
		grid, _ := dynamo.Linspace(100, 20)
		exact := m.Solve(grid, 200)
		res, err := sim.Solve(m, dynamo.State{200}, grid, sim.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Trajectory.Final()[0]).To(BeNumerically("~", exact[19], 1e-5))
	})

	It("stays at K once the exponential overflows", func() {
		m, _ := models.NewLogistic(10, 750)
		Expect(m.Solve(dynamo.Grid{0, 1000}, 5)).To(Equal([]float64{5, 750}))
	})

	It("falls back to the bounded form when only the numerator overflows", func() {
		m, _ := models.NewLogistic(1, 1e150)
		out := m.Solve(dynamo.Grid{0, 200}, 1e100)
		Expect(out[0]).To(BeNumerically("~", 1e100, 1e86))
		Expect(out[1]).To(BeNumerically("~", 1e150, 1e136))
	})

	It("keeps the old value when SetParam fails", func() {
		m, _ := models.NewLogistic(0.04, 750)
		Expect(m.SetParam("K", -3)).To(MatchError(dynamo.ErrInvalidInput))
		Expect(m.Capacity).To(Equal(750.0))
	})
})

var _ = Describe("LogisticHarvest", func() {
	It("reports the maximum sustainable yield", func() {
		m, err := models.NewLogisticHarvest(0.5, 300, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.MaxSustainableYield()).To(BeNumerically("~", 37.5, 1e-12))
	})

	It("declines everywhere when h exceeds the yield", func() {
		m, _ := models.NewLogisticHarvest(0.5, 300, 40)
		for _, p := range []float64{0, 50, 150, 300} {
			Expect(m.Derive(dynamo.State{p}, 0)[0]).To(BeNumerically("<", 0))
		}
	})

	It("only harvests below zero", func() {
		m, _ := models.NewLogisticHarvest(0.5, 300, 40)
		Expect(m.Derive(dynamo.State{-500}, 0)[0]).To(Equal(-40.0))
	})

	It("rejects a negative harvest", func() {
		_, err := models.NewLogisticHarvest(0.5, 300, -1)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})
})

var _ = Describe("Allee", func() {
	var m *models.Allee

	BeforeEach(func() {
		var err error
		m, err = models.NewAllee(0.5, 300, 20)
		Expect(err).NotTo(HaveOccurred())
	})

	It("declines below the threshold and grows above it", func() {
		Expect(m.Derive(dynamo.State{10}, 0)[0]).To(BeNumerically("<", 0))
		Expect(m.Derive(dynamo.State{30}, 0)[0]).To(BeNumerically(">", 0))
		Expect(m.Derive(dynamo.State{20}, 0)[0]).To(BeZero())
	})

	It("requires a positive threshold", func() {
		_, err := models.NewAllee(0.5, 300, 0)
		Expect(err).To(MatchError(dynamo.ErrInvalidInput))
	})

	It("lists its parameters", func() {
		Expect(m.GetParams()).To(Equal(map[string]float64{"r": 0.5, "K": 300, "A": 20}))
	})
})
