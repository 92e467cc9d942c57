package gmm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distmv"
)

func squareSamples() [][]float64 {
	return [][]float64{{0, 0}, {2, 0}, {0, 2}, {2, 2}, {1, 1}}
}

func TestComponentFitMeanAndCovariance(t *testing.T) {
	c := NewComponent(2, DefaultRegularization)
	cond := c.Fit(squareSamples())

	assert.Equal(t, Regular, cond)
	assert.Equal(t, 5, c.Count())
	assert.InDeltaSlice(t, []float64{1, 1}, c.Mean(), 1e-12)

	cov := c.Covariance()
	assert.InDelta(t, 0.8, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 0.8, cov.At(1, 1), 1e-12)
	assert.InDelta(t, 0.0, cov.At(0, 1), 1e-12)
	assert.InDelta(t, 0.64, c.Det(), 1e-9)
}

func TestComponentDensityMatchesDistmv(t *testing.T) {
	src := rand.NewSource(7)
	rng := rand.New(src)
	samples := make([][]float64, 400)
	for i := range samples {
		a, b, d := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		samples[i] = []float64{120 + 10*a, 60 + 4*a + 6*b, 200 + 3*d}
	}

	c := NewComponent(3, DefaultRegularization)
	require.Equal(t, Regular, c.Fit(samples))

	normal, ok := distmv.NewNormal(c.Mean(), c.Covariance(), nil)
	require.True(t, ok)

	for _, x := range [][]float64{{120, 60, 200}, {100, 70, 190}, {140, 40, 205}} {
		assert.InDelta(t, normal.LogProb(x), c.LogDensity(x), 1e-9)
		assert.InDelta(t, normal.Prob(x), c.Density(x), 1e-12)
	}
}

func TestComponentDensityIntegratesToOne(t *testing.T) {
	c := NewComponent(2, DefaultRegularization)
	require.Equal(t, Regular, c.Fit(squareSamples()))

	const step = 0.05
	var total float64
	for x := -6.0; x <= 8.0; x += step {
		for y := -6.0; y <= 8.0; y += step {
			total += c.Density([]float64{x, y})
		}
	}
	assert.InDelta(t, 1.0, total*step*step, 1e-3)
}

func TestComponentScaledLogDensity(t *testing.T) {
	c := NewComponent(2, DefaultRegularization)
	c.Fit(squareSamples())

	assert.InDelta(t, 0.0, c.ScaledLogDensity([]float64{1, 1}), 1e-12)
	// (x-mean) = (0.8, 0): 0.5 * 0.64 / 0.8
	assert.InDelta(t, 0.4, c.ScaledLogDensity([]float64{1.8, 1}), 1e-12)
}

func TestComponentDegenerateSamples(t *testing.T) {
	t.Run("single sample", func(t *testing.T) {
		c := NewComponent(3, 0.5)
		cond := c.Fit([][]float64{{10, 20, 30}})
		assert.Equal(t, Regularized, cond)
		assert.InDeltaSlice(t, []float64{10, 20, 30}, c.Mean(), 1e-12)
		assert.InDelta(t, 3*math.Log(0.5), c.LogDet(), 1e-9)
	})

	t.Run("identical samples", func(t *testing.T) {
		c := NewComponent(3, DefaultRegularization)
		cond := c.Fit([][]float64{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}, {5, 5, 5}, {5, 5, 5}})
		assert.Equal(t, Regularized, cond)
		assert.False(t, math.IsInf(c.LogDet(), 0))
		assert.False(t, math.IsNaN(c.ScaledLogDensity([]float64{6, 5, 5})))
	})

	t.Run("collinear samples", func(t *testing.T) {
		c := NewComponent(3, DefaultRegularization)
		samples := make([][]float64, 10)
		for i := range samples {
			v := float64(i)
			samples[i] = []float64{v, 2 * v, 3 * v}
		}
		assert.Equal(t, Regularized, c.Fit(samples))
		assert.Greater(t, c.Det(), 0.0)
	})

	t.Run("no samples keeps parameters", func(t *testing.T) {
		c := NewComponent(2, DefaultRegularization)
		c.Fit(squareSamples())
		assert.Equal(t, Empty, c.Fit(nil))
		assert.InDeltaSlice(t, []float64{1, 1}, c.Mean(), 1e-12)
		assert.Equal(t, 0, c.Count())
	})
}

func TestStatsMergeMatchesSerial(t *testing.T) {
	samples := squareSamples()
	serial := NewStats(2)
	for _, s := range samples {
		serial.Add(s)
	}

	a, b := NewStats(2), NewStats(2)
	for i, s := range samples {
		if i%2 == 0 {
			a.Add(s)
		} else {
			b.Add(s)
		}
	}
	merged := MergeSets(1, 2, [][]*Stats{{a}, {b}})[0]

	assert.Equal(t, serial.Count, merged.Count)
	assert.InDeltaSlice(t, serial.Sum, merged.Sum, 1e-12)
	assert.InDeltaSlice(t, serial.Prod, merged.Prod, 1e-12)
}

func TestKMeansSeparatesClusters(t *testing.T) {
	var samples [][]float64
	for i := 0; i < 20; i++ {
		d := float64(i%3) - 1
		samples = append(samples, []float64{10 + d, 10 - d, 10})
		samples = append(samples, []float64{200 + d, 200, 200 - d})
	}

	km := &KMeans{K: 2, Src: rand.NewSource(3)}
	labels, centers := km.Cluster(samples)
	require.Len(t, centers, 2)

	for i := 0; i < len(samples); i += 2 {
		assert.Equal(t, labels[0], labels[i])
		assert.Equal(t, labels[1], labels[i+1])
	}
	assert.NotEqual(t, labels[0], labels[1])
}

func TestKMeansIdenticalSamples(t *testing.T) {
	samples := make([][]float64, 8)
	for i := range samples {
		samples[i] = []float64{42, 42, 42}
	}
	km := &KMeans{K: 5}
	labels, centers := km.Cluster(samples)

	assert.Len(t, centers, 5)
	for _, l := range labels {
		assert.Equal(t, 0, l)
	}
}

func TestMixtureInitialize(t *testing.T) {
	t.Run("empty samples", func(t *testing.T) {
		m := NewMixture(5, 3)
		_, err := m.Initialize(nil)
		assert.ErrorIs(t, err, ErrNoSamples)
		assert.False(t, m.Ready())
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		m := NewMixture(2, 3)
		_, err := m.Initialize([][]float64{{1, 2}})
		assert.ErrorIs(t, err, ErrDimension)
	})

	t.Run("two clusters", func(t *testing.T) {
		var samples [][]float64
		for i := 0; i < 30; i++ {
			d := float64(i%5) - 2
			samples = append(samples, []float64{20 + d, 30, 40 - d})
		}
		for i := 0; i < 10; i++ {
			d := float64(i%5) - 2
			samples = append(samples, []float64{220, 210 + d, 200 - d})
		}

		m := NewMixture(2, 3, WithSource(rand.NewSource(11)))
		_, err := m.Initialize(samples)
		require.NoError(t, err)
		require.True(t, m.Ready())

		weights := m.Weights()
		assert.InDelta(t, 1.0, weights[0]+weights[1], 1e-12)

		dark := m.BestComponent([]float64{20, 30, 40})
		light := m.BestComponent([]float64{220, 210, 200})
		assert.NotEqual(t, dark, light)
		assert.InDelta(t, 0.75, m.Weight(dark), 1e-12)
		assert.InDelta(t, 0.25, m.Weight(light), 1e-12)
	})

	t.Run("more components than distinct colours", func(t *testing.T) {
		samples := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
		m := NewMixture(5, 3)
		report, err := m.Initialize(samples)
		require.NoError(t, err)

		assert.Equal(t, 4, report.Count(Empty))
		assert.InDelta(t, 1.0, m.Weight(0), 1e-12)
		assert.Equal(t, 0, m.BestComponent([]float64{100, 100, 100}))
	})
}

func TestMixtureBestComponentTieBreaksLowestIndex(t *testing.T) {
	m := NewMixture(3, 2)
	_, err := m.Refit(
		[][]float64{{0, 0}, {0, 0}, {0, 0}},
		[]int{0, 1, 2},
	)
	require.NoError(t, err)
	assert.Equal(t, 0, m.BestComponent([]float64{0, 0}))
}

func TestMixtureRefit(t *testing.T) {
	samples := [][]float64{{0, 0}, {1, 0}, {10, 10}, {11, 10}, {10, 11}}
	m := NewMixture(2, 2)
	_, err := m.Refit(samples, []int{0, 0, 1, 1, 1})
	require.NoError(t, err)

	assert.InDelta(t, 0.4, m.Weight(0), 1e-12)
	assert.InDelta(t, 0.6, m.Weight(1), 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0}, m.Component(0).Mean(), 1e-12)

	x := []float64{5, 5}
	want := 0.4*m.Component(0).Density(x) + 0.6*m.Component(1).Density(x)
	assert.InDelta(t, want, m.MixtureDensity(x), 1e-15)

	_, err = m.Refit(samples, []int{-1, -1, -1, -1, -1})
	assert.ErrorIs(t, err, ErrNoSamples)
	assert.InDelta(t, 0.4, m.Weight(0), 1e-12, "weights survive an empty refit")

	_, err = m.Refit(samples, []int{0})
	assert.Error(t, err)
}
