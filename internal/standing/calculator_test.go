package standing

import (
	"math"
	"testing"

	dErrors "civictrust/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type CalculatorSuite struct {
	suite.Suite
	calc *Calculator
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

func (s *CalculatorSuite) SetupTest() {
	s.calc = NewCalculator(nil)
}

func (s *CalculatorSuite) TestDefaultWeights() {
	cases := []struct {
		impact ImpactType
		want   int
	}{
		{ImpactComplaintVerified, 50},
		{ImpactSupportReceived, 5},
		{ImpactSupportGiven, 1},
		{ImpactSeniorityMilestone, 10},
		{ImpactEntropyDetected, -100},
		{ImpactFakeNewsConfirmed, -500},
	}
	for _, tc := range cases {
		s.Run(string(tc.impact), func() {
			s.Equal(tc.want, s.calc.ApplyImpact(0, tc.impact, 1))
		})
	}
}

func (s *CalculatorSuite) TestSaturation() {
	s.Run("upper bound from 9990", func() {
		s.Equal(10000, s.calc.ApplyImpact(9990, ImpactComplaintVerified, 1))
	})
	s.Run("lower bound from -990", func() {
		s.Equal(-1000, s.calc.ApplyImpact(-990, ImpactFakeNewsConfirmed, 1))
	})
	s.Run("already at upper bound", func() {
		res := s.calc.Apply(10000, ImpactEvent{Type: ImpactSupportGiven, NeuralMultiplier: 1})
		s.Equal(10000, res.Score)
		s.Equal(0, res.Delta)
		s.True(res.Saturated)
	})
	s.Run("large multiplier", func() {
		s.Equal(10000, s.calc.ApplyImpact(0, ImpactComplaintVerified, 1e9))
		s.Equal(-1000, s.calc.ApplyImpact(0, ImpactFakeNewsConfirmed, 1e9))
	})
}

func (s *CalculatorSuite) TestMultiplierScalingAndRounding() {
	s.Equal(75, s.calc.ApplyImpact(0, ImpactComplaintVerified, 1.5))
	s.Equal(3, s.calc.ApplyImpact(0, ImpactSupportReceived, 0.5), "2.5 rounds half away from zero")
	s.Equal(-13, s.calc.ApplyImpact(0, ImpactEntropyDetected, 0.125))
	s.Equal(100, s.calc.ApplyImpact(100, ImpactComplaintVerified, 0))
}

func (s *CalculatorSuite) TestMalformedMultipliersFailClosed() {
	s.Equal(100, s.calc.ApplyImpact(100, ImpactComplaintVerified, math.NaN()))
	s.Equal(100, s.calc.ApplyImpact(100, ImpactComplaintVerified, -2))
	s.Equal(MaxScore, s.calc.ApplyImpact(100, ImpactComplaintVerified, math.Inf(1)))
	s.Equal(MinScore, s.calc.ApplyImpact(100, ImpactFakeNewsConfirmed, math.Inf(1)))
}

func (s *CalculatorSuite) TestUnknownImpactType() {
	s.Run("lenient mode is a no-op with a gap", func() {
		res := s.calc.Apply(42, ImpactEvent{Type: "UNHEARD_OF", NeuralMultiplier: 3})
		s.Equal(42, res.Score)
		s.True(res.Gap)
	})
	s.Run("strict mode reports a configuration gap", func() {
		score, err := s.calc.ApplyImpactStrict(42, "UNHEARD_OF", 3)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConfigurationGap))
		s.Equal(42, score)
	})
}

func (s *CalculatorSuite) TestResultIsAlwaysBounded() {
	for _, current := range []int{-5000, -1000, -1, 0, 1, 9999, 10000, 50000} {
		for _, impact := range s.calc.Registry().Types() {
			for _, m := range []float64{0, 0.3, 1, 7, 1e6} {
				got := s.calc.ApplyImpact(current, impact, m)
				s.GreaterOrEqual(got, MinScore)
				s.LessOrEqual(got, MaxScore)
			}
		}
	}
}

func TestNewImpactEvent(t *testing.T) {
	_, err := NewImpactEvent(ImpactSupportGiven, 1)
	require.NoError(t, err)

	for _, m := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := NewImpactEvent(ImpactSupportGiven, m)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	}

	_, err = NewImpactEvent("", 1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	t.Run("register extends the table", func(t *testing.T) {
		require.NoError(t, reg.Register("petition_delivered", 25))
		w, ok := reg.Weight("PETITION_DELIVERED")
		require.True(t, ok)
		assert.Equal(t, 25, w)
		assert.Equal(t, 125, NewCalculator(reg).ApplyImpact(100, "PETITION_DELIVERED", 1))
	})

	t.Run("parse is case-insensitive", func(t *testing.T) {
		got, err := reg.Parse(" complaint_verified ")
		require.NoError(t, err)
		assert.Equal(t, ImpactComplaintVerified, got)
	})

	t.Run("parse unknown is a configuration gap", func(t *testing.T) {
		_, err := reg.Parse("MYSTERY")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConfigurationGap))
	})

	t.Run("empty type rejected", func(t *testing.T) {
		assert.Error(t, reg.Register("  ", 1))
	})

	t.Run("registries are independent", func(t *testing.T) {
		_, ok := NewRegistry().Weight("PETITION_DELIVERED")
		assert.False(t, ok)
	})
}
