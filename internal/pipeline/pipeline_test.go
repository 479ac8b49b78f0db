package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPickDeviceRatePrefersHighestNotExceedingSource(t *testing.T) {
	require.Equal(t, 44100, pickDeviceRate(44100))
	require.Equal(t, 48000, pickDeviceRate(50000))
	require.Equal(t, 44100, pickDeviceRate(45000))
}

func TestPickDeviceRateFallsBackToLowestWhenSourceBelowAllCandidates(t *testing.T) {
	require.Equal(t, 44100, pickDeviceRate(8000))
}

func TestPickDeviceRateUsesHighestWhenSourceUnknown(t *testing.T) {
	require.Equal(t, candidateDeviceRates[0], pickDeviceRate(0))
}

func TestClampBufferSecondsCapsAndFloors(t *testing.T) {
	require.Equal(t, maxBufferSeconds, clampBufferSeconds(10))
	require.Equal(t, 1.0, clampBufferSeconds(0))
	require.Equal(t, 2.0, clampBufferSeconds(2))
}
