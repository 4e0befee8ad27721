package collector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIncreaseBatchSizeGrowsAndSaturates(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{6, 8},
		{8, 10},
		{10, 13},
		{13, 17},
		{17, 22},
		{22, 28},
		{28, 35},
		{35, 44},
		{44, 55},
		{55, 69},
		{69, 87},
		{87, 100},
		{100, 100},
		{200, 100},
	}
	for _, c := range cases {
		require.Equal(t, c.want, increaseBatchSize(c.in), "increaseBatchSize(%d)", c.in)
	}
}

func TestReduceBatchSizeHalvesAndFloors(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{100, 50},
		{50, 25},
		{25, 13},
		{2, 2},
		{1, 2},
	}
	for _, c := range cases {
		require.Equal(t, c.want, reduceBatchSize(c.in), "reduceBatchSize(%d)", c.in)
	}
}
