package system

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNowIsUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	now := clk.Now()
	require.Equal(t, time.UTC, now.Location())
}

func TestNowAdvances(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	time.Sleep(5 * time.Millisecond)
	second := clk.Now()
	require.True(t, second.After(first))
}
