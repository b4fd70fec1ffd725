package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProviderRequiresConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing project", Config{HighTopic: "crawl-high", LowTopic: "crawl-low"}},
		{"missing high topic", Config{ProjectID: "atlas-prod", LowTopic: "crawl-low"}},
		{"missing low topic", Config{ProjectID: "atlas-prod", HighTopic: "crawl-high"}},
		{"empty", Config{}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			provider, err := NewProvider(context.Background(), tc.cfg, zap.NewNop())
			require.Error(t, err)
			require.Nil(t, provider)
			require.Contains(t, err.Error(), "requires")
		})
	}
}
