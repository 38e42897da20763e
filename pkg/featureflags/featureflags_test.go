package featureflags

import (
	"context"
	"testing"

	"padron-controlplane/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestUnconfiguredClientFallsBack(t *testing.T) {
	flags := ProvideFeatureFlag(FeatureParams{Config: &config.Config{}})
	ctx := context.Background()

	require.True(t, flags.IsEnabled(ctx, "derivar-categoria-b-sin-certificacion", true))
	require.False(t, flags.IsEnabled(ctx, "derivar-categoria-b-sin-certificacion", false))

	_, err := flags.Features(ctx, "operador-1")
	require.Error(t, err)

	_, err = flags.Flags(ctx, "operador-1")
	require.Error(t, err)
}
