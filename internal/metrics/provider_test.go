package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	t.Run("Success_Namespace", func(t *testing.T) {
		provider, err := NewProvider("piivault")

		require.NoError(t, err)
		assert.NotNil(t, provider.meterProvider)
		assert.NotNil(t, provider.exporter)
		assert.NotNil(t, provider.registry)
		assert.NotNil(t, provider.MeterProvider())
		assert.NotNil(t, provider.Handler())
	})

	t.Run("Success_RuntimeCollectors", func(t *testing.T) {
		provider, err := NewProvider("piivault", WithRuntimeCollectors())
		require.NoError(t, err)

		output := scrape(t, provider)
		assert.Contains(t, output, "go_goroutines")
	})

	t.Run("Error_DuplicateCollector", func(t *testing.T) {
		_, err := NewProvider("piivault", WithRuntimeCollectors(), WithRuntimeCollectors())
		assert.Error(t, err)
	})
}

func TestProvider_Shutdown(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		provider, err := NewProvider("piivault")
		require.NoError(t, err)
		assert.NoError(t, provider.Shutdown(context.Background()))
	})

	t.Run("Success_NilMeterProvider", func(t *testing.T) {
		provider := &Provider{}
		assert.NoError(t, provider.Shutdown(context.Background()))
	})
}
