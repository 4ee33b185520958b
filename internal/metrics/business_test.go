package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine checks that the Prometheus output contains a metric matching the
// given name, partial label pattern and value. The regex tolerates the OTel scope
// labels added by the exporter.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	pattern := name + `\{[^}]*` + labels + `[^}]*\} ` + value
	assert.Regexp(t, pattern, output)
}

func scrape(t *testing.T, provider *Provider) string {
	t.Helper()
	w := httptest.NewRecorder()
	provider.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("test_app")
	require.NoError(t, err)

	businessMetrics, err := NewBusinessMetrics(provider.MeterProvider(), "test_app")
	require.NoError(t, err)
	assert.NotNil(t, businessMetrics)
}

func TestBusinessMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("integration_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "integration_test")
	require.NoError(t, err)

	ctx := context.Background()
	bm.RecordOperation(ctx, "users", "user_register", "success")
	bm.RecordOperation(ctx, "users", "user_register", "success")
	bm.RecordOperation(ctx, "users", "user_register", "error")
	bm.RecordOperation(ctx, "fieldcrypt", "migrate_fields", "success")
	bm.RecordDuration(ctx, "users", "user_register", 50*time.Millisecond, "success")
	bm.RecordDuration(ctx, "users", "user_register", 60*time.Millisecond, "success")
	bm.RecordDuration(ctx, "fieldcrypt", "migrate_fields", 2*time.Second, "success")

	output := scrape(t, provider)

	assertMetricLine(t, output, `integration_test_operations_total`,
		`domain="users".*operation="user_register".*status="success"`, `2`)
	assertMetricLine(t, output, `integration_test_operations_total`,
		`domain="users".*operation="user_register".*status="error"`, `1`)
	assertMetricLine(t, output, `integration_test_operations_total`,
		`domain="fieldcrypt".*operation="migrate_fields".*status="success"`, `1`)
	assertMetricLine(t, output, `integration_test_operation_duration_seconds_count`,
		`domain="users".*operation="user_register".*status="success"`, `2`)
	assertMetricLine(t, output, `integration_test_operation_duration_seconds_sum`,
		`domain="fieldcrypt".*operation="migrate_fields".*status="success"`, `2`)
}

func TestFieldMetrics_Integration(t *testing.T) {
	provider, err := NewProvider("field_test")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	fm, err := NewFieldMetrics(provider.MeterProvider(), "field_test")
	require.NoError(t, err)

	ctx := context.Background()
	fm.RecordDocuments(ctx, "users", "migrate_fields", "written", 40)
	fm.RecordDocuments(ctx, "users", "migrate_fields", "written", 2)
	fm.RecordDocuments(ctx, "users", "migrate_fields", "failed", 0)
	fm.RecordFindings(ctx, "users", "plaintext_at_rest", 3)
	fm.RecordFindings(ctx, "users", "stale_hash", 0)

	output := scrape(t, provider)

	assertMetricLine(t, output, `field_test_field_documents_total`,
		`entity="users".*operation="migrate_fields".*outcome="written"`, `42`)
	assertMetricLine(t, output, `field_test_field_findings_total`,
		`category="plaintext_at_rest".*entity="users"`, `3`)
	assert.NotContains(t, output, `outcome="failed"`)
	assert.NotContains(t, output, `category="stale_hash"`)
}

func TestNoOpMetrics(t *testing.T) {
	ctx := context.Background()

	assert.NotPanics(t, func() {
		bm := NewNoOpBusinessMetrics()
		bm.RecordOperation(ctx, "users", "user_get", "error")
		bm.RecordDuration(ctx, "users", "user_get", time.Millisecond, "error")

		fm := NewNoOpFieldMetrics()
		fm.RecordDocuments(ctx, "users", "migrate_fields", "written", 1)
		fm.RecordFindings(ctx, "users", "stale_hash", 1)
	})
}
