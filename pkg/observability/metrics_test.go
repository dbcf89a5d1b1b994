package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsClient_Counters(t *testing.T) {
	client := NewMetricsClient().(*metricsClient)

	client.IncrementCounter("commits_total", 1)
	client.IncrementCounter("commits_total", 2)

	assert.Equal(t, float64(3), client.CounterValue("commits_total", nil))
}

func TestMetricsClient_CountersWithLabels(t *testing.T) {
	client := NewMetricsClient().(*metricsClient)

	client.IncrementCounterWithLabels("conflicts_total", 1, map[string]string{"verdict": "hard"})
	client.IncrementCounterWithLabels("conflicts_total", 1, map[string]string{"verdict": "mergeable"})
	client.IncrementCounterWithLabels("conflicts_total", 1, map[string]string{"verdict": "hard"})

	assert.Equal(t, float64(2), client.CounterValue("conflicts_total", map[string]string{"verdict": "hard"}))
	assert.Equal(t, float64(1), client.CounterValue("conflicts_total", map[string]string{"verdict": "mergeable"}))
}

func TestMetricsClient_Disabled(t *testing.T) {
	client := NewMetricsClientWithConfig(MetricsConfig{Enabled: false}).(*metricsClient)

	client.IncrementCounter("commits_total", 1)

	assert.Equal(t, float64(0), client.CounterValue("commits_total", nil))
}

func TestMetricsClient_Namespace(t *testing.T) {
	client := NewMetricsClientWithConfig(MetricsConfig{Enabled: true, Namespace: "easylaw"}).(*metricsClient)

	client.IncrementCounter("commits_total", 1)

	assert.Equal(t, float64(1), client.CounterValue("commits_total", nil))
}

func TestMetricsClient_StartTimer(t *testing.T) {
	client := NewMetricsClient().(*metricsClient)

	stop := client.StartTimer("update_duration_seconds", nil)
	time.Sleep(time.Millisecond)
	stop()

	assert.Equal(t, float64(1), client.CounterValue("update_duration_seconds_count", nil))
	assert.Greater(t, client.CounterValue("update_duration_seconds_sum", nil), float64(0))
}

func TestMetricsClient_RecordDatabaseOperation(t *testing.T) {
	client := NewMetricsClient().(*metricsClient)

	client.RecordDatabaseOperation("commit_case", true, 0.01)

	labels := map[string]string{"operation": "commit_case", "success": "true"}
	assert.Equal(t, float64(1), client.CounterValue("database_operations_total", labels))
}
