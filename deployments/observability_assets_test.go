package deployments

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

func TestGrafanaDashboardJSONIsValid(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "grafana", "askdb_slo_dashboard.json")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dashboard file: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(content, &decoded); err != nil {
		t.Fatalf("dashboard JSON parse error: %v", err)
	}

	title, _ := decoded["title"].(string)
	if strings.TrimSpace(title) == "" {
		t.Fatal("dashboard title is required")
	}
	panels, ok := decoded["panels"].([]any)
	if !ok || len(panels) == 0 {
		t.Fatal("dashboard must include at least one panel")
	}
}

func TestPrometheusRulesContainExpectedAlerts(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "askdb_rules.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read rules file: %v", err)
	}
	text := string(content)

	requiredAlerts := []string{
		"AskDBHTTPErrorRateHigh",
		"AskDBLLMLatencyP95High",
		"AskDBPreviewLatencyP95High",
		"AskDBGenerationFailuresDetected",
		"AskDBSchemaEmpty",
		"AskDBArchiverStalled",
	}
	for _, alertName := range requiredAlerts {
		if !strings.Contains(text, "alert: "+alertName) {
			t.Fatalf("rules missing alert %q", alertName)
		}
	}

	requiredMetrics := []string{
		"askdb:slo_http_error_rate_5m",
		"askdb:slo_llm_latency_ms_p95",
		"askdb:slo_preview_duration_ms_p95",
		"askdb:slo_generation_failures_15m",
		"askdb:slo_history_archived_1h",
		"askdb_schema_tables",
	}
	for _, metricName := range requiredMetrics {
		matched, err := regexp.MatchString(regexp.QuoteMeta(metricName), text)
		if err != nil {
			t.Fatalf("regexp error for metric %q: %v", metricName, err)
		}
		if !matched {
			t.Fatalf("rules missing metric reference %q", metricName)
		}
	}
}

func TestPrometheusScrapeExampleContainsMetricsPathAndRules(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "prometheus-scrape.example.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read scrape example: %v", err)
	}
	text := string(content)

	if !strings.Contains(text, "metrics_path: /v1/metrics") {
		t.Fatal("scrape example missing askdb metrics path")
	}
	if !strings.Contains(text, "askdb_rules.yaml") {
		t.Fatal("scrape example missing askdb rule file reference")
	}
	if !strings.Contains(text, "askdb_recording_rules.yaml") {
		t.Fatal("scrape example missing askdb recording rule file reference")
	}
	if !strings.Contains(text, "job_name: askdb-api") {
		t.Fatal("scrape example missing askdb-api job")
	}
}

func TestPrometheusRecordingRulesContainExpectedRecords(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "prometheus", "askdb_recording_rules.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read recording rules file: %v", err)
	}
	text := string(content)

	requiredRecords := []string{
		"askdb:slo_http_error_rate_5m",
		"askdb:slo_http_latency_seconds_p95",
		"askdb:slo_llm_latency_ms_p95",
		"askdb:slo_preview_duration_ms_p95",
		"askdb:slo_generation_failures_15m",
		"askdb:slo_unsafe_queries_15m",
		"askdb:slo_preview_cache_hit_ratio_15m",
		"askdb:slo_history_archived_1h",
	}
	for _, recordName := range requiredRecords {
		if !strings.Contains(text, "record: "+recordName) {
			t.Fatalf("recording rules missing record %q", recordName)
		}
	}
}

func TestDashboardQueriesUseRecordedSeries(t *testing.T) {
	root := repoRoot(t)
	dashboard, err := os.ReadFile(filepath.Join(root, "deployments", "observability", "grafana", "askdb_slo_dashboard.json"))
	if err != nil {
		t.Fatalf("read dashboard file: %v", err)
	}
	recording, err := os.ReadFile(filepath.Join(root, "deployments", "observability", "prometheus", "askdb_recording_rules.yaml"))
	if err != nil {
		t.Fatalf("read recording rules file: %v", err)
	}

	recorded := regexp.MustCompile(`askdb:[a-z0-9_]+`)
	for _, name := range recorded.FindAllString(string(dashboard), -1) {
		if !strings.Contains(string(recording), "record: "+name) {
			t.Fatalf("dashboard references unrecorded series %q", name)
		}
	}
}

func TestAlertmanagerExampleContainsSeverityRouting(t *testing.T) {
	root := repoRoot(t)
	path := filepath.Join(root, "deployments", "observability", "alertmanager", "alertmanager.example.yaml")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read alertmanager example: %v", err)
	}
	text := string(content)

	requiredTokens := []string{
		"receiver: askdb-default",
		"severity=\"critical\"",
		"severity=\"warning\"",
		"name: askdb-critical",
		"name: askdb-warning",
		"inhibit_rules:",
		"group_by: [alertname, service, severity]",
	}
	for _, token := range requiredTokens {
		if !strings.Contains(text, token) {
			t.Fatalf("alertmanager example missing token %q", token)
		}
	}
}

func repoRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), ".."))
}
