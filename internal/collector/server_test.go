package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const fullReport = `{
  "scan_timestamp": "2026-05-01T09:00:00Z",
  "system_info": {
    "system": {"hostname": "TEST-PC-01", "platform": "Windows", "platform_release": "10", "architecture": "AMD64"},
    "hardware": {"cpu": {"name": "Intel Core i7", "logical_cores": 8}, "memory": {"total_physical_memory_gb": 15.8}},
    "network": {"ip_address": "10.0.0.5", "mac_address": "aa:bb:cc:dd:ee:ff"},
    "bios": {"serial_number": "ABC123", "manufacturer": "Dell"}
  },
  "software_count": 2,
  "software_list": [
    {"name": "7-Zip", "version": "23.01", "vendor": "Igor Pavlov", "install_date": "2024-01-15", "update_date": null, "source": "registry"},
    {"name": "Zoom", "version": null, "vendor": null, "install_date": null, "update_date": null, "source": "wmic"}
  ]
}`

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(method, path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	s.Handler().ServeHTTP(w, req)
	return w
}

// =============================================================================
// POST /api/v1/agent/data
// =============================================================================

func TestAgentData_Success(t *testing.T) {
	s := New()
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	w := do(t, s, http.MethodPost, api.DataPath, fullReport)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var ack api.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "success", ack.Status)
	assert.Equal(t, "Agent data received successfully", ack.Message)
	assert.Equal(t, "2026-05-01T09:30:00Z", ack.ReceivedTimestamp)

	assert.Equal(t, int64(1), s.Received())
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.received))
}

func TestAgentData_InvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"garbage", "invalid json"},
		{"empty body", ""},
		{"wrong type for count", `{"software_count": "two"}`},
		{"list is not an array", `{"software_list": {"name": "x"}}`},
		{"top level array", `[1, 2, 3]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			w := do(t, s, http.MethodPost, api.DataPath, tt.body)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Invalid JSON data", resp.Error)
			assert.Equal(t, int64(0), s.Received())
			assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.rejected.WithLabelValues(reasonInvalidJSON)))
		})
	}
}

func TestAgentData_AcceptsPartialReports(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing hostname", `{"scan_timestamp": "2026-05-01T09:00:00Z", "system_info": {"system": {"platform": "Windows", "platform_release": "10"}}, "software_count": 0, "software_list": []}`},
		{"empty software list", `{"system_info": {"system": {"hostname": "TEST-PC-01"}}, "software_count": 0, "software_list": []}`},
		{"no system info", `{"software_count": 0}`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, New(), http.MethodPost, api.DataPath, tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			var ack api.Ack
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
			assert.Equal(t, "success", ack.Status)
		})
	}
}

func TestAgentData_WrongMethod(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			w := do(t, New(), method, api.DataPath, "")
			assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		})
	}
}

func TestAgentData_PanicReturnsInternalError(t *testing.T) {
	s := New()
	s.router.POST("/boom", func(*gin.Context) { panic("handler fault") })

	w := do(t, s, http.MethodPost, "/boom", "{}")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Internal server error", resp.Error)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.rejected.WithLabelValues(reasonPanic)))
}

// =============================================================================
// Health, root and metrics
// =============================================================================

func TestHealth_CountsAcceptedReports(t *testing.T) {
	s := New()

	var health api.HealthResponse
	w := do(t, s, http.MethodGet, api.HealthPath, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, int64(0), health.ReceivedReports)

	do(t, s, http.MethodPost, api.DataPath, fullReport)
	do(t, s, http.MethodPost, api.DataPath, "not json")
	do(t, s, http.MethodPost, api.DataPath, `{}`)

	w = do(t, s, http.MethodGet, api.HealthPath, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, int64(2), health.ReceivedReports)
}

func TestRoot(t *testing.T) {
	w := do(t, New(), http.MethodGet, api.RootPath, "")
	require.Equal(t, http.StatusOK, w.Code)

	var root api.RootResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &root))
	assert.Equal(t, "System Inventory Server is running", root.Message)
	assert.Equal(t, "POST /api/v1/agent/data", root.Endpoint)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New()
	do(t, s, http.MethodPost, api.DataPath, fullReport)

	w := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "inventory_collector_reports_received_total 1")
	assert.Contains(t, body, "inventory_collector_report_software_items_count 1")
}

func TestClientAgainstCollector(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	client := api.NewClient(srv.URL, api.WithUserAgent("inventory-agent/test"))
	ack, err := client.SendReport(ctx, json.RawMessage(fullReport))
	require.NoError(t, err)
	assert.Equal(t, "success", ack.Status)
	assert.NotEmpty(t, ack.RequestID)
	assert.Equal(t, int64(1), s.Received())
}

// =============================================================================
// Summary helpers
// =============================================================================

func TestPreviewLimitsItems(t *testing.T) {
	v := "1.0"
	items := make([]api.SoftwareItem, 8)
	for i := range items {
		items[i] = api.SoftwareItem{Name: "pkg", Version: &v}
	}
	items[0].Version = nil
	items[1].Name = ""

	got := preview(items)
	require.Len(t, got, previewItems)
	assert.Equal(t, "pkg [vUnknown]", got[0])
	assert.Equal(t, "Unknown [v1.0]", got[1])
}
