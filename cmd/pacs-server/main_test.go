package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/kingprasham/dicom-c-sub004/internal/config"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/db"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/metrics"
	"github.com/kingprasham/dicom-c-sub004/internal/platform/orthanc"
)

const usTags = `{
	"0008,0060": {"Name": "Modality", "Type": "String", "Value": "US"},
	"0008,1030": {"Name": "StudyDescription", "Type": "String", "Value": "OB Scan"},
	"0020,4000": {"Name": "ImageComments", "Type": "String", "Value": "HC 45.2 mm"}
}`

func fakeOrthanc(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/instances/us-1/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(usTags))
	})
	mux.HandleFunc("/system", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Name":"Orthanc","Version":"1.12.1","DicomAet":"ORTHANC","ApiVersion":22}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(orthancURL string) *config.Config {
	return &config.Config{
		Env:                   "test",
		OrthancURL:            orthancURL,
		OrthancTimeoutSeconds: 5,
		ExtractConcurrency:    2,
		MaxContentDepth:       32,
		StoreDriver:           config.StoreNone,
		CORSOrigins:           []string{"*"},
		RequestTimeoutSeconds: 5,
		BodyLimit:             "1M",
	}
}

func TestRunExtract_Single(t *testing.T) {
	srv := fakeOrthanc(t)
	cfg := testConfig(srv.URL)
	x := newExtractor(cfg, newOrthancClient(cfg, nil), zerolog.Nop(), nil)

	var out bytes.Buffer
	if err := runExtract(context.Background(), x, &out, []string{"us-1"}, "", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON %q: %v", out.String(), err)
	}
	if body["success"] != true || body["instanceId"] != "us-1" || body["modality"] != "US" {
		t.Errorf("unexpected result %v", body)
	}
	ms, _ := body["measurements"].([]interface{})
	if len(ms) == 0 {
		t.Error("expected at least one measurement from image comments")
	}
}

func TestRunExtract_BatchPretty(t *testing.T) {
	srv := fakeOrthanc(t)
	cfg := testConfig(srv.URL)
	x := newExtractor(cfg, newOrthancClient(cfg, nil), zerolog.Nop(), nil)

	var out bytes.Buffer
	if err := runExtract(context.Background(), x, &out, []string{"us-1", "gone"}, "", true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "\n  \"results\"") {
		t.Errorf("expected indented output, got %q", out.String())
	}

	var body struct {
		Success bool                              `json:"success"`
		Results map[string]map[string]interface{} `json:"results"`
	}
	if err := json.Unmarshal(out.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !body.Success || len(body.Results) != 2 {
		t.Fatalf("unexpected batch %+v", body)
	}
	if body.Results["gone"]["success"] != false {
		t.Errorf("expected missing instance to fail, got %v", body.Results["gone"])
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) (*orthanc.SystemInfo, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &orthanc.SystemInfo{Name: "Orthanc", Version: "1.12.1"}, nil
}

func newTestServer(t *testing.T, pinger orthancPinger) (*echo.Echo, *metrics.Metrics) {
	t.Helper()
	srv := fakeOrthanc(t)
	cfg := testConfig(srv.URL)
	m := metrics.NewMetrics(prometheus.NewRegistry())
	x := newExtractor(cfg, newOrthancClient(cfg, m), zerolog.Nop(), m)
	e := newServer(cfg, zerolog.Nop(), serverDeps{extractor: x, orthanc: pinger, metrics: m})
	return e, m
}

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	e, _ := newTestServer(t, stubPinger{})

	rec := get(e, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	if rec := get(e, "/health/orthanc"); rec.Code != http.StatusOK {
		t.Errorf("expected healthy orthanc, got %d", rec.Code)
	}
	if rec := get(e, "/health/db"); rec.Code != http.StatusNotFound {
		t.Errorf("expected no db health route without a store, got %d", rec.Code)
	}
}

func TestServer_OrthancUnhealthy(t *testing.T) {
	e, _ := newTestServer(t, stubPinger{err: errors.New("connection refused")})

	rec := get(e, "/health/orthanc")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("expected error in body, got %s", rec.Body.String())
	}
}

func TestServer_ExtractAndMetrics(t *testing.T) {
	e, _ := newTestServer(t, stubPinger{})

	rec := get(e, "/api/v1/measurements/extract?instanceId=us-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Errorf("expected successful extraction, got %s", rec.Body.String())
	}

	rec = get(e, "/api/v1/measurements/extract")
	if !strings.Contains(rec.Body.String(), "Instance ID required") {
		t.Errorf("expected missing id message, got %s", rec.Body.String())
	}

	rec = get(e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
	for _, name := range []string{"pacs_extractions_total", "pacs_orthanc_requests_total", "pacs_http_requests_total"} {
		if !strings.Contains(rec.Body.String(), name) {
			t.Errorf("expected %s in metrics output", name)
		}
	}
}

func TestServer_RejectsTraversalInInstanceID(t *testing.T) {
	e, _ := newTestServer(t, stubPinger{})
	rec := get(e, "/api/v1/measurements/extract?instanceId=..%2Fsystem")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestNewLogger_Production(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("production", &buf)
	logger.Info().Str("k", "v").Msg("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q", buf.String())
	}
	if entry["message"] != "hello" || entry["k"] != "v" || entry["time"] == nil {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNewLogger_Development(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger("development", &buf)
	logger.Info().Msg("hello")
	if json.Valid(buf.Bytes()) {
		t.Error("expected console output in development")
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestOpenStore_None(t *testing.T) {
	st, err := openStore(context.Background(), testConfig("http://localhost:8042"), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer st.Close()
	if st.repo != nil || st.health != nil {
		t.Errorf("expected empty store, got %+v", st)
	}
}

func TestPrintStatuses(t *testing.T) {
	applied := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var out bytes.Buffer
	printStatuses(&out, "public", []db.MigrationStatus{
		{Version: 1, Name: "measurement_extractions", Applied: true, AppliedAt: &applied},
		{Version: 2, Name: "later"},
	})

	s := out.String()
	if !strings.Contains(s, "Migration status for schema: public") {
		t.Errorf("missing header in %q", s)
	}
	if !strings.Contains(s, "applied    2024-03-01 12:00:00") {
		t.Errorf("missing applied row in %q", s)
	}
	if !strings.Contains(s, "pending") {
		t.Errorf("missing pending row in %q", s)
	}
}
