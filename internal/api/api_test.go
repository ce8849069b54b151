package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/projectdiscovery/netscan/pkg/peerdiscovery/pingsweep"
	"github.com/projectdiscovery/netscan/pkg/registry"
	"github.com/projectdiscovery/netscan/pkg/scanner"
	"github.com/projectdiscovery/netscan/pkg/types"
	"github.com/tidwall/gjson"
)

type staticFingerprinter struct{}

func (staticFingerprinter) Resolve(context.Context, netip.Addr) types.DeviceFingerprint {
	return types.DeviceFingerprint{
		Hostname:   types.Unknown,
		MACAddress: types.Unknown,
		Vendor:     types.Unknown,
		DeviceType: "Generic Device",
	}
}

func newTestServer(prober pingsweep.Prober) (*Server, *scanner.Service) {
	options := scanner.DefaultOptions()
	options.ProbeConcurrency = 8
	coordinator := scanner.NewCoordinator(prober, staticFingerprinter{}, scanner.NewStatus(), registry.New(), options)
	service := scanner.NewService(context.Background(), coordinator)
	return NewServer(service), service
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func alive(addrs ...string) pingsweep.Prober {
	set := make(map[string]bool)
	for _, addr := range addrs {
		set[addr] = true
	}
	return pingsweep.ProberFunc(func(_ context.Context, addr netip.Addr, _ time.Duration) bool {
		return set[addr.String()]
	})
}

func TestScanLifecycle(t *testing.T) {
	s, service := newTestServer(alive("10.0.0.1", "10.0.0.4"))

	w := do(t, s, http.MethodPost, "/api/scan", `{"network":"10.0.0.0/29"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/scan = %d: %s", w.Code, w.Body)
	}
	if got := gjson.Get(w.Body.String(), "data.network").String(); got != "10.0.0.0/29" {
		t.Errorf("data.network = %q", got)
	}
	service.Wait()

	w = do(t, s, http.MethodGet, "/api/status", "")
	status := gjson.Get(w.Body.String(), "data")
	if status.Get("running").Bool() || status.Get("progress").Int() != 100 || status.Get("found_hosts").Int() != 2 {
		t.Errorf("status = %s", status.Raw)
	}
	if !status.Get("current_scan").Exists() || status.Get("current_scan").Type != gjson.Null {
		t.Errorf("current_scan should be null after the scan: %s", status.Raw)
	}

	w = do(t, s, http.MethodGet, "/api/results", "")
	results := gjson.Get(w.Body.String(), "data")
	if len(results.Array()) != 1 {
		t.Fatalf("results = %s", results.Raw)
	}
	if results.Get("0.total_scanned").Int() != 6 || results.Get("0.hosts.#").Int() != 2 {
		t.Errorf("unexpected record %s", results.Get("0").Raw)
	}

	w = do(t, s, http.MethodGet, "/api/results/1", "")
	if w.Code != http.StatusOK || gjson.Get(w.Body.String(), "data.hosts.0.ip").String() != "10.0.0.1" {
		t.Errorf("GET /api/results/1 = %d: %s", w.Code, w.Body)
	}

	w = do(t, s, http.MethodGet, "/api/export/1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/export/1 = %d", w.Code)
	}
	if got := w.Header().Get("Content-Disposition"); got != "attachment; filename=netscan_1.json" {
		t.Errorf("Content-Disposition = %q", got)
	}
	var exported types.ScanRecord
	if err := json.Unmarshal(w.Body.Bytes(), &exported); err != nil {
		t.Fatalf("export is not a record: %v", err)
	}
	if exported.ID != 1 || exported.TotalFound != 2 {
		t.Errorf("exported record = %+v", exported)
	}

	w = do(t, s, http.MethodPost, "/api/clear", "")
	if w.Code != http.StatusOK {
		t.Errorf("POST /api/clear = %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/api/results", "")
	if n := len(gjson.Get(w.Body.String(), "data").Array()); n != 0 {
		t.Errorf("%d results after clear", n)
	}
}

func TestErrorMapping(t *testing.T) {
	s, service := newTestServer(alive())

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "invalid network", method: http.MethodPost, path: "/api/scan", body: `{"network":"999.x"}`, want: http.StatusBadRequest},
		{name: "range too large", method: http.MethodPost, path: "/api/scan", body: `{"network":"10.0.0.0/8"}`, want: http.StatusBadRequest},
		{name: "malformed body", method: http.MethodPost, path: "/api/scan", body: `{"network":`, want: http.StatusBadRequest},
		{name: "string body", method: http.MethodPost, path: "/api/scan", body: `"bogus"`, want: http.StatusBadRequest},
		{name: "array body", method: http.MethodPost, path: "/api/scan", body: `[]`, want: http.StatusBadRequest},
		{name: "number body", method: http.MethodPost, path: "/api/scan", body: `42`, want: http.StatusBadRequest},
		{name: "numeric network", method: http.MethodPost, path: "/api/scan", body: `{"network":10}`, want: http.StatusBadRequest},
		{name: "object network", method: http.MethodPost, path: "/api/scan", body: `{"network":{"cidr":"10.0.0.0/24"}}`, want: http.StatusBadRequest},
		{name: "unknown result", method: http.MethodGet, path: "/api/results/42", want: http.StatusNotFound},
		{name: "non numeric id", method: http.MethodGet, path: "/api/results/abc", want: http.StatusNotFound},
		{name: "unknown export", method: http.MethodGet, path: "/api/export/42", want: http.StatusNotFound},
		{name: "cancel while idle", method: http.MethodPost, path: "/api/cancel", want: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("%s %s = %d, want %d: %s", tt.method, tt.path, w.Code, tt.want, w.Body)
			}
			body := w.Body.String()
			if gjson.Get(body, "code").Int() != int64(tt.want) || gjson.Get(body, "message").String() == "" {
				t.Errorf("error body = %s", body)
			}
		})
	}

	service.Wait()
	if results := service.Results(); len(results) != 0 {
		t.Errorf("rejected requests stored %d scans", len(results))
	}
}

func TestScanInProgressAndCancel(t *testing.T) {
	s, service := newTestServer(pingsweep.ProberFunc(func(ctx context.Context, _ netip.Addr, _ time.Duration) bool {
		<-ctx.Done()
		return false
	}))

	if w := do(t, s, http.MethodPost, "/api/scan", `{"network":"10.1.1"}`); w.Code != http.StatusOK {
		t.Fatalf("POST /api/scan = %d: %s", w.Code, w.Body)
	}
	if w := do(t, s, http.MethodPost, "/api/scan", `{"network":"10.1.2"}`); w.Code != http.StatusConflict {
		t.Errorf("second POST /api/scan = %d, want 409", w.Code)
	}

	w := do(t, s, http.MethodGet, "/api/status", "")
	if !gjson.Get(w.Body.String(), "data.running").Bool() {
		t.Errorf("status not running: %s", w.Body)
	}
	if got := gjson.Get(w.Body.String(), "data.current_scan").String(); got != "10.1.1.0/24" {
		t.Errorf("current_scan = %q", got)
	}

	if w := do(t, s, http.MethodPost, "/api/cancel", ""); w.Code != http.StatusOK {
		t.Fatalf("POST /api/cancel = %d: %s", w.Code, w.Body)
	}
	service.Wait()

	w = do(t, s, http.MethodGet, "/api/results/1", "")
	if state := gjson.Get(w.Body.String(), "data.state").String(); state != string(types.ScanCancelled) {
		t.Errorf("state = %q, want cancelled", state)
	}
}

func TestNetwork(t *testing.T) {
	s, _ := newTestServer(alive())
	w := do(t, s, http.MethodGet, "/api/network", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/network = %d: %s", w.Code, w.Body)
	}
	data := gjson.Get(w.Body.String(), "data")
	if data.Get("network").String() == "" || data.Get("ip").String() == "" || data.Get("mask").String() == "" {
		t.Errorf("network = %s", data.Raw)
	}
}
