package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ProfileLookup("found")
	m.RemoteWrite("notice", "ok")
	m.SetOutboxDepth(3)
	m.TrackInFlight()()
	m.ObserveRequest("GET", "/", 200, time.Millisecond)
}

func TestRemoteWriteCounts(t *testing.T) {
	m := New()
	m.RemoteWrite("notice", "failed")
	m.RemoteWrite("notice", "failed")
	m.RemoteWrite("event", "ok")

	families, err := m.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "portal_remote_writes_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			var kind, outcome string
			for _, label := range metric.GetLabel() {
				switch label.GetName() {
				case "kind":
					kind = label.GetValue()
				case "outcome":
					outcome = label.GetValue()
				}
			}
			counts[kind+"/"+outcome] = metric.GetCounter().GetValue()
		}
	}
	if counts["notice/failed"] != 2 || counts["event/ok"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestHandlerExposesPortalMetrics(t *testing.T) {
	m := New()
	m.ProfileLookup("missing")
	m.SetOutboxDepth(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{"portal_profile_lookup_attempts_total", "portal_outbox_depth 2"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %q in exposition:\n%s", name, body)
		}
	}
}
