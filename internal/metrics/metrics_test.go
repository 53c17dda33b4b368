package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findFamily は収集結果から指定名のメトリクスファミリーを探す。
func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// labeledValues はラベル値ごとのカウンタ値を返す。
func labeledValues(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return out
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordLogin_SplitsSuccessAndFailure はログイン成否が別カウンタに記録されることを検証する。
func TestRecordLogin_SplitsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)

	if got := findFamily(t, reg, "serverinv_login_success_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("login_success_total = %v, want 1", got)
	}
	if got := findFamily(t, reg, "serverinv_login_fail_total").GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("login_fail_total = %v, want 2", got)
	}
}

// TestRecordAuditWrite_LabelsByAction はアクション別に監査書き込み数が記録されることを検証する。
func TestRecordAuditWrite_LabelsByAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuditWrite("LOGIN")
	c.RecordAuditWrite("LOGIN")
	c.RecordAuditWrite("SERVER_CREATED")
	c.RecordAuditFailure("SERVER_DELETED")

	writes := labeledValues(findFamily(t, reg, "serverinv_audit_writes_total"))
	if writes["LOGIN"] != 2 || writes["SERVER_CREATED"] != 1 {
		t.Errorf("audit_writes_total = %v", writes)
	}
	failures := labeledValues(findFamily(t, reg, "serverinv_audit_failures_total"))
	if failures["SERVER_DELETED"] != 1 {
		t.Errorf("audit_failures_total = %v", failures)
	}
}

// TestRecordAccessDenied_LabelsByPath はルート別の拒否数が記録されることを検証する。
func TestRecordAccessDenied_LabelsByPath(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAccessDenied("/api/servers")
	c.RecordAccessDenied("/api/servers/{id}")
	c.RecordAccessDenied("/api/servers")
	c.RecordTokenRejected()

	denied := labeledValues(findFamily(t, reg, "serverinv_access_denied_total"))
	if denied["/api/servers"] != 2 || denied["/api/servers/{id}"] != 1 {
		t.Errorf("access_denied_total = %v", denied)
	}
	if got := findFamily(t, reg, "serverinv_token_rejected_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("token_rejected_total = %v, want 1", got)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(403)

	got := labeledValues(findFamily(t, reg, "serverinv_http_status_total"))
	if len(got) != 2 || got["200"] != 2 || got["403"] != 1 {
		t.Errorf("http_status_total = %v", got)
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(100 * time.Millisecond)
	c.RecordRequestLatency(2 * time.Second)

	h := findFamily(t, reg, "serverinv_request_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordLogin(true)
	c2.RecordLogin(true)
	c2.RecordLogin(true)

	val1 := findFamily(t, reg1, "serverinv_login_success_total").GetMetric()[0].GetCounter().GetValue()
	val2 := findFamily(t, reg2, "serverinv_login_success_total").GetMetric()[0].GetCounter().GetValue()
	if val1 != 1 {
		t.Errorf("reg1 login_success = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 login_success = %v, want 2", val2)
	}
}
