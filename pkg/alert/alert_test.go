package alert_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/alert"
)

func TestLogAlerter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	a := alert.NewLogAlerter(log)

	a.Alert(context.Background(), &alert.Violation{
		Kind:        alert.KindForeignRow,
		Table:       "orders",
		Op:          alert.OpList,
		TenantID:    "store-a",
		RowTenantID: "store-b",
		RequestID:   "req-1",
		Err:         errors.New("row belongs to another tenant"),
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "tenant isolation violation", entry["msg"])
	assert.Equal(t, "foreign_row", entry["kind"])
	assert.Equal(t, "orders", entry["table"])
	assert.Equal(t, "list", entry["op"])
	assert.Equal(t, "store-a", entry["scope_tenant_id"])
	assert.Equal(t, "store-b", entry["row_tenant_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "row belongs to another tenant", entry["error"])

	buf.Reset()
	a.Alert(context.Background(), nil)
	assert.Zero(t, buf.Len())
}

func TestPrometheusAlerter(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a, err := alert.NewPrometheusAlerter(reg)
	require.NoError(t, err)

	v := &alert.Violation{Kind: alert.KindRowPolicy, Table: "orders", Op: alert.OpInsert}
	a.Alert(context.Background(), v)
	a.Alert(context.Background(), v)
	a.Alert(context.Background(), &alert.Violation{Kind: alert.KindForeignRow, Table: "orders", Op: alert.OpFind})

	assert.InDelta(t, 2, testutil.ToFloat64(a.Collector().WithLabelValues("orders", "insert", "row_policy")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.Collector().WithLabelValues("orders", "find", "foreign_row")), 0)

	_, err = alert.NewPrometheusAlerter(reg)
	assert.ErrorIs(t, err, alert.ErrDuplicateMetric)
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []string
	record := func(name string) alert.Alerter {
		return alert.AlerterFunc(func(_ context.Context, v *alert.Violation) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, name+":"+v.Table)
		})
	}

	m := alert.Multi(record("first"), nil, record("second"), alert.NoOp{})
	m.Alert(context.Background(), &alert.Violation{Table: "orders"})

	assert.Equal(t, []string{"first:orders", "second:orders"}, got)
}
