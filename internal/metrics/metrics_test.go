package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_ObserveStore(t *testing.T) {
	c := NewCollector("simrs", prometheus.NewRegistry())

	c.ObserveStore("create", "ok", time.Now())
	c.ObserveStore("create", "ok", time.Now())
	c.ObserveStore("restore", "Conflict", time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(c.StoreOperationsTotal.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StoreOperationsTotal.WithLabelValues("restore", "Conflict")))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.ObserveStore("create", "ok", time.Now())
	c.PublishFailed("mqtt")
	c.IndexRepaired("added_active", 3)
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("simrs", prometheus.NewRegistry())
	c.IndexRepaired("removed_active", 2)

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `simrs_index_repairs_total{action="removed_active"} 2`))
}
