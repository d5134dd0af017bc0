package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_StageFinished(t *testing.T) {
	c := New("test")
	c.StageFinished("Initialization", 2*time.Millisecond, nil)
	c.StageFinished("Initialization", time.Millisecond, nil)
	c.StageFinished("Reflection", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2, testutil.CollectAndCount(c.StageDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.StageFailures.WithLabelValues("Initialization")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.StageFailures.WithLabelValues("Reflection")))
}

func TestCollector_QueriesAndSessions(t *testing.T) {
	c := New("test")
	c.QueryFinished(nil, 40)
	c.QueryFinished(errors.New("bad"), 0)
	c.SessionOpened()
	c.SessionOpened()
	c.SessionEvicted("capacity")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Queries.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SessionsEvicted.WithLabelValues("capacity")))
}

func TestCollector_Feedback(t *testing.T) {
	c := New("test")
	c.FeedbackApplied("node", true)
	c.FeedbackApplied("edge", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Feedback.WithLabelValues("node", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Feedback.WithLabelValues("edge", "rejected")))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a, b := New("test"), New("test")
	a.SessionOpened()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SessionsActive))
}

func TestCollector_Handler(t *testing.T) {
	c := New("asrgot")
	c.QueryFinished(nil, 12)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `asrgot_queries_total{status="ok"} 1`), string(body))
}
