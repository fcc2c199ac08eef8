package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveDeploy(t *testing.T) {
	c := New()

	c.ObserveDeploy(OutcomeSuccess, "done", 2*time.Second)
	c.ObserveDeploy(OutcomeFailure, "image_prepared", time.Second)
	c.ObserveDeploy(OutcomeSuccess, "done", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.deployResults.With(prometheus.Labels{"outcome": OutcomeSuccess, "step": "done"})))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.deployResults.With(prometheus.Labels{"outcome": OutcomeFailure, "step": "image_prepared"})))
}

func TestAddWarning(t *testing.T) {
	c := New()

	c.AddWarning("remove image")
	c.AddWarning("remove image")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.warnings.With(prometheus.Labels{"op": "remove image"})))
}

func TestNilCollectors(t *testing.T) {
	var c *Collectors

	assert.NotPanics(t, func() {
		c.ObserveDeploy(OutcomeSuccess, "done", time.Second)
		c.ObserveBuild("custom", OutcomeSuccess, time.Second)
		c.AddWarning("detach network")
	})
	assert.Nil(t, c.Registry())
	assert.NoError(t, c.Push(context.Background(), "http://unused", "job"))
}

func TestPush_Disabled(t *testing.T) {
	c := New()

	err := c.Push(context.Background(), "", "pws_deploy")
	assert.ErrorIs(t, err, ErrPushDisabled)
}

func TestPush_SendsToGateway(t *testing.T) {
	var hits int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	c.ObserveBuild("generated", OutcomeSuccess, 3*time.Second)

	err := c.Push(context.Background(), srv.URL, "pws_deploy")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, strings.HasSuffix(path.Load().(string), "/job/pws_deploy"))
}
