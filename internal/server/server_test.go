package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dpup/greenwalk/internal/config"
	"github.com/dpup/greenwalk/internal/lib/units"
	"github.com/dpup/greenwalk/internal/services"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	reg := prometheus.NewRegistry()
	registry := services.NewRegistry(config.DefaultConfig().Engine, services.NewCollectors(reg), nil)
	return New(registry, Options{
		Units:       units.Imperial,
		MaxAccuracy: 20,
		Gatherer:    reg,
	})
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, gjson.Result, http.Header) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, gjson.ParseBytes(data), resp.Header
}

func TestTrackFlow(t *testing.T) {
	app := newTestApp(t)
	base := "/api/v1/players/p1"

	code, body, _ := do(t, app, "POST", base+"/track/start", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "source_unavailable", body.Get("code").String())

	code, body, _ = do(t, app, "POST", base+"/samples", `{"lat":0,"lng":0,"alt":10,"hacc":3}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Get("status").String())

	code, body, _ = do(t, app, "POST", base+"/track/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("track.active").Bool())
	assert.Len(t, body.Get("track.id").String(), 36)

	do(t, app, "POST", base+"/samples", `{"lat":0,"lng":0.0009,"alt":14,"hacc":3}`)
	code, body, _ = do(t, app, "POST", base+"/track/pivot", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), body.Get("track.metrics.pivot_count").Int())
	assert.InDelta(t, 100.08, body.Get("track.metrics.total_distance_m").Float(), 0.1)
	assert.Equal(t, "yd", body.Get("display.total_distance.unit").String())
	assert.InDelta(t, 109.45, body.Get("display.total_distance.value").Float(), 0.2)
	assert.Equal(t, "ft", body.Get("display.elevation_delta.unit").String())

	code, body, _ = do(t, app, "POST", base+"/track/pivot", "")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "sample_rejected", body.Get("code").String())
	assert.Equal(t, int64(1), body.Get("snapshot.track.metrics.pivot_count").Int())

	code, _, _ = do(t, app, "POST", base+"/track/undo", "")
	assert.Equal(t, http.StatusOK, code)
	code, body, _ = do(t, app, "POST", base+"/track/undo", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "no_pivot_to_undo", body.Get("code").String())

	code, body, _ = do(t, app, "POST", base+"/track/finish", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, body.Get("track.active").Bool())

	code, body, _ = do(t, app, "POST", base+"/track/pivot", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "session_not_active", body.Get("code").String())
}

func TestMappingFlow(t *testing.T) {
	app := newTestApp(t)
	base := "/api/v1/players/p2"

	code, _, _ := do(t, app, "POST", base+"/mapping/reset", "")
	assert.Equal(t, http.StatusConflict, code)

	do(t, app, "POST", base+"/samples", `{"lat":0,"lng":0,"hacc":3}`)
	code, body, _ := do(t, app, "POST", base+"/mapping/start", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body.Get("green.state").String())

	code, _, _ = do(t, app, "POST", base+"/mapping/bunker", `{"active":"yes"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body, _ = do(t, app, "POST", base+"/mapping/bunker", `{"active":true}`)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, body.Get("green.bunker_active").Bool())

	code, body, _ = do(t, app, "POST", base+"/mapping/close", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient_vertices", body.Get("code").String())

	do(t, app, "POST", base+"/samples", `{"lat":0,"lng":0.0001,"hacc":3}`)
	do(t, app, "POST", base+"/samples", `{"lat":0.0001,"lng":0.0001,"hacc":3}`)
	code, body, _ = do(t, app, "POST", base+"/mapping/close", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "closed", body.Get("green.state").String())
	assert.Equal(t, int64(3), body.Get("green.metrics.vertex_count").Int())
	assert.Greater(t, body.Get("green.metrics.area_m2").Float(), 1.0)
	assert.Equal(t, "yd²", body.Get("display.area.unit").String())

	code, body, _ = do(t, app, "POST", base+"/mapping/reset", "")
	require.Equal(t, http.StatusOK, code)
	assert.False(t, body.Get("green").Exists())
}

func TestPostSample(t *testing.T) {
	app := newTestApp(t)
	base := "/api/v1/players/p3"

	code, _, _ := do(t, app, "POST", base+"/samples", `not json`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _, _ = do(t, app, "POST", base+"/samples", `{"lat":91,"lng":0}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body, _ := do(t, app, "POST", base+"/samples", `{"lat":0,"lng":0,"hacc":50}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "low_accuracy", body.Get("code").String())
	assert.Equal(t, "waiting", body.Get("snapshot.status").String())

	code, body, _ = do(t, app, "POST", base+"/samples", `{"error":"signal_lost"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "searching", body.Get("status").String())
	assert.Contains(t, body.Get("source_error").String(), "signal lost")
}

func TestSnapshotAndExports(t *testing.T) {
	app := newTestApp(t)
	base := "/api/v1/players/p4"

	code, _, _ := do(t, app, "GET", base, "")
	assert.Equal(t, http.StatusNotFound, code)

	do(t, app, "POST", base+"/samples", `{"lat":36.568,"lng":-121.95,"hacc":3}`)
	code, body, _ := do(t, app, "GET", base, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "p4", body.Get("player_id").String())
	assert.False(t, body.Get("track").Exists())

	code, _, _ = do(t, app, "GET", base+"/export.kml", "")
	assert.Equal(t, http.StatusNotFound, code)

	do(t, app, "POST", base+"/track/start", "")
	do(t, app, "POST", base+"/samples", `{"lat":36.569,"lng":-121.949,"hacc":3}`)

	req := httptest.NewRequest("GET", base+"/export.kml", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/vnd.google-earth.kml+xml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(data), "<LineString>")

	code, body, header := do(t, app, "GET", base+"/export.geojson", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "application/geo+json", header.Get("Content-Type"))
	assert.Equal(t, "FeatureCollection", body.Get("type").String())
	assert.Equal(t, "LineString", body.Get("features.0.geometry.type").String())
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)
	do(t, app, "POST", "/api/v1/players/p5/track/start", "")

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(data), `greenwalk_commands_total{command="start_track",result="source_unavailable"} 1`)
}
