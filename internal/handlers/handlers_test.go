package handlers_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"email-router/internal/config"
	"email-router/internal/handlers"
	"email-router/internal/reload"
	"email-router/internal/routing"
)

func testTarget(t *testing.T, name string, priority float64, pattern routing.MatchPattern) routing.TargetConfig {
	t.Helper()

	compiled, err := routing.NewMatchPattern(pattern)
	require.NoError(t, err)

	target, err := routing.NewTargetConfig(name, priority,
		[]routing.Rule{{MatchPriority: 1, Pattern: compiled}},
		[]routing.DestinationConfig{{Sequence: 10, Type: routing.DestinationDirectProcessing, URI: "app://" + name}})
	require.NoError(t, err)
	return target
}

// testDatastore serves two targets: "alerts" (priority 5) matching local
// parts starting with alerts, and "support" (priority 10) matching the
// example.com sender domain.
func testDatastore(t *testing.T) *routing.RulesDatastore {
	t.Helper()

	builder := routing.NewDatastoreBuilder("handler-check", 7,
		time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC), routing.InstanceBlue)
	require.NoError(t, builder.AddTarget(testTarget(t, "support", 10, routing.MatchPattern{SenderDomain: `example\.com`})))
	require.NoError(t, builder.AddTarget(testTarget(t, "alerts", 5, routing.MatchPattern{RecipientName: `^alerts`})))

	ds, err := builder.Build()
	require.NoError(t, err)
	return ds
}

func newHandlers(ds *routing.RulesDatastore, reloader *reload.Reloader) *handlers.Handlers {
	cfg := &config.Config{InstanceType: "blue", APIEnabled: true}
	return handlers.New(cfg, routing.NewEngine(ds), reloader, routing.InstanceBlue)
}

// newRouter mirrors the production route layout so mux fills path variables.
func newRouter(h *handlers.Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", h.HandleIndex).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/inbound/{instance}/", h.HandleInbound).Methods(http.MethodPost)
	router.HandleFunc("/api/datastore", h.GetDatastore).Methods(http.MethodGet)
	router.HandleFunc("/api/targets", h.GetTargets).Methods(http.MethodGet)
	router.HandleFunc("/api/reload", h.ReloadDatastore).Methods(http.MethodPost)
	return router
}

func inboundRequest(instance string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/inbound/"+instance+"/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleInbound_RoutedMail(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	form := url.Values{}
	form.Set("envelope", `{"to":["alerts@router.net"],"from":"bob@example.com"}`)
	form.Set("sender_ip", "203.0.113.7")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("blue", form))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleInbound_UnroutedMailStillAcknowledged(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	form := url.Values{}
	form.Set("envelope", `{"to":["someone@other.org"],"from":"bob@nowhere.org"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("blue", form))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHandleInbound_WrongInstance(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	form := url.Values{}
	form.Set("envelope", `{"to":["alerts@router.net"],"from":"bob@example.com"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("green", form))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleInbound_MalformedPayload(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("blue", url.Values{}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Malformed inbound message")
}

func TestHandleInbound_BadSenderAddress(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	form := url.Values{}
	form.Set("envelope", `{"to":["alerts@router.net"],"from":"not-an-address"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("blue", form))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid message data")
}

func TestHandleInbound_NotActive(t *testing.T) {
	router := newRouter(newHandlers(nil, nil))

	form := url.Values{}
	form.Set("envelope", `{"to":["alerts@router.net"],"from":"bob@example.com"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("blue", form))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleInbound_UnimplementedCriterion(t *testing.T) {
	withAttachment := true
	builder := routing.NewDatastoreBuilder("attachment-check", 1, time.Now(), routing.InstanceBlue)
	require.NoError(t, builder.AddTarget(testTarget(t, "attachments", 10, routing.MatchPattern{
		SenderDomain:       `example\.com`,
		AttachmentIncluded: &withAttachment,
	})))
	ds, err := builder.Build()
	require.NoError(t, err)

	router := newRouter(newHandlers(ds, nil))

	form := url.Values{}
	form.Set("envelope", `{"to":["inbox@router.net"],"from":"bob@example.com"}`)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, inboundRequest("blue", form))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Match evaluation failed")
}

func TestHandleIndex(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "email-router", body["service"])
	assert.Equal(t, "blue", body["instance"])
	assert.Equal(t, true, body["api_enabled"])
}

func TestHealthCheck(t *testing.T) {
	t.Run("active datastore", func(t *testing.T) {
		router := newRouter(newHandlers(testDatastore(t), nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, "active", body["datastore_status"])
		assert.EqualValues(t, 7, body["revision_number"])
		assert.EqualValues(t, 2, body["target_count"])
	})

	t.Run("no active datastore", func(t *testing.T) {
		router := newRouter(newHandlers(nil, nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "not_active", body["datastore_status"])
	})
}

func TestGetDatastore(t *testing.T) {
	t.Run("active datastore", func(t *testing.T) {
		router := newRouter(newHandlers(testDatastore(t), nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datastore", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "handler-check", body["name"])
		assert.EqualValues(t, 7, body["revision_number"])
		assert.Equal(t, "2026-03-01T08:00:00Z", body["revision_datetime"])
		assert.Equal(t, "blue", body["instance_type"])
		assert.EqualValues(t, 2, body["target_count"])
	})

	t.Run("no active datastore", func(t *testing.T) {
		router := newRouter(newHandlers(nil, nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/datastore", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestGetTargets(t *testing.T) {
	router := newRouter(newHandlers(testDatastore(t), nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/targets", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var targets []struct {
		Name     string  `json:"target_name"`
		Priority float64 `json:"target_priority"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &targets))
	require.Len(t, targets, 2)

	// Evaluation order: ascending target priority
	assert.Equal(t, "alerts", targets[0].Name)
	assert.Equal(t, 5.0, targets[0].Priority)
	assert.Equal(t, "support", targets[1].Name)
	assert.Equal(t, 10.0, targets[1].Priority)
}

func TestReloadDatastore(t *testing.T) {
	rulesDocument := `{
		"name": "api-reload-check",
		"revision_number": 3,
		"revision_datetime": "2026-03-02T09:00:00Z",
		"instance_type": "blue",
		"router_rules": [
			{"support": {
				"target_priority": 10,
				"destination": "DIRECT_PROCESSING",
				"destination_uri": "app://support",
				"match_rules": [
					{"match_priority": 1, "sender_domain": "example\\.com"}
				]
			}}
		]
	}`

	t.Run("no reloader configured", func(t *testing.T) {
		router := newRouter(newHandlers(testDatastore(t), nil))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("reload succeeds", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rules.json")
		require.NoError(t, os.WriteFile(path, []byte(rulesDocument), 0644))

		engine := routing.NewEngine(nil)
		reloader := reload.New(routing.SourceConfig{Type: routing.SourceJSONFile, URI: path}, routing.InstanceBlue, engine)
		h := handlers.New(&config.Config{InstanceType: "blue", APIEnabled: true}, engine, reloader, routing.InstanceBlue)
		router := newRouter(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["reloaded"])
		assert.Equal(t, "api-reload-check", body["name"])
		assert.EqualValues(t, 3, body["revision_number"])
		assert.True(t, engine.Current().Active())
	})

	t.Run("reload fails", func(t *testing.T) {
		engine := routing.NewEngine(nil)
		reloader := reload.New(routing.SourceConfig{Type: routing.SourceJSONFile, URI: filepath.Join(t.TempDir(), "missing.json")},
			routing.InstanceBlue, engine)
		h := handlers.New(&config.Config{InstanceType: "blue", APIEnabled: true}, engine, reloader, routing.InstanceBlue)
		router := newRouter(h)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reload", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Failed to reload rules")
	})
}
