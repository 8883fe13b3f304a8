package connector_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cdc-pump/internal/connector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newConnect(t *testing.T, handler http.HandlerFunc) *connector.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return connector.NewClient(srv.URL, 5*time.Second, zap.NewNop())
}

func TestClient_ListAndStatus(t *testing.T) {
	t.Parallel()

	c := newConnect(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/connectors":
			_, _ = io.WriteString(w, `["dbserver_archivos","dbserver_fiscalizacion"]`)
		case "/connectors/dbserver_archivos/status":
			_, _ = io.WriteString(w, `{"name":"dbserver_archivos","connector":{"state":"RUNNING","worker_id":"w1"},
				"tasks":[{"id":0,"state":"RUNNING","worker_id":"w1"}],"type":"source"}`)
		case "/connectors/dbserver_fiscalizacion/status":
			_, _ = io.WriteString(w, `{"name":"dbserver_fiscalizacion","connector":{"state":"RUNNING","worker_id":"w1"},
				"tasks":[{"id":0,"state":"FAILED","worker_id":"w1","trace":"boom"}],"type":"source"}`)
		default:
			http.NotFound(w, r)
		}
	})

	ctx := context.Background()
	names, err := c.ListConnectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dbserver_archivos", "dbserver_fiscalizacion"}, names)

	st, err := c.Status(ctx, "dbserver_archivos")
	require.NoError(t, err)
	assert.True(t, st.Healthy())

	st, err = c.Status(ctx, "dbserver_fiscalizacion")
	require.NoError(t, err)
	assert.False(t, st.Healthy(), "a failed task makes the connector unhealthy")
	assert.Equal(t, "boom", st.Tasks[0].Trace)

	_, err = c.Status(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestClient_UpsertConfig(t *testing.T) {
	t.Parallel()

	var gotMethod, gotPath string
	var gotBody map[string]string
	c := newConnect(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{}`)
	})

	spec := connector.Spec{Name: "dbserver_archivos", Config: map[string]string{"topic.prefix": "dbserver_archivos"}}
	require.NoError(t, c.UpsertConfig(context.Background(), spec))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/connectors/dbserver_archivos/config", gotPath)
	assert.Equal(t, spec.Config, gotBody)
}

func TestStatus_HealthyRequiresRunningConnector(t *testing.T) {
	t.Parallel()

	var st connector.Status
	st.Connector.State = "PAUSED"
	assert.False(t, st.Healthy())

	st.Connector.State = connector.StateRunning
	assert.True(t, st.Healthy())
}
