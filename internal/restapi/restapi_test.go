package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdslabs/policyctl/internal/actorhost"
	"github.com/sdslabs/policyctl/internal/config"
	"github.com/sdslabs/policyctl/internal/domain"
	"github.com/sdslabs/policyctl/internal/dsl"
	"github.com/sdslabs/policyctl/internal/globalcontroller"
	"github.com/sdslabs/policyctl/internal/metricsub"
	"github.com/sdslabs/policyctl/internal/policyengine"
	"github.com/sdslabs/policyctl/internal/ruleactor"
	"github.com/sdslabs/policyctl/internal/store/memstore"
	"github.com/sdslabs/policyctl/pkg/logger"
)

// noopSource never produces updates; tests here exercise CRUD and
// submission paths, not the actors the streams ultimately drive.
type noopSource struct{}

func (noopSource) Stream(context.Context, string) (<-chan ruleactor.MetricUpdate, error) {
	return make(chan ruleactor.MetricUpdate), nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := logger.NewDefault("restapi-test")
	st := memstore.New()
	host := actorhost.New(0, log)
	metrics := metricsub.New(host, noopSource{}, log)
	engine := policyengine.New(st, host, dsl.SimpleParser{}, metrics, log)
	factory := func(c domain.GlobalController) globalcontroller.Runner {
		return globalcontroller.DummyRunner{Name: c.DSLFilter, Log: log}
	}
	controllers := globalcontroller.New(st, host, metrics, factory, 0, log)

	return &Server{
		Store:       st,
		Engine:      engine,
		Controllers: controllers,
		Host:        host,
		Metrics:     metrics,
		Config: &config.Config{
			REST: config.RESTConfig{AuthDisabled: true},
		},
		Log: log,
	}
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	s := newTestServer(t)
	s.Config.REST.AuthDisabled = false
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetNode(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	created := doRequest(t, router, http.MethodPost, "/nodes", domain.StorageNode{Name: "disk-1"})
	require.Equal(t, http.StatusCreated, created.Code)

	var node domain.StorageNode
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &node))
	assert.NotZero(t, node.ID)

	fetched := doRequest(t, router, http.MethodGet, "/nodes/"+strconv.FormatInt(node.ID, 10), nil)
	assert.Equal(t, http.StatusOK, fetched.Code)
}

func TestSubmitStaticPolicyAppearsInListing(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodPost, "/policies", map[string]string{
		"rules": "FOR TENANT:tenant1 DO SET compress",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	listed := doRequest(t, router, http.MethodGet, "/policies?tenant=tenant1", nil)
	assert.Equal(t, http.StatusOK, listed.Code)

	var entries []domain.PipelineEntry
	require.NoError(t, json.Unmarshal(listed.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "compress", entries[0].FilterName)
}

func TestDeleteFilterConflictsWithReferencingPipeline(t *testing.T) {
	s := newTestServer(t)
	router := NewRouter(s)

	require.NoError(t, s.Store.PutFilter(context.Background(), domain.Filter{ID: 1, FilterName: "compress"}))
	require.NoError(t, s.Store.PutPipelineEntry(context.Background(), domain.PipelineKey{TenantID: "tenant1"}, domain.PipelineEntry{
		PolicyID: 1, FilterID: 1, FilterName: "compress",
	}))

	rec := doRequest(t, router, http.MethodDelete, "/filters/1", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAuthMiddlewareRejectsWithoutToken(t *testing.T) {
	s := newTestServer(t)
	s.Config.REST.AuthDisabled = false
	router := NewRouter(s)

	rec := doRequest(t, router, http.MethodGet, "/nodes", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
