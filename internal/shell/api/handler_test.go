package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-sh/maestro/internal/core/domain"
	"github.com/maestro-sh/maestro/internal/shell/docker"
	"github.com/maestro-sh/maestro/internal/shell/executor"
	"github.com/maestro-sh/maestro/internal/shell/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Stubs
// =============================================================================

// stubStore implements store.Store in memory.
type stubStore struct {
	strategies  map[string]*domain.Strategy
	deployments map[string]*domain.Deployment
}

func newStubStore() *stubStore {
	return &stubStore{
		strategies:  make(map[string]*domain.Strategy),
		deployments: make(map[string]*domain.Deployment),
	}
}

func (s *stubStore) PutStrategy(_ context.Context, strategy *domain.Strategy) error {
	s.strategies[strategy.Name] = strategy
	return nil
}

func (s *stubStore) GetStrategy(_ context.Context, name string) (*domain.Strategy, error) {
	strategy, ok := s.strategies[name]
	if !ok {
		return nil, store.NewStoreError("GetStrategy", "strategy", name, "not found", store.ErrNotFound)
	}
	return strategy, nil
}

func (s *stubStore) DeleteStrategy(_ context.Context, name string) error {
	if _, ok := s.strategies[name]; !ok {
		return store.NewStoreError("DeleteStrategy", "strategy", name, "not found", store.ErrNotFound)
	}
	delete(s.strategies, name)
	return nil
}

func (s *stubStore) ListStrategies(_ context.Context, _ store.ListOptions) ([]domain.Strategy, error) {
	out := make([]domain.Strategy, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		out = append(out, *strategy)
	}
	return out, nil
}

func (s *stubStore) PutDeployment(_ context.Context, d *domain.Deployment) error {
	s.deployments[d.Name] = d
	return nil
}

func (s *stubStore) GetDeployment(_ context.Context, name string) (*domain.Deployment, error) {
	d, ok := s.deployments[name]
	if !ok {
		return nil, store.NewStoreError("GetDeployment", "deployment", name, "not found", store.ErrNotFound)
	}
	return d, nil
}

func (s *stubStore) DeleteDeployment(_ context.Context, name string) error {
	if _, ok := s.deployments[name]; !ok {
		return store.NewStoreError("DeleteDeployment", "deployment", name, "not found", store.ErrNotFound)
	}
	delete(s.deployments, name)
	return nil
}

func (s *stubStore) ListDeployments(_ context.Context, _ store.ListOptions) ([]domain.Deployment, error) {
	out := make([]domain.Deployment, 0, len(s.deployments))
	for _, d := range s.deployments {
		out = append(out, *d)
	}
	return out, nil
}

func (s *stubStore) Close() error { return nil }

// stubDeployer returns canned results.
type stubDeployer struct {
	deployResult *executor.Result
	result       *executor.Result
	err          error
	lastEnv      map[string]map[string]string
}

func (d *stubDeployer) Deploy(_ context.Context, strategy *domain.Strategy, name string, env map[string]map[string]string, network string) *executor.Result {
	d.lastEnv = env
	if d.deployResult != nil {
		return d.deployResult
	}
	return &executor.Result{
		Deployment: name,
		Strategy:   strategy.Name,
		Network:    network,
		Status:     domain.StatusRunning,
		Containers: map[string]*executor.ContainerResult{
			"web": {Name: "web", ContainerID: "id-web", Status: domain.ContainerReady},
		},
		Errors: map[string]string{},
	}
}

func (d *stubDeployer) Stop(_ context.Context, name string, _ time.Duration) (*executor.Result, error) {
	return d.canned(name)
}

func (d *stubDeployer) Remove(_ context.Context, name string, _ bool) (*executor.Result, error) {
	return d.canned(name)
}

func (d *stubDeployer) Inspect(_ context.Context, name string) (*executor.Result, error) {
	return d.canned(name)
}

func (d *stubDeployer) List(_ context.Context) ([]*executor.Result, error) {
	if d.err != nil {
		return nil, d.err
	}
	return []*executor.Result{d.result}, nil
}

func (d *stubDeployer) canned(name string) (*executor.Result, error) {
	if d.err != nil {
		return nil, d.err
	}
	r := *d.result
	r.Deployment = name
	return &r, nil
}

type stubHealth struct{}

func (stubHealth) Check(_ context.Context, id string) domain.HealthRecord {
	return domain.HealthRecord{ContainerID: id, Status: domain.HealthHealthy, Message: "all checks passed", CheckedAt: time.Now()}
}

type stubWatcher struct {
	added   []string
	removed []string
}

func (w *stubWatcher) Add(id string)             { w.added = append(w.added, id) }
func (w *stubWatcher) RemoveContainer(id string) { w.removed = append(w.removed, id) }

// pingClient implements docker.Client; only Ping is exercised by handlers.
type pingClient struct {
	pingErr error
}

func (p *pingClient) CreateContainer(context.Context, docker.ContainerSpec) (string, error) {
	return "", nil
}
func (p *pingClient) StartContainer(context.Context, string) error                 { return nil }
func (p *pingClient) StopContainer(context.Context, string, *time.Duration) error  { return nil }
func (p *pingClient) RemoveContainer(context.Context, string, bool) error          { return nil }
func (p *pingClient) InspectContainer(context.Context, string) (*docker.ContainerInfo, error) {
	return nil, docker.ErrContainerNotFound
}
func (p *pingClient) ListContainers(context.Context, docker.ListOptions) ([]docker.ContainerInfo, error) {
	return nil, nil
}
func (p *pingClient) ContainerStats(context.Context, string) (*docker.ContainerStats, error) {
	return nil, docker.ErrContainerNotFound
}
func (p *pingClient) CreateNetwork(context.Context, docker.NetworkSpec) (string, error) {
	return "", nil
}
func (p *pingClient) RemoveNetwork(context.Context, string) error { return nil }
func (p *pingClient) Ping(context.Context) error                  { return p.pingErr }
func (p *pingClient) Close() error                                { return nil }

type fixture struct {
	store    *stubStore
	deployer *stubDeployer
	watcher  *stubWatcher
	server   *httptest.Server
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: newStubStore(),
		deployer: &stubDeployer{
			result: &executor.Result{
				Status: domain.StatusStopped,
				Containers: map[string]*executor.ContainerResult{
					"web": {Name: "web", ContainerID: "id-web", Status: domain.ContainerStopped},
				},
				Errors: map[string]string{},
			},
		},
		watcher: &stubWatcher{},
	}
	h := NewHandler(f.store, &pingClient{}, f.deployer, stubHealth{}, f.watcher, testLogger())
	f.server = httptest.NewServer(h.Routes())
	t.Cleanup(f.server.Close)
	return f
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func validStrategy(t *testing.T) *domain.Strategy {
	t.Helper()
	s := domain.NewStrategy("stack")
	require.NoError(t, s.AddContainer(domain.ContainerSpec{Name: "db", Image: "postgres:16"}))
	require.NoError(t, s.AddContainer(domain.ContainerSpec{Name: "web", Image: "nginx:latest"}))
	require.NoError(t, s.AddDependency("web", domain.Dependency{On: "db"}))
	return s
}

// =============================================================================
// Strategy Endpoint Tests
// =============================================================================

func TestAPI_PutStrategy(t *testing.T) {
	f := setup(t)

	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/strategies", validStrategy(t))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Contains(t, f.store.strategies, "stack")
}

func TestAPI_PutStrategy_InvalidJSON(t *testing.T) {
	f := setup(t)

	resp, err := http.Post(f.server.URL+"/api/v1/strategies", "application/json", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_PutStrategy_RejectsCycle(t *testing.T) {
	f := setup(t)

	body := map[string]any{
		"name": "broken",
		"containers": []map[string]any{
			{"name": "a", "image": "busybox"},
			{"name": "b", "image": "busybox"},
		},
		"dependencies": map[string]any{
			"a": []map[string]any{{"on": "b"}},
			"b": []map[string]any{{"on": "a"}},
		},
	}
	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/strategies", body)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_strategy", errResp.Code)
	assert.NotContains(t, f.store.strategies, "broken")
}

func TestAPI_GetStrategy_NotFound(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.server.URL + "/api/v1/strategies/ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_ListStrategies(t *testing.T) {
	f := setup(t)
	f.store.strategies["stack"] = validStrategy(t)

	resp, err := http.Get(f.server.URL + "/api/v1/strategies")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[ListStrategiesResponse](t, resp)
	require.Len(t, list.Strategies, 1)
	assert.Equal(t, "stack", list.Strategies[0].Name)
	assert.Equal(t, []string{"db", "web"}, list.Strategies[0].Containers)
}

func TestAPI_DeleteStrategy(t *testing.T) {
	f := setup(t)
	f.store.strategies["stack"] = validStrategy(t)

	resp := doJSON(t, http.MethodDelete, f.server.URL+"/api/v1/strategies/stack", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
	assert.Empty(t, f.store.strategies)

	resp = doJSON(t, http.MethodDelete, f.server.URL+"/api/v1/strategies/stack", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// =============================================================================
// Deployment Endpoint Tests
// =============================================================================

func TestAPI_Deploy(t *testing.T) {
	f := setup(t)
	f.store.strategies["stack"] = validStrategy(t)

	req := DeployRequest{
		Strategy: "stack",
		Name:     "prod",
		Env:      map[string]map[string]string{"web": {"MODE": "prod"}},
	}
	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/deployments", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[executor.Result](t, resp)
	assert.Equal(t, domain.StatusRunning, result.Status)

	assert.Equal(t, map[string]map[string]string{"web": {"MODE": "prod"}}, f.deployer.lastEnv)
	assert.Contains(t, f.store.deployments, "prod", "deployment record persisted")
	assert.Equal(t, []string{"id-web"}, f.watcher.added, "started containers are watched")
}

func TestAPI_Deploy_UnknownStrategy(t *testing.T) {
	f := setup(t)

	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/deployments", DeployRequest{Strategy: "ghost", Name: "prod"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_Deploy_MissingFields(t *testing.T) {
	f := setup(t)

	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/deployments", DeployRequest{Strategy: "stack"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_Deploy_FailureStillOK(t *testing.T) {
	f := setup(t)
	f.store.strategies["stack"] = validStrategy(t)
	f.deployer.deployResult = &executor.Result{
		Deployment: "prod",
		Strategy:   "stack",
		Status:     domain.StatusFailed,
		Containers: map[string]*executor.ContainerResult{},
		Errors:     map[string]string{"strategy": "dependency cycle"},
	}

	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/deployments", DeployRequest{Strategy: "stack", Name: "prod"})
	assert.Equal(t, http.StatusOK, resp.StatusCode, "the result object, not HTTP status, carries the outcome")

	result := decode[executor.Result](t, resp)
	assert.Equal(t, domain.StatusFailed, result.Status)
}

func TestAPI_GetDeployment_NotFound(t *testing.T) {
	f := setup(t)
	f.deployer.err = executor.ErrDeploymentNotFound

	resp, err := http.Get(f.server.URL + "/api/v1/deployments/ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_StopDeployment(t *testing.T) {
	f := setup(t)

	resp := doJSON(t, http.MethodPost, f.server.URL+"/api/v1/deployments/prod/stop", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	result := decode[executor.Result](t, resp)
	assert.Equal(t, domain.StatusStopped, result.Status)
	assert.Contains(t, f.store.deployments, "prod", "record mirrors the stop outcome")
	assert.Equal(t, domain.StatusStopped, f.store.deployments["prod"].Status)
}

func TestAPI_RemoveDeployment(t *testing.T) {
	f := setup(t)
	f.store.deployments["prod"] = domain.NewDeployment("prod", "stack")

	resp := doJSON(t, http.MethodDelete, f.server.URL+"/api/v1/deployments/prod", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.NotContains(t, f.store.deployments, "prod")
	assert.Equal(t, []string{"id-web"}, f.watcher.removed)
}

// =============================================================================
// Container Health Endpoint Tests
// =============================================================================

func TestAPI_ContainerHealth(t *testing.T) {
	f := setup(t)

	resp, err := http.Get(f.server.URL + "/api/v1/containers/abc123/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	record := decode[domain.HealthRecord](t, resp)
	assert.Equal(t, "abc123", record.ContainerID)
	assert.Equal(t, domain.HealthHealthy, record.Status)
}

// =============================================================================
// Health Endpoint Tests
// =============================================================================

func TestAPI_Ready_DockerDown(t *testing.T) {
	s := newStubStore()
	h := NewHandler(s, &pingClient{pingErr: docker.ErrConnectionFailed}, &stubDeployer{}, stubHealth{}, nil, testLogger())
	server := httptest.NewServer(h.Routes())
	defer server.Close()

	resp, err := http.Get(server.URL + "/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ready := decode[ReadyResponse](t, resp)
	assert.Equal(t, "not_ready", ready.Status)
	assert.Equal(t, "failed", ready.Checks["docker"])
}
