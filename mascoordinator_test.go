package mascoordinator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mascoordinator/agent"
	"github.com/hupe1980/mascoordinator/config"
	"github.com/hupe1980/mascoordinator/coordinator"
	"github.com/hupe1980/mascoordinator/core"
	"github.com/hupe1980/mascoordinator/internal/testutil"
	"github.com/hupe1980/mascoordinator/logging"
	"github.com/hupe1980/mascoordinator/model"
)

func newService(t *testing.T, llm model.Model) *Service {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)

	svc, err := New(context.Background(), cfg, func(o *Options) {
		o.Logger = logging.NoOpLogger{}
		o.Connector = coordinator.ConnectorFunc(func(context.Context, coordinator.Request) (*coordinator.Downstream, error) {
			return &coordinator.Downstream{
				LLM:        llm,
				Dispatcher: agent.NewDispatcher(&testutil.StaticGateway{}, &testutil.StaticGateway{}),
			}, nil
		})
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, svc.Shutdown(context.Background())) })
	return svc
}

func TestService_Decide(t *testing.T) {
	llm := model.NewMockModel("gpt-4o").AddText(`{"agent_name":"UMS","additional_instructions":"list users"}`)
	svc := newService(t, llm)

	decision, err := svc.Decide(context.Background(), "key", "show me all users")
	require.NoError(t, err)
	assert.Equal(t, core.AgentUMS, decision.AgentName)
	assert.Equal(t, "list users", decision.AdditionalInstructions)
}

func TestService_Server(t *testing.T) {
	svc := newService(t, model.NewMockModel("gpt-4o"))
	handler := svc.Server().Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
