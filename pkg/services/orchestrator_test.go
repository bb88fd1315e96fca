package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/llm"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/prompts"
)

// stubLimiter allows or rejects everything.
type stubLimiter struct {
	allow bool
}

func (s *stubLimiter) Allow(userID string) bool { return s.allow }

type orchestratorFixture struct {
	orch           Orchestrator
	client         *llm.MockGenerationClient
	adapter        *mockAdapter
	builder        *mockDashboardBuilder
	limiter        *stubLimiter
	sessionRepo    *mockSessionRepo
	messageRepo    *mockMessageRepo
	datasourceRepo *mockDatasourceRepo
	queryRepo      *mockQueryRepo
	dashboardRepo  *mockDashboardRepo
	sessions       SessionService
}

// routeClient answers by stage: the system message decides whether the
// call is intent classification, SQL generation or general chat.
func routeClient(intent, sqlResponse, generalResponse string) *llm.MockGenerationClient {
	client := llm.NewMockGenerationClient()
	client.GenerateFunc = func(ctx context.Context, prompt, systemMessage string, temperature float64) (string, error) {
		switch systemMessage {
		case prompts.BuildIntentSystemMessage():
			return `{"intent": "` + intent + `"}`, nil
		case prompts.BuildSQLSystemMessage():
			return sqlResponse, nil
		default:
			return generalResponse, nil
		}
	}
	return client
}

func newOrchestratorFixture(t *testing.T, client *llm.MockGenerationClient) *orchestratorFixture {
	t.Helper()

	logger := zap.NewNop()
	sessionRepo := newMockSessionRepo()
	messageRepo := &mockMessageRepo{}
	datasourceRepo := newMockDatasourceRepo()
	queryRepo := &mockQueryRepo{}
	dashboardRepo := &mockDashboardRepo{}

	adapter := &mockAdapter{
		queryFn: func(ctx context.Context, sqlQuery string, rowCap int) (*datasource.QueryResult, error) {
			return resultWithRows(3), nil
		},
	}
	builder := &mockDashboardBuilder{}
	limiter := &stubLimiter{allow: true}

	sessions := NewSessionService(sessionRepo, datasourceRepo, logger)
	conversations := NewConversationService(messageRepo, nil, nil, logger)
	intents := NewIntentService(client, logger)
	queries := NewQueryService(
		&mockSchemaProvider{schema: &models.SchemaDescriptor{DatabaseKind: "postgres"}},
		&mockAdapterProvider{adapter: adapter},
		client,
		queryRepo,
		QueryServiceConfig{},
		logger,
	)

	orch := NewOrchestrator(
		sessions, conversations, intents, queries, builder, limiter,
		messageRepo, datasourceRepo, dashboardRepo, client, logger,
	)

	return &orchestratorFixture{
		orch:           orch,
		client:         client,
		adapter:        adapter,
		builder:        builder,
		limiter:        limiter,
		sessionRepo:    sessionRepo,
		messageRepo:    messageRepo,
		datasourceRepo: datasourceRepo,
		queryRepo:      queryRepo,
		dashboardRepo:  dashboardRepo,
		sessions:       sessions,
	}
}

func (f *orchestratorFixture) boundSession(t *testing.T) *models.Session {
	t.Helper()
	ctx := context.Background()

	ds := &models.Datasource{Name: "analytics", DatasourceType: "postgres", IsActive: true}
	require.NoError(t, f.datasourceRepo.Create(ctx, ds))

	session, err := f.sessions.Create(ctx, "user-1", &ds.ID)
	require.NoError(t, err)
	return session
}

func (f *orchestratorFixture) unboundSession(t *testing.T) *models.Session {
	t.Helper()
	session, err := f.sessions.Create(context.Background(), "user-1", nil)
	require.NoError(t, err)
	return session
}

func TestHandleRateLimited(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "hi"))
	f.limiter.allow = false
	session := f.unboundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, string(apperrors.KindRateLimited), envelope.ErrorKind)
	assert.NotEmpty(t, envelope.AssistantText)

	// Rejected before any stage: nothing persisted, no model calls.
	assert.Empty(t, f.messageRepo.bySession(session.ID))
	assert.Equal(t, 0, f.client.GenerateCalls)
}

func TestHandleGeneral(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "I can answer questions about your data."))
	session := f.unboundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "hello there", nil)
	require.NoError(t, err)

	assert.Equal(t, models.KindGeneral, envelope.Kind)
	assert.Equal(t, "I can answer questions about your data.", envelope.AssistantText)
	assert.Empty(t, envelope.ErrorKind)
	assert.NotEqual(t, uuid.Nil, envelope.MessageID)

	messages := f.messageRepo.bySession(session.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.False(t, messages[1].IsError)
}

func TestHandleSetsSessionTitle(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "hi"))
	session := f.unboundSession(t)

	_, err := f.orch.Handle(context.Background(), session.ID, "user-1", "what can you do", nil)
	require.NoError(t, err)

	stored, err := f.sessionRepo.GetByID(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "what can you do", stored.Title)
}

func TestHandleDowngradeWithoutDatasource(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "SELECT 1", ""))
	session := f.unboundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "show me all orders", nil)
	require.NoError(t, err)

	assert.Equal(t, string(apperrors.KindNoDatasourceBound), envelope.ErrorKind)
	assert.Empty(t, envelope.GeneratedSQL)
	assert.Empty(t, f.adapter.queries)

	// The clarifying response is still the one assistant message.
	messages := f.messageRepo.bySession(session.ID)
	require.Len(t, messages, 2)
	assert.True(t, messages[1].IsError)
}

func TestHandleSQLSuccess(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "SELECT id, total FROM orders", ""))
	session := f.boundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "show me all orders", nil)
	require.NoError(t, err)

	assert.Equal(t, models.KindSQL, envelope.Kind)
	assert.Equal(t, "SELECT id, total FROM orders", envelope.GeneratedSQL)
	assert.Equal(t, 3, envelope.RowCount)
	assert.Empty(t, envelope.ErrorKind)
	assert.Nil(t, envelope.DashboardID)
	assert.Contains(t, envelope.AssistantText, "3 rows")

	messages := f.messageRepo.bySession(session.ID)
	require.Len(t, messages, 2)
	require.NotNil(t, messages[1].GeneratedSQL)
	assert.Equal(t, "SELECT id, total FROM orders", *messages[1].GeneratedSQL)
	assert.Len(t, f.queryRepo.records, 1)
	assert.Equal(t, 0, f.builder.calls)
}

func TestHandleDatasourceBindsOnFirstUse(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "SELECT id, total FROM orders", ""))
	session := f.unboundSession(t)
	ctx := context.Background()

	ds := &models.Datasource{Name: "analytics", DatasourceType: "postgres", IsActive: true}
	require.NoError(t, f.datasourceRepo.Create(ctx, ds))

	envelope, err := f.orch.Handle(ctx, session.ID, "user-1", "show me all orders", &ds.ID)
	require.NoError(t, err)

	assert.Empty(t, envelope.ErrorKind)
	assert.Equal(t, "SELECT id, total FROM orders", envelope.GeneratedSQL)

	stored, err := f.sessionRepo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DatasourceID)
	assert.Equal(t, ds.ID, *stored.DatasourceID)
}

func TestHandleDatasourceMismatchRejected(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "SELECT 1", ""))
	session := f.boundSession(t)

	other := uuid.New()
	_, err := f.orch.Handle(context.Background(), session.ID, "user-1", "show me all orders", &other)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDatasourceBound)
	assert.Empty(t, f.messageRepo.bySession(session.ID))
}

func TestHandleDatasourceMatchingBoundIsNoOp(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "SELECT id, total FROM orders", ""))
	session := f.boundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "show me all orders", session.DatasourceID)
	require.NoError(t, err)
	assert.Empty(t, envelope.ErrorKind)
	assert.Equal(t, 3, envelope.RowCount)
}

func TestHandleWindowExcludesCurrentQuestion(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "happy to help"))
	session := f.unboundSession(t)
	ctx := context.Background()

	_, err := f.orch.Handle(ctx, session.ID, "user-1", "hello there", nil)
	require.NoError(t, err)

	question := "tell me more about those results"
	_, err = f.orch.Handle(ctx, session.ID, "user-1", question, nil)
	require.NoError(t, err)

	// The second request's intent prompt carries the earlier turns but must
	// not repeat the question inside the history section.
	require.GreaterOrEqual(t, len(f.client.Prompts), 3)
	intentPrompt := f.client.Prompts[2]
	assert.Contains(t, intentPrompt, "hello there")
	assert.Equal(t, 1, strings.Count(intentPrompt, question))
}

func TestEvictSessionReleasesState(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "hi"))
	session := f.unboundSession(t)

	_, err := f.orch.Handle(context.Background(), session.ID, "user-1", "hello", nil)
	require.NoError(t, err)

	inner := f.orch.(*orchestrator)
	require.Len(t, inner.sessionLocks, 1)

	f.orch.EvictSession(session.ID)
	assert.Empty(t, inner.sessionLocks)
}

func TestHandleDashboard(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql_and_dashboard", "SELECT id, total FROM orders", ""))
	session := f.boundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "chart all orders", nil)
	require.NoError(t, err)

	assert.Equal(t, models.KindSQLAndDashboard, envelope.Kind)
	require.NotNil(t, envelope.DashboardID)
	assert.NotEmpty(t, envelope.Dashboard)
	assert.Contains(t, envelope.AssistantText, "1 chart")
	assert.Equal(t, 1, f.builder.calls)

	require.Len(t, f.dashboardRepo.artifacts, 1)
	saved := f.dashboardRepo.artifacts[0]
	assert.Equal(t, *envelope.DashboardID, saved.ID)
	assert.Equal(t, f.queryRepo.records[0].ID, saved.QueryID)

	messages := f.messageRepo.bySession(session.ID)
	require.Len(t, messages, 2)
	require.NotNil(t, messages[1].DashboardID)
	assert.Equal(t, saved.ID, *messages[1].DashboardID)
}

func TestHandleDashboardBuildFailureIsNotFatal(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("dashboard", "SELECT id, total FROM orders", ""))
	f.builder.err = errors.New("render failed")
	session := f.boundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "chart all orders", nil)
	require.NoError(t, err)

	// The query result still comes back; only the artifact is missing.
	assert.Empty(t, envelope.ErrorKind)
	assert.Nil(t, envelope.DashboardID)
	assert.Equal(t, 3, envelope.RowCount)
	assert.Empty(t, f.dashboardRepo.artifacts)
}

func TestHandleValidationRejected(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "DELETE FROM orders", ""))
	session := f.boundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "remove all orders", nil)
	require.NoError(t, err)

	assert.Equal(t, string(apperrors.KindValidationRejected), envelope.ErrorKind)
	assert.Empty(t, f.adapter.queries)

	messages := f.messageRepo.bySession(session.ID)
	require.Len(t, messages, 2)
	assert.True(t, messages[1].IsError)
}

func TestHandleExecutionFailureStillAnswers(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "SELECT id FROM orders", ""))
	f.adapter.queryFn = func(ctx context.Context, sqlQuery string, rowCap int) (*datasource.QueryResult, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	session := f.boundSession(t)

	envelope, err := f.orch.Handle(context.Background(), session.ID, "user-1", "show me all orders", nil)
	require.NoError(t, err)

	assert.Equal(t, string(apperrors.KindConnectivityError), envelope.ErrorKind)
	assert.NotEmpty(t, envelope.AssistantText)

	messages := f.messageRepo.bySession(session.ID)
	require.Len(t, messages, 2)
	assert.True(t, messages[1].IsError)
}

func TestHandleArchivedSession(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "hi"))
	session := f.unboundSession(t)
	require.NoError(t, f.sessions.Archive(context.Background(), session.ID))

	_, err := f.orch.Handle(context.Background(), session.ID, "user-1", "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrSessionArchived)
	assert.Empty(t, f.messageRepo.bySession(session.ID))
}

func TestHandleUnknownSession(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("general", "", "hi"))

	_, err := f.orch.Handle(context.Background(), uuid.New(), "user-1", "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestHandleErrorResponsesStayOutOfContext(t *testing.T) {
	f := newOrchestratorFixture(t, routeClient("sql", "DELETE FROM orders", ""))
	session := f.boundSession(t)
	ctx := context.Background()

	_, err := f.orch.Handle(ctx, session.ID, "user-1", "remove all orders", nil)
	require.NoError(t, err)

	// Two requests in: the failed assistant turn is persisted but must not
	// appear in the model context window.
	recent, err := f.messageRepo.ListRecent(ctx, session.ID, WindowSize)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.RoleUser, recent[0].Role)
}

func TestSummarize(t *testing.T) {
	record := &models.QueryExecutionRecord{RowCount: 0}
	assert.Contains(t, summarize(record, nil), "no rows")

	record.RowCount = 1
	assert.Contains(t, summarize(record, nil), "1 row")

	record.RowCount = 42
	text := summarize(record, &models.DashboardArtifact{ChartCount: 3})
	assert.Contains(t, text, "42 rows")
	assert.Contains(t, text, "3 charts")

	text = summarize(record, &models.DashboardArtifact{ChartCount: 0})
	assert.Contains(t, text, "no-results notice")
}
