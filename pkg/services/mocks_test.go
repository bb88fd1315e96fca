package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
	sqlpkg "github.com/askdeck-ai/askdeck-engine/pkg/sql"
)

// mockMessageRepo is an in-memory MessageRepository.
type mockMessageRepo struct {
	mu       sync.Mutex
	messages []*models.Message
	createFn func(ctx context.Context, message *models.Message) error
}

var _ repositories.MessageRepository = (*mockMessageRepo)(nil)

func (m *mockMessageRepo) Create(ctx context.Context, message *models.Message) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, message); err != nil {
			return err
		}
	}
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, message)
	return nil
}

func (m *mockMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, message := range m.messages {
		if message.SessionID == sessionID {
			out = append(out, message)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) ListRecent(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var filtered []*models.Message
	for _, message := range m.messages {
		if message.SessionID == sessionID && !message.IsError {
			filtered = append(filtered, message)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered, nil
}

func (m *mockMessageRepo) bySession(sessionID uuid.UUID) []*models.Message {
	messages, _ := m.ListBySession(context.Background(), sessionID)
	return messages
}

// mockSessionRepo is an in-memory SessionRepository.
type mockSessionRepo struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
}

var _ repositories.SessionRepository = (*mockSessionRepo)(nil)

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: make(map[uuid.UUID]*models.Session)}
}

func (m *mockSessionRepo) Create(ctx context.Context, session *models.Session) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *mockSessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *mockSessionRepo) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Session
	for _, session := range m.sessions {
		if session.UserID == userID && !session.Archived {
			copied := *session
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *mockSessionRepo) UpdateTitle(ctx context.Context, id uuid.UUID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	session.Title = title
	return nil
}

func (m *mockSessionRepo) BindDatasource(ctx context.Context, id, datasourceID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if session.DatasourceID != nil {
		return apperrors.ErrDatasourceBound
	}
	session.DatasourceID = &datasourceID
	return nil
}

func (m *mockSessionRepo) Archive(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	session.Archived = true
	return nil
}

func (m *mockSessionRepo) Touch(ctx context.Context, id uuid.UUID) error {
	return nil
}

// mockDatasourceRepo is an in-memory DatasourceRepository.
type mockDatasourceRepo struct {
	mu          sync.Mutex
	datasources map[uuid.UUID]*models.Datasource
}

var _ repositories.DatasourceRepository = (*mockDatasourceRepo)(nil)

func newMockDatasourceRepo() *mockDatasourceRepo {
	return &mockDatasourceRepo{datasources: make(map[uuid.UUID]*models.Datasource)}
}

func (m *mockDatasourceRepo) Create(ctx context.Context, ds *models.Datasource) error {
	if ds.ID == uuid.Nil {
		ds.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datasources[ds.ID] = ds
	return nil
}

func (m *mockDatasourceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Datasource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasources[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return ds, nil
}

func (m *mockDatasourceRepo) ListActive(ctx context.Context) ([]*models.Datasource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Datasource
	for _, ds := range m.datasources {
		if ds.IsActive {
			out = append(out, ds)
		}
	}
	return out, nil
}

func (m *mockDatasourceRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.datasources[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	ds.IsActive = false
	return nil
}

// mockQueryRepo records saved query records.
type mockQueryRepo struct {
	mu      sync.Mutex
	records []*models.QueryExecutionRecord
}

var _ repositories.QueryRepository = (*mockQueryRepo)(nil)

func (m *mockQueryRepo) Save(ctx context.Context, record *models.QueryExecutionRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockQueryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.QueryExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, record := range m.records {
		if record.ID == id {
			return record, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockQueryRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.QueryExecutionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.QueryExecutionRecord
	for _, record := range m.records {
		if record.SessionID == sessionID {
			out = append(out, record)
		}
	}
	return out, nil
}

// mockDashboardRepo records saved artifacts.
type mockDashboardRepo struct {
	mu        sync.Mutex
	artifacts []*models.DashboardArtifact
}

var _ repositories.DashboardRepository = (*mockDashboardRepo)(nil)

func (m *mockDashboardRepo) Save(ctx context.Context, artifact *models.DashboardArtifact) error {
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, artifact)
	return nil
}

func (m *mockDashboardRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.DashboardArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, artifact := range m.artifacts {
		if artifact.ID == id {
			return artifact, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockDashboardRepo) Rename(ctx context.Context, id uuid.UUID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, artifact := range m.artifacts {
		if artifact.ID == id {
			artifact.Name = name
			return nil
		}
	}
	return apperrors.ErrNotFound
}

// mockSchemaProvider serves a fixed schema.
type mockSchemaProvider struct {
	schema *models.SchemaDescriptor
	err    error
}

var _ SchemaProvider = (*mockSchemaProvider)(nil)

func (m *mockSchemaProvider) Get(ctx context.Context, ds *models.Datasource) (*models.SchemaDescriptor, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.schema, nil
}

// mockAdapter implements datasource.Adapter with a pluggable query func.
type mockAdapter struct {
	queryFn    func(ctx context.Context, sqlQuery string, rowCap int) (*datasource.QueryResult, error)
	queries    []string
	queriesMu  sync.Mutex
	dialect    sqlpkg.Dialect
	connectErr error
}

var _ datasource.Adapter = (*mockAdapter)(nil)

func (m *mockAdapter) TestConnection(ctx context.Context) error { return m.connectErr }

func (m *mockAdapter) DiscoverSchema(ctx context.Context) ([]models.SchemaTable, error) {
	return nil, nil
}

func (m *mockAdapter) Query(ctx context.Context, sqlQuery string, rowCap int) (*datasource.QueryResult, error) {
	m.queriesMu.Lock()
	m.queries = append(m.queries, sqlQuery)
	m.queriesMu.Unlock()
	return m.queryFn(ctx, sqlQuery, rowCap)
}

func (m *mockAdapter) Dialect() sqlpkg.Dialect {
	if m.dialect == "" {
		return sqlpkg.DialectPostgres
	}
	return m.dialect
}

func (m *mockAdapter) Close() error { return nil }

// mockAdapterProvider hands back a fixed adapter.
type mockAdapterProvider struct {
	adapter *mockAdapter
	err     error
}

var _ AdapterProvider = (*mockAdapterProvider)(nil)

func (m *mockAdapterProvider) GetOrCreate(ctx context.Context, ds *models.Datasource) (datasource.Adapter, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.adapter, nil
}

// mockDashboardBuilder returns a canned artifact.
type mockDashboardBuilder struct {
	artifact *models.DashboardArtifact
	err      error
	calls    int
}

var _ DashboardBuilder = (*mockDashboardBuilder)(nil)

func (m *mockDashboardBuilder) Build(record *models.QueryExecutionRecord) (*models.DashboardArtifact, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.artifact != nil {
		return m.artifact, nil
	}
	return &models.DashboardArtifact{
		Name:       "test dashboard",
		Document:   "<!DOCTYPE html><html></html>",
		ChartCount: 1,
		ChartTypes: []string{"bar"},
	}, nil
}
