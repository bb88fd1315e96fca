package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/llm"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/prompts"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
)

// DashboardBuilder renders a dashboard artifact from an executed query.
type DashboardBuilder interface {
	Build(record *models.QueryExecutionRecord) (*models.DashboardArtifact, error)
}

// Orchestrator runs the full request pipeline: rate limit, conversation
// state, intent routing, query stage, visualization and response assembly.
// Requests against the same session are serialized.
type Orchestrator interface {
	// Handle processes one user request. A non-nil datasourceID binds the
	// session on first use; a session already bound to a different
	// datasource rejects the request with ErrDatasourceBound.
	Handle(ctx context.Context, sessionID uuid.UUID, userID, text string, datasourceID *uuid.UUID) (*models.ResponseEnvelope, error)

	// EvictSession drops per-session orchestration state (the session lock
	// and the in-memory conversation window) after a session is archived.
	EvictSession(sessionID uuid.UUID)
}

type orchestrator struct {
	sessions      SessionService
	conversations ConversationService
	intents       IntentService
	queries       QueryService
	dashboards    DashboardBuilder
	limiter       RateLimiter

	messageRepo    repositories.MessageRepository
	datasourceRepo repositories.DatasourceRepository
	dashboardRepo  repositories.DashboardRepository
	llmClient      llm.GenerationClient

	locksMu      sync.Mutex
	sessionLocks map[uuid.UUID]*sync.Mutex

	logger *zap.Logger
}

// NewOrchestrator creates the request orchestrator.
func NewOrchestrator(
	sessions SessionService,
	conversations ConversationService,
	intents IntentService,
	queries QueryService,
	dashboards DashboardBuilder,
	limiter RateLimiter,
	messageRepo repositories.MessageRepository,
	datasourceRepo repositories.DatasourceRepository,
	dashboardRepo repositories.DashboardRepository,
	llmClient llm.GenerationClient,
	logger *zap.Logger,
) Orchestrator {
	return &orchestrator{
		sessions:       sessions,
		conversations:  conversations,
		intents:        intents,
		queries:        queries,
		dashboards:     dashboards,
		limiter:        limiter,
		messageRepo:    messageRepo,
		datasourceRepo: datasourceRepo,
		dashboardRepo:  dashboardRepo,
		llmClient:      llmClient,
		sessionLocks:   make(map[uuid.UUID]*sync.Mutex),
		logger:         logger.Named("orchestrator"),
	}
}

var _ Orchestrator = (*orchestrator)(nil)

// Handle processes one user request. Aside from rate-limited requests,
// which are rejected before any stage runs, every call appends exactly one
// assistant message to the session, success or failure.
func (o *orchestrator) Handle(ctx context.Context, sessionID uuid.UUID, userID, text string, datasourceID *uuid.UUID) (*models.ResponseEnvelope, error) {
	if !o.limiter.Allow(userID) {
		o.logger.Warn("rate limited",
			zap.String("userID", userID),
			zap.String("sessionID", sessionID.String()),
		)
		return &models.ResponseEnvelope{
			SessionID:     sessionID,
			Kind:          models.KindGeneral,
			AssistantText: apperrors.UserMessage(apperrors.New(apperrors.KindRateLimited, nil)),
			ErrorKind:     string(apperrors.KindRateLimited),
		}, nil
	}

	lock := o.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Archived {
		o.EvictSession(sessionID)
		return nil, apperrors.ErrSessionArchived
	}

	if err := o.resolveDatasource(ctx, session, datasourceID); err != nil {
		return nil, err
	}

	// Capture the context window before the current question lands in it,
	// so the prompt's history section never repeats the question.
	window := o.captureWindow(ctx, sessionID, text)

	o.conversations.Append(ctx, sessionID, models.RoleUser, text, false)
	userMessage := &models.Message{
		SessionID: sessionID,
		Role:      models.RoleUser,
		Content:   text,
	}
	if err := o.messageRepo.Create(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	o.sessions.EnsureTitle(ctx, session, text)

	envelope := o.process(ctx, session, text, window)
	envelope.SessionID = sessionID

	// The one assistant message per request, success or failure.
	assistant := &models.Message{
		SessionID:    sessionID,
		Role:         models.RoleAssistant,
		Content:      envelope.AssistantText,
		IsError:      envelope.ErrorKind != "",
		GeneratedSQL: optional(envelope.GeneratedSQL),
	}
	if envelope.DashboardID != nil {
		assistant.DashboardID = envelope.DashboardID
	}
	o.conversations.Append(ctx, sessionID, models.RoleAssistant, envelope.AssistantText, assistant.IsError)
	if err := o.messageRepo.Create(ctx, assistant); err != nil {
		return nil, fmt.Errorf("store assistant message: %w", err)
	}
	envelope.MessageID = assistant.ID

	return envelope, nil
}

// resolveDatasource applies a per-request datasource ID: first use binds
// the session, a matching ID is a no-op, a mismatch is rejected.
func (o *orchestrator) resolveDatasource(ctx context.Context, session *models.Session, datasourceID *uuid.UUID) error {
	if datasourceID == nil {
		return nil
	}
	if session.DatasourceID != nil {
		if *session.DatasourceID != *datasourceID {
			return apperrors.ErrDatasourceBound
		}
		return nil
	}

	if err := o.sessions.BindDatasource(ctx, session.ID, *datasourceID); err != nil {
		return fmt.Errorf("bind datasource: %w", err)
	}
	bound := *datasourceID
	session.DatasourceID = &bound
	return nil
}

// captureWindow loads the context window when the request needs history.
func (o *orchestrator) captureWindow(ctx context.Context, sessionID uuid.UUID, text string) models.ConversationWindow {
	if !o.conversations.ShouldIncludeHistory(text) {
		return nil
	}

	window, err := o.conversations.Window(ctx, sessionID)
	if err != nil {
		o.logger.Warn("failed to load conversation window",
			zap.String("sessionID", sessionID.String()),
			zap.Error(err),
		)
		return nil
	}
	return window
}

// process runs intent routing and the downstream stages, converting every
// failure into a user-facing envelope.
func (o *orchestrator) process(ctx context.Context, session *models.Session, text string, window models.ConversationWindow) *models.ResponseEnvelope {
	decision := o.intents.Classify(ctx, text, window, session.DatasourceID != nil)

	o.logger.Info("request routed",
		zap.String("sessionID", session.ID.String()),
		zap.String("kind", string(decision.Kind)),
		zap.Bool("downgraded", decision.Downgraded),
		zap.Int("windowSize", len(window)),
	)

	if decision.Downgraded {
		return &models.ResponseEnvelope{
			Kind:          models.KindGeneral,
			AssistantText: apperrors.UserMessage(apperrors.New(apperrors.KindNoDatasourceBound, nil)),
			ErrorKind:     string(apperrors.KindNoDatasourceBound),
		}
	}

	if !decision.Kind.WantsSQL() && !decision.Kind.WantsDashboard() {
		return o.handleGeneral(ctx, text, window)
	}

	return o.handleData(ctx, session, text, window, decision.Kind)
}

func (o *orchestrator) handleGeneral(ctx context.Context, text string, window models.ConversationWindow) *models.ResponseEnvelope {
	answer, err := o.llmClient.Generate(ctx,
		prompts.BuildGeneralPrompt(text, window),
		prompts.BuildGeneralSystemMessage(),
		0.7)
	if err != nil {
		o.logger.Warn("general chat generation failed", zap.Error(err))
		kind := apperrors.KindGenerationError
		if llm.IsTimeout(err) {
			kind = apperrors.KindGenerationTimeout
		}
		return errorEnvelope(models.KindGeneral, apperrors.New(kind, err))
	}

	return &models.ResponseEnvelope{
		Kind:          models.KindGeneral,
		AssistantText: answer,
	}
}

func (o *orchestrator) handleData(ctx context.Context, session *models.Session, text string, window models.ConversationWindow, kind models.RequestKind) *models.ResponseEnvelope {
	if session.DatasourceID == nil {
		return errorEnvelope(kind, apperrors.New(apperrors.KindNoDatasourceBound, nil))
	}

	ds, err := o.datasourceRepo.GetByID(ctx, *session.DatasourceID)
	if err != nil {
		return errorEnvelope(kind, apperrors.New(apperrors.KindConnectivityError, err))
	}

	agentCtx := &models.AgentContext{
		SessionID:    session.ID,
		UserID:       session.UserID,
		DatasourceID: session.DatasourceID,
		Text:         text,
		Kind:         kind,
		Window:       window,
	}

	record, err := o.queries.Run(ctx, ds, text, window, agentCtx)
	if err != nil {
		return errorEnvelope(kind, err)
	}

	envelope := &models.ResponseEnvelope{
		Kind:         kind,
		GeneratedSQL: record.SQL,
		Columns:      record.Columns,
		Rows:         record.Rows,
		RowCount:     record.RowCount,
		ElapsedMs:    record.ElapsedMs,
	}

	var built *models.DashboardArtifact
	if kind.WantsDashboard() {
		artifact, buildErr := o.dashboards.Build(record)
		if buildErr != nil {
			o.logger.Error("dashboard build failed",
				zap.String("queryID", record.ID.String()),
				zap.Error(buildErr),
			)
		} else {
			artifact.QueryID = record.ID
			if saveErr := o.dashboardRepo.Save(ctx, artifact); saveErr != nil {
				o.logger.Error("failed to save dashboard", zap.Error(saveErr))
			} else {
				built = artifact
				envelope.DashboardID = &artifact.ID
				envelope.Dashboard = artifact.Document
			}
		}
	}

	envelope.AssistantText = summarize(record, built)
	return envelope
}

// summarize builds the assistant text for a data response.
func summarize(record *models.QueryExecutionRecord, artifact *models.DashboardArtifact) string {
	var text string
	switch record.RowCount {
	case 0:
		text = "The query ran successfully but returned no rows."
	case 1:
		text = fmt.Sprintf("The query returned 1 row in %dms.", record.ElapsedMs)
	default:
		text = fmt.Sprintf("The query returned %d rows in %dms.", record.RowCount, record.ElapsedMs)
	}

	if artifact != nil {
		switch {
		case artifact.ChartCount == 0:
			text += " The dashboard shows a no-results notice."
		case artifact.ChartCount == 1:
			text += " I built a dashboard with 1 chart."
		default:
			text += fmt.Sprintf(" I built a dashboard with %d charts.", artifact.ChartCount)
		}
	}
	return text
}

func errorEnvelope(kind models.RequestKind, err error) *models.ResponseEnvelope {
	errorKind := string(apperrors.KindExecutionError)
	if k, ok := apperrors.KindOf(err); ok {
		errorKind = string(k)
	}
	return &models.ResponseEnvelope{
		Kind:          kind,
		AssistantText: apperrors.UserMessage(err),
		ErrorKind:     errorKind,
	}
}

// EvictSession drops the session lock and the in-memory window. Archived
// sessions never take another request, so the state is dead weight.
func (o *orchestrator) EvictSession(sessionID uuid.UUID) {
	o.locksMu.Lock()
	delete(o.sessionLocks, sessionID)
	o.locksMu.Unlock()
	o.conversations.Forget(sessionID)
}

func (o *orchestrator) sessionLock(sessionID uuid.UUID) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()

	lock, ok := o.sessionLocks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		o.sessionLocks[sessionID] = lock
	}
	return lock
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
