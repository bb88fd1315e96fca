package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/adapters/datasource"
	"github.com/askdeck-ai/askdeck-engine/pkg/apperrors"
	"github.com/askdeck-ai/askdeck-engine/pkg/llm"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/prompts"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
	sqlpkg "github.com/askdeck-ai/askdeck-engine/pkg/sql"
)

const (
	DefaultQueryTimeout = 30 * time.Second
	DefaultRowCap       = 10000

	queryStatusSucceeded = "succeeded"
	queryStatusFailed    = "failed"
)

// SchemaProvider resolves the cached schema for a datasource.
type SchemaProvider interface {
	Get(ctx context.Context, ds *models.Datasource) (*models.SchemaDescriptor, error)
}

// AdapterProvider yields a live adapter for a datasource.
type AdapterProvider interface {
	GetOrCreate(ctx context.Context, ds *models.Datasource) (datasource.Adapter, error)
}

// QueryServiceConfig bounds query generation and execution.
type QueryServiceConfig struct {
	QueryTimeout time.Duration
	RowCap       int
}

// QueryService turns a natural-language request into an executed, bounded
// SQL query. Rejected candidates and execution errors are repaired by the
// model exactly once; timeouts and connectivity failures are surfaced
// immediately.
type QueryService interface {
	Run(ctx context.Context, ds *models.Datasource, text string, window models.ConversationWindow, agentCtx *models.AgentContext) (*models.QueryExecutionRecord, error)
}

type queryService struct {
	schemas   SchemaProvider
	adapters  AdapterProvider
	llmClient llm.GenerationClient
	queryRepo repositories.QueryRepository
	cfg       QueryServiceConfig
	logger    *zap.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(
	schemas SchemaProvider,
	adapters AdapterProvider,
	llmClient llm.GenerationClient,
	queryRepo repositories.QueryRepository,
	cfg QueryServiceConfig,
	logger *zap.Logger,
) QueryService {
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.RowCap <= 0 {
		cfg.RowCap = DefaultRowCap
	}
	return &queryService{
		schemas:   schemas,
		adapters:  adapters,
		llmClient: llmClient,
		queryRepo: queryRepo,
		cfg:       cfg,
		logger:    logger.Named("query"),
	}
}

var _ QueryService = (*queryService)(nil)

// Run executes the query pipeline for one request. On success the saved
// record is returned; on failure the classified error is returned and a
// failed record is still persisted when a candidate query existed.
func (s *queryService) Run(ctx context.Context, ds *models.Datasource, text string, window models.ConversationWindow, agentCtx *models.AgentContext) (*models.QueryExecutionRecord, error) {
	schema, err := s.schemas.Get(ctx, ds)
	if err != nil {
		return nil, err
	}
	agentCtx.Schema = schema

	adapter, err := s.adapters.GetOrCreate(ctx, ds)
	if err != nil {
		return nil, apperrors.New(apperrors.KindConnectivityError, err)
	}

	candidate, err := s.generate(ctx, prompts.BuildSQLPrompt(text, schema, window))
	if err != nil {
		return nil, err
	}

	record := &models.QueryExecutionRecord{
		SessionID:    agentCtx.SessionID,
		DatasourceID: ds.ID,
		Prompt:       text,
		Status:       queryStatusFailed,
	}

	var stageErr error
	validated, validationErr := s.validate(candidate)
	if validationErr != nil {
		record.SQL = candidate
		stageErr = validationErr
	} else {
		record.SQL = validated
		execErr := s.execute(ctx, adapter, record)
		if execErr == nil {
			s.persist(ctx, record, nil)
			return record, nil
		}
		// Timeouts and connectivity failures surface immediately.
		if !apperrors.IsKind(execErr, apperrors.KindExecutionError) {
			s.persist(ctx, record, execErr)
			return nil, execErr
		}
		stageErr = execErr
	}

	// One model-driven repair, shared by rejected candidates and plain
	// execution errors. A rejected or failing repair is terminal.
	s.logger.Info("query failed, attempting repair",
		zap.String("sessionID", agentCtx.SessionID.String()),
		zap.Error(stageErr),
	)

	record.RetryCount = 1
	agentCtx.RetryCount = 1

	repaired, repairErr := s.repair(ctx, text, record.SQL, stageErr, schema)
	if repairErr != nil {
		s.persist(ctx, record, stageErr)
		return nil, repairErr
	}
	record.SQL = repaired

	if execErr := s.execute(ctx, adapter, record); execErr != nil {
		s.persist(ctx, record, execErr)
		return nil, execErr
	}

	s.persist(ctx, record, nil)
	return record, nil
}

// generate asks the model for a candidate query and normalizes the raw
// response text.
func (s *queryService) generate(ctx context.Context, prompt string) (string, error) {
	response, err := s.llmClient.Generate(ctx, prompt, prompts.BuildSQLSystemMessage(), 0.1)
	if err != nil {
		if llm.IsTimeout(err) {
			return "", apperrors.New(apperrors.KindGenerationTimeout, err)
		}
		return "", apperrors.New(apperrors.KindGenerationError, err)
	}

	candidate := cleanSQLResponse(response)
	if candidate == "" {
		return "", apperrors.New(apperrors.KindGenerationError, errors.New("model returned no query"))
	}
	return candidate, nil
}

func (s *queryService) validate(candidate string) (string, error) {
	result := sqlpkg.ValidateGenerated(candidate)
	if result.Error != nil {
		return "", apperrors.New(apperrors.KindValidationRejected, result.Error)
	}
	return result.NormalizedSQL, nil
}

// execute runs the validated query under the stage timeout and fills the
// record on success.
func (s *queryService) execute(ctx context.Context, adapter datasource.Adapter, record *models.QueryExecutionRecord) error {
	execCtx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := adapter.Query(execCtx, record.SQL, s.cfg.RowCap)
	record.ElapsedMs = time.Since(start).Milliseconds()

	if err != nil {
		return datasource.ClassifyQueryError(err)
	}

	record.Columns = make([]models.ResultColumn, len(result.Columns))
	for i, col := range result.Columns {
		record.Columns[i] = models.ResultColumn{Name: col.Name, Type: col.Type}
	}
	record.Rows = result.Rows
	record.RowCount = result.RowCount
	record.Status = queryStatusSucceeded
	return nil
}

// repair feeds the failure back to the model and validates the corrected
// candidate.
func (s *queryService) repair(ctx context.Context, text, failedSQL string, execErr error, schema *models.SchemaDescriptor) (string, error) {
	failure := execErr.Error()
	var agentErr *apperrors.AgentError
	if errors.As(execErr, &agentErr) && agentErr.Cause != nil {
		failure = agentErr.Cause.Error()
	}

	candidate, err := s.generate(ctx, prompts.BuildSQLRepairPrompt(text, failedSQL, failure, schema))
	if err != nil {
		return "", err
	}
	return s.validate(candidate)
}

func (s *queryService) persist(ctx context.Context, record *models.QueryExecutionRecord, failure error) {
	if record.SQL == "" {
		return
	}
	if failure != nil {
		record.Status = queryStatusFailed
		detail := failure.Error()
		record.ErrorDetail = &detail
	}
	if err := s.queryRepo.Save(ctx, record); err != nil {
		s.logger.Error("failed to save query record", zap.Error(err))
	}
}

// cleanSQLResponse strips markdown fences and a leading language tag from
// a raw model response.
func cleanSQLResponse(response string) string {
	text := strings.TrimSpace(response)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.Index(text, "\n"); idx >= 0 && len(strings.Fields(text[:idx])) <= 1 {
			text = text[idx+1:]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}
