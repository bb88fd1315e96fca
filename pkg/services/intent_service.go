package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/llm"
	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/prompts"
)

// intentCacheLimit bounds the decision cache. The map is reset once it
// fills rather than tracking per-entry age.
const intentCacheLimit = 256

// IntentDecision is the routing outcome for one request.
type IntentDecision struct {
	Kind models.RequestKind
	// Downgraded is set when a data-bound kind was downgraded to general
	// because the session has no datasource.
	Downgraded bool
}

// IntentService routes a request to the right pipeline.
type IntentService interface {
	Classify(ctx context.Context, text string, window models.ConversationWindow, hasDatasource bool) IntentDecision
}

type intentService struct {
	llmClient llm.GenerationClient
	logger    *zap.Logger

	mu    sync.Mutex
	cache map[string]models.RequestKind
}

// NewIntentService creates an IntentService backed by the generation client.
func NewIntentService(llmClient llm.GenerationClient, logger *zap.Logger) IntentService {
	return &intentService{
		llmClient: llmClient,
		logger:    logger.Named("intent"),
		cache:     make(map[string]models.RequestKind),
	}
}

var _ IntentService = (*intentService)(nil)

type intentResponse struct {
	Intent string `json:"intent"`
}

// Classify asks the model for a routing decision, caching successful
// classifications on normalized text so a repeated question skips the
// model call. Classification failures fall back to general rather than
// failing the request, and data-bound kinds are downgraded to general
// when no datasource is bound.
func (s *intentService) Classify(ctx context.Context, text string, window models.ConversationWindow, hasDatasource bool) IntentDecision {
	key := intentCacheKey(text, hasDatasource)

	kind, ok := s.cachedKind(key)
	if !ok {
		var err error
		kind, err = s.classifyWithModel(ctx, text, window, hasDatasource)
		if err != nil {
			s.logger.Warn("intent classification failed, falling back to general", zap.Error(err))
			return IntentDecision{Kind: models.KindGeneral}
		}
		s.storeKind(key, kind)
	}

	if !hasDatasource && kind != models.KindGeneral {
		s.logger.Debug("downgrading intent, no datasource bound",
			zap.String("requested", string(kind)),
		)
		return IntentDecision{Kind: models.KindGeneral, Downgraded: true}
	}

	return IntentDecision{Kind: kind}
}

func intentCacheKey(text string, hasDatasource bool) string {
	return strings.ToLower(strings.TrimSpace(text)) + "|" + strconv.FormatBool(hasDatasource)
}

func (s *intentService) cachedKind(key string) (models.RequestKind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind, ok := s.cache[key]
	return kind, ok
}

func (s *intentService) storeKind(key string, kind models.RequestKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cache) >= intentCacheLimit {
		s.cache = make(map[string]models.RequestKind)
	}
	s.cache[key] = kind
}

func (s *intentService) classifyWithModel(ctx context.Context, text string, window models.ConversationWindow, hasDatasource bool) (models.RequestKind, error) {
	prompt := prompts.BuildIntentPrompt(text, window, hasDatasource)

	response, err := s.llmClient.Generate(ctx, prompt, prompts.BuildIntentSystemMessage(), 0.0)
	if err != nil {
		return "", fmt.Errorf("intent classification: %w", err)
	}

	parsed, err := llm.ParseJSONResponse[intentResponse](response)
	if err != nil {
		return "", fmt.Errorf("parse intent response: %w", err)
	}

	switch kind := models.RequestKind(parsed.Intent); kind {
	case models.KindGeneral, models.KindSQL, models.KindDashboard, models.KindSQLAndDashboard:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown intent %q", parsed.Intent)
	}
}
