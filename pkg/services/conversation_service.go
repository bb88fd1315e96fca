// Package services contains the engine's business logic: conversation
// state, intent routing, query generation and execution, rate limiting,
// sessions and the request orchestrator.
package services

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/askdeck-ai/askdeck-engine/pkg/models"
	"github.com/askdeck-ai/askdeck-engine/pkg/repositories"
)

const (
	// WindowSize is the maximum number of messages kept as model context.
	WindowSize = 8
	// MaxMessageChars is the per-message truncation length for model context.
	MaxMessageChars = 1000
)

// DefaultStandaloneTerms mark a request as self-contained; history is
// omitted from the model context for these unless a contextual term is
// also present.
var DefaultStandaloneTerms = []string{
	"who", "what", "how many", "show me", "list", "get", "find", "count", "which", "when",
}

// DefaultContextualTerms force history inclusion; a match here always wins
// over a standalone match.
var DefaultContextualTerms = []string{
	"that", "those", "same", "also", "it", "them", "previous", "again",
}

// ConversationService maintains the bounded per-session context window and
// decides whether a request needs conversation history at all.
type ConversationService interface {
	// ShouldIncludeHistory reports whether the request text needs prior
	// conversation context.
	ShouldIncludeHistory(text string) bool

	// Window returns the current context window for a session, oldest first.
	Window(ctx context.Context, sessionID uuid.UUID) (models.ConversationWindow, error)

	// Append records a message into the session window. Error responses are
	// excluded from the window; content is truncated as it is written so the
	// stored window stays bounded.
	Append(ctx context.Context, sessionID uuid.UUID, role models.MessageRole, content string, isError bool)

	// Forget drops the in-memory window for a session.
	Forget(sessionID uuid.UUID)
}

type conversationService struct {
	messageRepo     repositories.MessageRepository
	standaloneTerms []*regexp.Regexp
	contextualTerms []*regexp.Regexp

	mu      sync.Mutex
	windows map[uuid.UUID]models.ConversationWindow

	logger *zap.Logger
}

// NewConversationService creates a ConversationService. Empty term lists
// fall back to the defaults.
func NewConversationService(messageRepo repositories.MessageRepository, standaloneTerms, contextualTerms []string, logger *zap.Logger) ConversationService {
	if len(standaloneTerms) == 0 {
		standaloneTerms = DefaultStandaloneTerms
	}
	if len(contextualTerms) == 0 {
		contextualTerms = DefaultContextualTerms
	}

	return &conversationService{
		messageRepo:     messageRepo,
		standaloneTerms: compileTerms(standaloneTerms),
		contextualTerms: compileTerms(contextualTerms),
		windows:         make(map[uuid.UUID]models.ConversationWindow),
		logger:          logger.Named("conversation"),
	}
}

var _ ConversationService = (*conversationService)(nil)

func compileTerms(terms []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(terms))
	for _, term := range terms {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(strings.ToLower(term))+`\b`))
	}
	return patterns
}

func (s *conversationService) ShouldIncludeHistory(text string) bool {
	lower := strings.ToLower(text)

	// A contextual term always forces history, even alongside a standalone term.
	for _, pattern := range s.contextualTerms {
		if pattern.MatchString(lower) {
			return true
		}
	}
	for _, pattern := range s.standaloneTerms {
		if pattern.MatchString(lower) {
			return false
		}
	}
	return true
}

func (s *conversationService) Window(ctx context.Context, sessionID uuid.UUID) (models.ConversationWindow, error) {
	window, err := s.hydrate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return append(models.ConversationWindow(nil), window...), nil
}

func (s *conversationService) Append(ctx context.Context, sessionID uuid.UUID, role models.MessageRole, content string, isError bool) {
	if isError {
		return
	}

	// Rebuild from the store first so a restart does not lose context.
	if _, err := s.hydrate(ctx, sessionID); err != nil {
		s.logger.Warn("failed to hydrate window, starting empty",
			zap.String("sessionID", sessionID.String()),
			zap.Error(err),
		)
	}

	entry := models.WindowEntry{
		Role:    role,
		Content: truncate(content, MaxMessageChars),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.windows[sessionID], entry)
	if len(window) > WindowSize {
		window = window[len(window)-WindowSize:]
	}
	s.windows[sessionID] = window
}

// hydrate returns the session window, loading it from the message store on
// first access. The returned slice is the shared window; callers copy.
func (s *conversationService) hydrate(ctx context.Context, sessionID uuid.UUID) (models.ConversationWindow, error) {
	s.mu.Lock()
	window, ok := s.windows[sessionID]
	s.mu.Unlock()
	if ok {
		return window, nil
	}

	messages, err := s.messageRepo.ListRecent(ctx, sessionID, WindowSize)
	if err != nil {
		return nil, err
	}

	loaded := make(models.ConversationWindow, 0, len(messages))
	for _, message := range messages {
		loaded = append(loaded, models.WindowEntry{
			Role:    message.Role,
			Content: truncate(message.Content, MaxMessageChars),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.windows[sessionID]; ok {
		return existing, nil
	}
	s.windows[sessionID] = loaded
	return loaded, nil
}

func (s *conversationService) Forget(sessionID uuid.UUID) {
	s.mu.Lock()
	delete(s.windows, sessionID)
	s.mu.Unlock()
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
