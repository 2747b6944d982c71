package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/InterlagosConectado/Assistente/internal/genai"
	"github.com/InterlagosConectado/Assistente/internal/models"
	"github.com/InterlagosConectado/Assistente/internal/store"
)

// Default pipeline configuration
const (
	// DefaultRateLimitWindow is the minimum gap between user messages.
	DefaultRateLimitWindow = 2000 * time.Millisecond
	// DefaultHistoryLimit is how many turns are read for prompt context.
	DefaultHistoryLimit = 10
)

// ThrottleMessage is the fixed reply for rate-limited requests.
const ThrottleMessage = "Você está enviando mensagens muito rápido. Aguarde um instante antes de tentar novamente."

// Opts holds configuration options for the chat flow.
type Opts struct {
	RateLimitWindow time.Duration
	HistoryLimit    int
	Classifier      Classifier
}

// Option defines a configuration option for the chat flow.
type Option func(*Opts)

// WithRateLimitWindow overrides the per-user minimum message gap.
func WithRateLimitWindow(d time.Duration) Option {
	return func(o *Opts) {
		o.RateLimitWindow = d
	}
}

// WithHistoryLimit overrides how many turns are read for prompt context.
func WithHistoryLimit(n int) Option {
	return func(o *Opts) {
		o.HistoryLimit = n
	}
}

// WithClassifier swaps the intent classifier used by the router.
func WithClassifier(c Classifier) Option {
	return func(o *Opts) {
		o.Classifier = c
	}
}

// ChatFlow orchestrates one chat request: validate, throttle, read history,
// route to a persona, generate, and append the user/bot turn pair.
type ChatFlow struct {
	st              store.Store
	router          *Router
	receptionist    *Receptionist
	salesperson     *Salesperson
	intern          *Intern
	rateLimitWindow time.Duration
	historyLimit    int
}

// NewChatFlow wires the pipeline with its dependencies.
func NewChatFlow(st store.Store, genaiClient genai.ClientInterface, opts ...Option) *ChatFlow {
	cfg := Opts{
		RateLimitWindow: DefaultRateLimitWindow,
		HistoryLimit:    DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewKeywordClassifier()
	}
	slog.Debug("NewChatFlow: creating flow", "rateLimitWindow", cfg.RateLimitWindow, "historyLimit", cfg.HistoryLimit)

	return &ChatFlow{
		st:              st,
		router:          NewRouter(cfg.Classifier),
		receptionist:    NewReceptionist(st, genaiClient),
		salesperson:     NewSalesperson(st, genaiClient),
		intern:          NewIntern(genaiClient),
		rateLimitWindow: cfg.RateLimitWindow,
		historyLimit:    cfg.HistoryLimit,
	}
}

// ProcessMessage runs the full pipeline for one authenticated user request.
//
// Validation failures are returned before any store access. The throttled
// path returns a fixed system reply and performs zero history writes. All
// other store or LLM errors propagate to the caller; there is no retry or
// canned-reply fallback.
func (f *ChatFlow) ProcessMessage(ctx context.Context, userID string, req models.ChatRequest) (*models.ChatResponse, error) {
	if userID == "" {
		return nil, models.ErrEmptyUserID
	}
	if err := req.Validate(); err != nil {
		slog.Warn("ChatFlow.ProcessMessage: validation failed", "error", err, "uid", userID)
		return nil, err
	}

	lastUserTurn, err := f.st.LastUserTurn(userID)
	if err != nil {
		slog.Error("ChatFlow.ProcessMessage: failed to read last user turn", "error", err, "uid", userID)
		return nil, fmt.Errorf("failed to read last user turn: %w", err)
	}
	now := time.Now()
	if lastUserTurn != nil && now.Sub(lastUserTurn.Timestamp) < f.rateLimitWindow {
		slog.Info("ChatFlow.ProcessMessage: throttled", "uid", userID, "sinceLast", now.Sub(lastUserTurn.Timestamp))
		return &models.ChatResponse{
			ResponseMessage: ThrottleMessage,
			PersonaUsed:     models.PersonaSystem,
		}, nil
	}

	profile, err := f.ensureProfile(userID, req)
	if err != nil {
		return nil, err
	}

	history, err := f.st.ListRecentTurns(userID, f.historyLimit)
	if err != nil {
		slog.Error("ChatFlow.ProcessMessage: failed to read history", "error", err, "uid", userID)
		return nil, fmt.Errorf("failed to read conversation history: %w", err)
	}

	persona := f.router.Route(profile, req.Message, req.Context)
	slog.Debug("ChatFlow.ProcessMessage: routed", "uid", userID, "persona", persona)

	var responseMessage string
	var actions []models.SuggestedAction
	switch persona {
	case models.PersonaReceptionist:
		responseMessage, actions, err = f.receptionist.Generate(ctx, profile, req, history)
	case models.PersonaSalesperson:
		responseMessage, actions, err = f.salesperson.Generate(ctx, profile, req, history)
	case models.PersonaIntern:
		responseMessage, actions, err = f.intern.Generate(ctx, profile, req, history)
	default:
		err = fmt.Errorf("no generator for persona %s", persona)
	}
	if err != nil {
		slog.Error("ChatFlow.ProcessMessage: persona generation failed", "error", err, "uid", userID, "persona", persona)
		return nil, err
	}

	if err := f.appendTurnPair(userID, req.Message, responseMessage, persona, now); err != nil {
		return nil, err
	}

	slog.Info("ChatFlow.ProcessMessage: completed", "uid", userID, "persona", persona, "responseLength", len(responseMessage))
	return &models.ChatResponse{
		ResponseMessage:  responseMessage,
		SuggestedActions: actions,
		PersonaUsed:      persona,
	}, nil
}

// ensureProfile loads the stored profile, falling back to the inline profile
// carried by the request. A missing profile means "new user": a fresh record
// is created so the onboarding transition has a row to act on.
func (f *ChatFlow) ensureProfile(userID string, req models.ChatRequest) (*models.UserProfile, error) {
	profile, err := f.st.GetUserProfile(userID)
	if err != nil {
		slog.Error("ChatFlow.ensureProfile: failed to load profile", "error", err, "uid", userID)
		return nil, fmt.Errorf("failed to load user profile: %w", err)
	}
	if profile != nil {
		return profile, nil
	}

	now := time.Now()
	fresh := models.UserProfile{UID: userID, CreatedAt: now, UpdatedAt: now}
	if req.UserProfile != nil {
		fresh.DisplayName = req.UserProfile.DisplayName
		fresh.HasCompletedOnboarding = req.UserProfile.HasCompletedOnboarding
	}
	if err := f.st.SaveUserProfile(fresh); err != nil {
		slog.Error("ChatFlow.ensureProfile: failed to create profile", "error", err, "uid", userID)
		return nil, fmt.Errorf("failed to create user profile: %w", err)
	}
	slog.Info("ChatFlow.ensureProfile: created new profile", "uid", userID)
	return &fresh, nil
}

// appendTurnPair records the user turn and then the bot turn. Chronological
// order is guaranteed by the store-assigned sequence numbers, not timestamps.
func (f *ChatFlow) appendTurnPair(userID, userMessage, botMessage string, persona models.Persona, now time.Time) error {
	userTurn := models.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Sender:    models.SenderUser,
		Message:   userMessage,
		Timestamp: now,
	}
	if _, err := f.st.AppendTurn(userTurn); err != nil {
		slog.Error("ChatFlow.appendTurnPair: failed to append user turn", "error", err, "uid", userID)
		return fmt.Errorf("failed to append user turn: %w", err)
	}

	botTurn := models.ConversationTurn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Sender:    models.SenderChatbot,
		Message:   botMessage,
		Persona:   persona,
		Timestamp: time.Now(),
	}
	if _, err := f.st.AppendTurn(botTurn); err != nil {
		slog.Error("ChatFlow.appendTurnPair: failed to append bot turn", "error", err, "uid", userID)
		return fmt.Errorf("failed to append bot turn: %w", err)
	}
	return nil
}
