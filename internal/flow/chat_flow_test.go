package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/InterlagosConectado/Assistente/internal/models"
	"github.com/InterlagosConectado/Assistente/internal/store"
	"github.com/InterlagosConectado/Assistente/internal/testutil"
)

// recordingStore wraps another store and records every call, with optional
// per-method injected failures.
type recordingStore struct {
	inner  store.Store
	calls  []string
	failOn map[string]error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{inner: store.NewInMemoryStore(), failOn: map[string]error{}}
}

func (r *recordingStore) record(method string) error {
	r.calls = append(r.calls, method)
	return r.failOn[method]
}

func (r *recordingStore) GetUserProfile(uid string) (*models.UserProfile, error) {
	if err := r.record("GetUserProfile"); err != nil {
		return nil, err
	}
	return r.inner.GetUserProfile(uid)
}

func (r *recordingStore) SaveUserProfile(p models.UserProfile) error {
	if err := r.record("SaveUserProfile"); err != nil {
		return err
	}
	return r.inner.SaveUserProfile(p)
}

func (r *recordingStore) CompleteOnboarding(uid string) (bool, error) {
	if err := r.record("CompleteOnboarding"); err != nil {
		return false, err
	}
	return r.inner.CompleteOnboarding(uid)
}

func (r *recordingStore) AppendTurn(turn models.ConversationTurn) (models.ConversationTurn, error) {
	if err := r.record("AppendTurn"); err != nil {
		return models.ConversationTurn{}, err
	}
	return r.inner.AppendTurn(turn)
}

func (r *recordingStore) ListRecentTurns(uid string, limit int) ([]models.ConversationTurn, error) {
	if err := r.record("ListRecentTurns"); err != nil {
		return nil, err
	}
	return r.inner.ListRecentTurns(uid, limit)
}

func (r *recordingStore) LastUserTurn(uid string) (*models.ConversationTurn, error) {
	if err := r.record("LastUserTurn"); err != nil {
		return nil, err
	}
	return r.inner.LastUserTurn(uid)
}

func (r *recordingStore) ListActivePlans() ([]models.Plan, error) {
	if err := r.record("ListActivePlans"); err != nil {
		return nil, err
	}
	return r.inner.ListActivePlans()
}

func (r *recordingStore) SavePlan(p models.Plan) error {
	if err := r.record("SavePlan"); err != nil {
		return err
	}
	return r.inner.SavePlan(p)
}

func (r *recordingStore) Close() error { return r.inner.Close() }

func onboardedUser(t *testing.T, st store.Store, uid string) {
	t.Helper()
	now := time.Now()
	if err := st.SaveUserProfile(models.UserProfile{
		UID: uid, DisplayName: "Seu José", HasCompletedOnboarding: true,
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("failed to seed profile: %v", err)
	}
}

func TestProcessMessageValidation(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		message string
		wantErr error
	}{
		{name: "empty user id", userID: "", message: "oi", wantErr: models.ErrEmptyUserID},
		{name: "empty message", userID: "user-1", message: "", wantErr: models.ErrEmptyMessage},
		{name: "whitespace message", userID: "user-1", message: "  \n ", wantErr: models.ErrEmptyMessage},
		{name: "too long message", userID: "user-1", message: strings.Repeat("x", models.MaxChatMessageLength+1), wantErr: models.ErrMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := newRecordingStore()
			mock := &testutil.MockGenAIClient{}
			f := NewChatFlow(st, mock)

			_, err := f.ProcessMessage(context.Background(), tt.userID, models.ChatRequest{Message: tt.message})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ProcessMessage() error = %v, want %v", err, tt.wantErr)
			}
			if len(st.calls) != 0 {
				t.Errorf("expected zero store calls before validation, got %v", st.calls)
			}
			if mock.Calls != 0 {
				t.Errorf("expected zero LLM calls, got %d", mock.Calls)
			}
		})
	}
}

func TestProcessMessageThrottled(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")
	if _, err := st.inner.AppendTurn(models.ConversationTurn{
		ID: "t1", UserID: "user-1", Sender: models.SenderUser, Message: "oi", Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed turn: %v", err)
	}

	mock := &testutil.MockGenAIClient{}
	f := NewChatFlow(st, mock)

	resp, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "de novo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PersonaUsed != models.PersonaSystem {
		t.Errorf("persona = %q, want system", resp.PersonaUsed)
	}
	if resp.ResponseMessage != ThrottleMessage {
		t.Errorf("message = %q, want the fixed throttle reply", resp.ResponseMessage)
	}
	if mock.Calls != 0 {
		t.Errorf("expected zero LLM calls, got %d", mock.Calls)
	}
	for _, call := range st.calls {
		if call == "AppendTurn" || call == "SaveUserProfile" || call == "CompleteOnboarding" {
			t.Errorf("throttled request must not write, but called %s", call)
		}
	}
	turns, _ := st.inner.ListRecentTurns("user-1", 10)
	if len(turns) != 1 {
		t.Errorf("expected the seeded turn only, got %d turns", len(turns))
	}
}

func TestProcessMessageFirstContact(t *testing.T) {
	st := newRecordingStore()
	mock := &testutil.MockGenAIClient{Response: "Bem-vindo ao Interlagos Conectado!"}
	f := NewChatFlow(st, mock)

	resp, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{
		Message:     "Oi!",
		UserProfile: &models.UserProfile{DisplayName: "Dona Maria"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PersonaUsed != models.PersonaReceptionist {
		t.Errorf("persona = %q, want receptionist", resp.PersonaUsed)
	}
	if resp.ResponseMessage != "Bem-vindo ao Interlagos Conectado!" {
		t.Errorf("unexpected response message: %q", resp.ResponseMessage)
	}
	if len(resp.SuggestedActions) != 2 {
		t.Errorf("expected 2 onboarding actions, got %d", len(resp.SuggestedActions))
	}
	if mock.Calls != 1 || mock.Temperatures[0] != ReceptionistTemperature {
		t.Errorf("LLM calls = %d, temperature = %v", mock.Calls, mock.Temperatures)
	}

	profile, err := st.inner.GetUserProfile("user-1")
	if err != nil || profile == nil {
		t.Fatalf("expected created profile, got (%+v, %v)", profile, err)
	}
	if profile.DisplayName != "Dona Maria" {
		t.Errorf("display name = %q, want the inline profile's name", profile.DisplayName)
	}
	if !profile.HasCompletedOnboarding {
		t.Error("expected onboarding completed after first contact")
	}

	turns, _ := st.inner.ListRecentTurns("user-1", 10)
	if len(turns) != 2 {
		t.Fatalf("expected user and bot turns, got %d", len(turns))
	}
	if turns[0].Sender != models.SenderUser || turns[0].Message != "Oi!" || turns[0].Seq != 1 {
		t.Errorf("user turn wrong: %+v", turns[0])
	}
	if turns[1].Sender != models.SenderChatbot || turns[1].Persona != models.PersonaReceptionist || turns[1].Seq != 2 {
		t.Errorf("bot turn wrong: %+v", turns[1])
	}
	if turns[0].Persona != "" {
		t.Errorf("user turn must not carry a persona, got %q", turns[0].Persona)
	}
}

func TestProcessMessageSalesPitch(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")
	if err := st.inner.SavePlan(models.Plan{
		ID: "p1", Name: "Destaque Ouro", Price: 99.9, Currency: "BRL",
		Description: "topo do guia comercial", IsActive: true,
	}); err != nil {
		t.Fatalf("failed to seed plan: %v", err)
	}

	mock := &testutil.MockGenAIClient{Response: "O Destaque Ouro coloca seu comércio no topo!"}
	f := NewChatFlow(st, mock)

	resp, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{
		Message: "quanto custa o plano de destaque?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PersonaUsed != models.PersonaSalesperson {
		t.Errorf("persona = %q, want salesperson", resp.PersonaUsed)
	}
	if mock.Calls != 1 || mock.Temperatures[0] != SalespersonTemperature {
		t.Errorf("LLM calls = %d, temperature = %v", mock.Calls, mock.Temperatures)
	}
	if !strings.Contains(mock.UserPrompts[0], "Destaque Ouro") {
		t.Errorf("plan catalog missing from prompt:\n%s", mock.UserPrompts[0])
	}
	if len(resp.SuggestedActions) != 1 || resp.SuggestedActions[0].Payload != "/planos" {
		t.Errorf("unexpected actions: %+v", resp.SuggestedActions)
	}
}

func TestProcessMessageContextualHelp(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")

	mock := &testutil.MockGenAIClient{Response: "Toque em Publicar no canto inferior."}
	f := NewChatFlow(st, mock)

	resp, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{
		Message: "não consigo publicar meu anúncio, dá erro",
		Context: &models.ChatContext{PageName: "Classificados", PageURL: "/classificados/novo"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PersonaUsed != models.PersonaIntern {
		t.Errorf("persona = %q, want intern", resp.PersonaUsed)
	}
	if mock.Temperatures[0] != InternTemperature {
		t.Errorf("temperature = %v, want %v", mock.Temperatures[0], InternTemperature)
	}
	if !strings.Contains(mock.UserPrompts[0], "Classificados") {
		t.Errorf("page context missing from prompt:\n%s", mock.UserPrompts[0])
	}
	if len(resp.SuggestedActions) != 0 {
		t.Errorf("intern replies carry no actions, got %+v", resp.SuggestedActions)
	}
}

func TestProcessMessageHistoryInPrompt(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")
	old := time.Now().Add(-time.Minute)
	for i, pair := range []struct{ sender, msg string }{
		{models.SenderUser, "qual o horário da padaria?"},
		{models.SenderChatbot, "A Padaria Estrela abre às 6h."},
	} {
		if _, err := st.inner.AppendTurn(models.ConversationTurn{
			ID: "seed", UserID: "user-1", Sender: pair.sender, Message: pair.msg,
			Timestamp: old.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("failed to seed turn: %v", err)
		}
	}

	mock := &testutil.MockGenAIClient{}
	f := NewChatFlow(st, mock)

	if _, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "obrigado!"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(mock.UserPrompts[0], "Padaria Estrela") {
		t.Errorf("history missing from prompt:\n%s", mock.UserPrompts[0])
	}
}

func TestProcessMessageLocaleInPrompt(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")

	t.Run("defaults to pt-BR", func(t *testing.T) {
		mock := &testutil.MockGenAIClient{}
		f := NewChatFlow(st, mock, WithRateLimitWindow(0))
		if _, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "bom dia"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(mock.UserPrompts[0], models.DefaultLocale) {
			t.Errorf("default locale missing from prompt:\n%s", mock.UserPrompts[0])
		}
	})

	t.Run("request locale wins", func(t *testing.T) {
		mock := &testutil.MockGenAIClient{}
		f := NewChatFlow(st, mock, WithRateLimitWindow(0))
		req := models.ChatRequest{Message: "good morning", Locale: "en-US"}
		if _, err := f.ProcessMessage(context.Background(), "user-1", req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(mock.UserPrompts[0], "en-US") {
			t.Errorf("request locale missing from prompt:\n%s", mock.UserPrompts[0])
		}
	})
}

func TestProcessMessageGenerationFailure(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")

	mock := &testutil.MockGenAIClient{Err: errors.New("upstream unavailable")}
	f := NewChatFlow(st, mock)

	_, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "bom dia"})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	turns, _ := st.inner.ListRecentTurns("user-1", 10)
	if len(turns) != 0 {
		t.Errorf("failed generation must not persist turns, got %d", len(turns))
	}
}

func TestProcessMessageStoreFailure(t *testing.T) {
	st := newRecordingStore()
	st.failOn["LastUserTurn"] = errors.New("connection refused")

	f := NewChatFlow(st, &testutil.MockGenAIClient{})
	_, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "oi"})
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestProcessMessageCustomClassifier(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")

	mock := &testutil.MockGenAIClient{}
	f := NewChatFlow(st, mock, WithClassifier(staticClassifier(models.PersonaIntern)))

	resp, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "qualquer coisa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PersonaUsed != models.PersonaIntern {
		t.Errorf("persona = %q, want intern from the custom classifier", resp.PersonaUsed)
	}
}

// staticClassifier always returns the same persona.
type staticClassifier models.Persona

func (c staticClassifier) Classify(string, bool) models.Persona { return models.Persona(c) }

func TestProcessMessageRateLimitWindowOption(t *testing.T) {
	st := newRecordingStore()
	onboardedUser(t, st.inner, "user-1")
	if _, err := st.inner.AppendTurn(models.ConversationTurn{
		ID: "t1", UserID: "user-1", Sender: models.SenderUser, Message: "oi", Timestamp: time.Now(),
	}); err != nil {
		t.Fatalf("failed to seed turn: %v", err)
	}

	// A zero window disables throttling entirely.
	f := NewChatFlow(st, &testutil.MockGenAIClient{}, WithRateLimitWindow(0))
	resp, err := f.ProcessMessage(context.Background(), "user-1", models.ChatRequest{Message: "de novo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.PersonaUsed == models.PersonaSystem {
		t.Error("expected no throttling with a zero window")
	}
}
