package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/InterlagosConectado/Assistente/internal/genai"
	"github.com/InterlagosConectado/Assistente/internal/models"
	"github.com/InterlagosConectado/Assistente/internal/store"
)

// SalespersonTemperature is the highest of the personas; sales copy benefits
// from variety.
const SalespersonTemperature = 0.8

const salespersonSystemPrompt = `Você é o vendedor virtual do Interlagos Conectado, o aplicativo comunitário do bairro de Interlagos.
Seu papel é apresentar os planos de destaque pagos para comerciantes locais de forma persuasiva, mas honesta.
Use os planos listados abaixo como única fonte de preços e benefícios. Não invente valores.
Responda em português brasileiro, em tom entusiasmado e objetivo.`

// Salesperson pitches the active highlight plans. Read-only with respect to
// user state.
type Salesperson struct {
	st          store.Store
	genaiClient genai.ClientInterface
}

// NewSalesperson creates the salesperson persona generator.
func NewSalesperson(st store.Store, genaiClient genai.ClientInterface) *Salesperson {
	return &Salesperson{st: st, genaiClient: genaiClient}
}

// Generate reads the active plans, folds them into the prompt and produces a
// sales-pitch reply with a canned "view plans" action.
func (p *Salesperson) Generate(ctx context.Context, profile *models.UserProfile, req models.ChatRequest, history []models.ConversationTurn) (string, []models.SuggestedAction, error) {
	plans, err := p.st.ListActivePlans()
	if err != nil {
		slog.Error("Salesperson.Generate: failed to list plans", "error", err)
		return "", nil, fmt.Errorf("failed to list active plans: %w", err)
	}
	slog.Debug("Salesperson.Generate invoked", "activePlans", len(plans))

	userPrompt := fmt.Sprintf("Usuário: %s\nIdioma da resposta: %s\nMensagem: %s\n\nPlanos ativos:\n%s\n\nHistórico recente:\n%s",
		displayName(profile), localeOf(req), req.Message, formatPlans(plans), formatHistory(history))

	response, err := p.genaiClient.Generate(ctx, salespersonSystemPrompt, userPrompt, SalespersonTemperature)
	if err != nil {
		slog.Error("Salesperson.Generate: generation failed", "error", err)
		return "", nil, fmt.Errorf("salesperson generation failed: %w", err)
	}

	actions := []models.SuggestedAction{
		{Label: "Ver planos", Action: "navigate", Payload: "/planos"},
	}
	return response, actions, nil
}
