package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/InterlagosConectado/Assistente/internal/genai"
	"github.com/InterlagosConectado/Assistente/internal/models"
)

// InternTemperature is the lowest of the personas; support answers should be
// steady.
const InternTemperature = 0.5

const internSystemPrompt = `Você é o estagiário de suporte técnico do Interlagos Conectado, o aplicativo comunitário do bairro de Interlagos.
Ajude o usuário a resolver dificuldades de uso na tela em que ele está. Seja paciente, passo a passo e específico para a página informada.
Responda em português brasileiro, em tom prestativo e técnico, sem jargões desnecessários.`

// Intern answers contextual help questions about the page the user is on.
// Stateless: no store reads or writes.
type Intern struct {
	genaiClient genai.ClientInterface
}

// NewIntern creates the intern persona generator.
func NewIntern(genaiClient genai.ClientInterface) *Intern {
	return &Intern{genaiClient: genaiClient}
}

// Generate embeds the current page and history into a support prompt. Returns
// no suggested actions.
func (p *Intern) Generate(ctx context.Context, profile *models.UserProfile, req models.ChatRequest, history []models.ConversationTurn) (string, []models.SuggestedAction, error) {
	pageName, pageURL, action := "(desconhecida)", "", ""
	if req.Context != nil {
		pageName = req.Context.PageName
		pageURL = req.Context.PageURL
		action = req.Context.ActionInProgress
	}
	slog.Debug("Intern.Generate invoked", "pageName", pageName)

	userPrompt := fmt.Sprintf("Usuário: %s\nIdioma da resposta: %s\nPágina atual: %s\nURL: %s\nAção em andamento: %s\nMensagem: %s\n\nHistórico recente:\n%s",
		displayName(profile), localeOf(req), pageName, pageURL, action, req.Message, formatHistory(history))

	response, err := p.genaiClient.Generate(ctx, internSystemPrompt, userPrompt, InternTemperature)
	if err != nil {
		slog.Error("Intern.Generate: generation failed", "error", err)
		return "", nil, fmt.Errorf("intern generation failed: %w", err)
	}
	return response, nil, nil
}
