package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/InterlagosConectado/Assistente/internal/genai"
	"github.com/InterlagosConectado/Assistente/internal/models"
	"github.com/InterlagosConectado/Assistente/internal/store"
)

// ReceptionistTemperature balances warmth with predictability.
const ReceptionistTemperature = 0.7

const receptionistWelcomePrompt = `Você é a recepcionista virtual do Interlagos Conectado, o aplicativo comunitário do bairro de Interlagos.
Este é o primeiro contato com este usuário. Dê boas-vindas calorosas, apresente rapidamente o que o aplicativo oferece
(guia comercial, classificados, mural de doações e voluntariado, notícias do bairro) e convide a pessoa a explorar.
Responda em português brasileiro, em tom acolhedor e conciso.`

const receptionistHelpPrompt = `Você é a recepcionista virtual do Interlagos Conectado, o aplicativo comunitário do bairro de Interlagos.
Ajude o usuário a encontrar o que procura no aplicativo (guia comercial, classificados, doações, notícias) e indique a seção certa.
Responda em português brasileiro, em tom simpático e direto.`

// Receptionist greets users, runs first-contact onboarding and routes general
// questions. Onboarding completion is its single side effect.
type Receptionist struct {
	st          store.Store
	genaiClient genai.ClientInterface
}

// NewReceptionist creates the receptionist persona generator.
func NewReceptionist(st store.Store, genaiClient genai.ClientInterface) *Receptionist {
	return &Receptionist{st: st, genaiClient: genaiClient}
}

// Generate produces the receptionist reply. On first contact it flips the
// onboarding flag through a conditional update, so the transition happens at
// most once even when two first messages race.
func (p *Receptionist) Generate(ctx context.Context, profile *models.UserProfile, req models.ChatRequest, history []models.ConversationTurn) (string, []models.SuggestedAction, error) {
	firstContact := profile == nil || !profile.HasCompletedOnboarding
	slog.Debug("Receptionist.Generate invoked", "firstContact", firstContact)

	systemPrompt := receptionistHelpPrompt
	if firstContact {
		systemPrompt = receptionistWelcomePrompt
	}

	userPrompt := fmt.Sprintf("Usuário: %s\nIdioma da resposta: %s\nMensagem: %s\n\nHistórico recente:\n%s",
		displayName(profile), localeOf(req), req.Message, formatHistory(history))

	response, err := p.genaiClient.Generate(ctx, systemPrompt, userPrompt, ReceptionistTemperature)
	if err != nil {
		slog.Error("Receptionist.Generate: generation failed", "error", err)
		return "", nil, fmt.Errorf("receptionist generation failed: %w", err)
	}

	if !firstContact {
		return response, nil, nil
	}

	uid := ""
	if profile != nil {
		uid = profile.UID
	}
	transitioned, err := p.st.CompleteOnboarding(uid)
	if err != nil {
		slog.Error("Receptionist.Generate: onboarding completion failed", "error", err, "uid", uid)
		return "", nil, fmt.Errorf("failed to complete onboarding: %w", err)
	}
	slog.Info("Receptionist.Generate: first contact handled", "uid", uid, "transitioned", transitioned)

	actions := []models.SuggestedAction{
		{Label: "Explorar o guia comercial", Action: "navigate", Payload: "/comercios"},
		{Label: "Ver os classificados", Action: "navigate", Payload: "/classificados"},
	}
	return response, actions, nil
}
