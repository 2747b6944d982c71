package flow

import (
	"fmt"
	"strings"

	"github.com/InterlagosConectado/Assistente/internal/models"
)

// formatHistory renders conversation turns for inclusion in a prompt, oldest
// first, matching the order the store returns them in.
func formatHistory(turns []models.ConversationTurn) string {
	if len(turns) == 0 {
		return "(sem histórico)"
	}
	var b strings.Builder
	for _, t := range turns {
		speaker := "Usuário"
		if t.Sender == models.SenderChatbot {
			speaker = "Assistente"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, t.Message)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatPlans renders active plans for the salesperson prompt.
func formatPlans(plans []models.Plan) string {
	if len(plans) == 0 {
		return "(nenhum plano ativo no momento)"
	}
	var b strings.Builder
	for _, p := range plans {
		fmt.Fprintf(&b, "- %s: %s %.2f — %s", p.Name, p.Currency, p.Price, p.Description)
		if len(p.Features) > 0 {
			fmt.Fprintf(&b, " (inclui: %s)", strings.Join(p.Features, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// displayName returns something to call the user by in prompts.
func displayName(profile *models.UserProfile) string {
	if profile != nil && profile.DisplayName != "" {
		return profile.DisplayName
	}
	return "morador(a) de Interlagos"
}

// localeOf returns the request locale, defaulting to pt-BR when absent.
func localeOf(req models.ChatRequest) string {
	if req.Locale != "" {
		return req.Locale
	}
	return models.DefaultLocale
}
