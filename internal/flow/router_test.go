package flow

import (
	"testing"

	"github.com/InterlagosConectado/Assistente/internal/models"
)

func onboardedProfile() *models.UserProfile {
	return &models.UserProfile{UID: "user-1", HasCompletedOnboarding: true}
}

func TestRouterRoute(t *testing.T) {
	router := NewRouter(NewKeywordClassifier())

	tests := []struct {
		name    string
		profile *models.UserProfile
		message string
		chatCtx *models.ChatContext
		want    models.Persona
	}{
		{
			name:    "nil profile always goes to receptionist",
			profile: nil,
			message: "quanto custa o plano premium?",
			want:    models.PersonaReceptionist,
		},
		{
			name:    "incomplete onboarding beats purchase keywords",
			profile: &models.UserProfile{UID: "user-1"},
			message: "quanto custa o plano premium?",
			chatCtx: &models.ChatContext{PageName: "Home"},
			want:    models.PersonaReceptionist,
		},
		{
			name:    "purchase keyword routes to salesperson",
			profile: onboardedProfile(),
			message: "Quero saber o PREÇO do destaque",
			want:    models.PersonaSalesperson,
		},
		{
			name:    "purchase beats help when both match",
			profile: onboardedProfile(),
			message: "como faço para comprar o plano premium?",
			chatCtx: &models.ChatContext{PageName: "Planos"},
			want:    models.PersonaSalesperson,
		},
		{
			name:    "help keyword with context routes to intern",
			profile: onboardedProfile(),
			message: "não consigo publicar meu anúncio, dá erro",
			chatCtx: &models.ChatContext{PageName: "Classificados", ActionInProgress: "criar_anuncio"},
			want:    models.PersonaIntern,
		},
		{
			name:    "help keyword without context falls through",
			profile: onboardedProfile(),
			message: "não consigo publicar meu anúncio, dá erro",
			want:    models.PersonaReceptionist,
		},
		{
			name:    "admin panel fallback routes to intern",
			profile: onboardedProfile(),
			message: "tudo certo por aqui",
			chatCtx: &models.ChatContext{PageName: AdminPanelPage},
			want:    models.PersonaIntern,
		},
		{
			name:    "ordinary page fallback routes to receptionist",
			profile: onboardedProfile(),
			message: "tudo certo por aqui",
			chatCtx: &models.ChatContext{PageName: "Noticias"},
			want:    models.PersonaReceptionist,
		},
		{
			name:    "no context fallback routes to receptionist",
			profile: onboardedProfile(),
			message: "bom dia!",
			want:    models.PersonaReceptionist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := router.Route(tt.profile, tt.message, tt.chatCtx); got != tt.want {
				t.Errorf("Route() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRouterIgnoresUnknownClassifierPersona(t *testing.T) {
	router := NewRouter(staticClassifier("manager"))
	if got := router.Route(onboardedProfile(), "qualquer coisa", nil); got != models.PersonaReceptionist {
		t.Errorf("Route() = %q, want receptionist fallback for an unknown persona", got)
	}
	if got := router.Route(onboardedProfile(), "qualquer coisa", &models.ChatContext{PageName: AdminPanelPage}); got != models.PersonaIntern {
		t.Errorf("Route() = %q, want the ordinary fallback rules to apply", got)
	}
}

func TestKeywordClassifierCaseInsensitive(t *testing.T) {
	c := NewKeywordClassifier()
	if got := c.Classify("ASSINAR o destaque", false); got != models.PersonaSalesperson {
		t.Errorf("Classify() = %q, want salesperson", got)
	}
	if got := c.Classify("AJUDA com a tela", true); got != models.PersonaIntern {
		t.Errorf("Classify() = %q, want intern", got)
	}
	if got := c.Classify("bom dia", true); got != "" {
		t.Errorf("Classify() = %q, want no match", got)
	}
}
