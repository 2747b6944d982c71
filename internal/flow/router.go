// Package flow implements the assistant's chat pipeline: request validation,
// rate limiting, persona routing and persona response generation.
package flow

import (
	"log/slog"
	"regexp"

	"github.com/InterlagosConectado/Assistente/internal/models"
)

// AdminPanelPage is the page name that routes fallback questions to the intern.
const AdminPanelPage = "AdminPanel"

// Classifier maps a message to a persona based on its content. An empty
// persona means "no intent detected". Implementations must not encode routing
// priority beyond the purchase-before-help ordering; everything else lives in
// the Router.
type Classifier interface {
	Classify(message string, hasContext bool) models.Persona
}

// KeywordClassifier is a fixed keyword matcher over Portuguese commerce and
// help vocabulary. Deliberately simple; swap for a model-based classifier by
// implementing Classifier.
type KeywordClassifier struct {
	purchase *regexp.Regexp
	help     *regexp.Regexp
}

// NewKeywordClassifier compiles the default keyword patterns.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		purchase: regexp.MustCompile(`(?i)preço|valor|custo|premium|destaque|assinar|comprar|plano`),
		help:     regexp.MustCompile(`(?i)como|onde|erro|não consigo|ajuda`),
	}
}

// Classify checks purchase intent before help intent; that ordering is part of
// the routing contract. Help intent requires page context.
func (c *KeywordClassifier) Classify(message string, hasContext bool) models.Persona {
	if c.purchase.MatchString(message) {
		return models.PersonaSalesperson
	}
	if hasContext && c.help.MatchString(message) {
		return models.PersonaIntern
	}
	return ""
}

// Router selects exactly one persona per request. Rules are ordered and the
// first match wins:
//
//  1. missing profile or incomplete onboarding -> receptionist, regardless of
//     message content
//  2. purchase intent -> salesperson
//  3. help intent with page context -> intern
//  4. AdminPanel page -> intern; otherwise receptionist
type Router struct {
	classifier Classifier
}

// NewRouter creates a Router with the given classifier.
func NewRouter(classifier Classifier) *Router {
	return &Router{classifier: classifier}
}

// Route returns the persona that should answer the request.
func (r *Router) Route(profile *models.UserProfile, message string, chatCtx *models.ChatContext) models.Persona {
	if profile == nil || !profile.HasCompletedOnboarding {
		slog.Debug("Router.Route: onboarding override", "hasProfile", profile != nil)
		return models.PersonaReceptionist
	}

	if persona := r.classifier.Classify(message, chatCtx != nil); persona != "" {
		if !models.IsValidPersona(persona) {
			slog.Warn("Router.Route: classifier returned unknown persona, falling through", "persona", persona)
		} else {
			slog.Debug("Router.Route: classifier match", "persona", persona)
			return persona
		}
	}

	if chatCtx != nil && chatCtx.PageName == AdminPanelPage {
		slog.Debug("Router.Route: admin panel fallback")
		return models.PersonaIntern
	}
	slog.Debug("Router.Route: default fallback")
	return models.PersonaReceptionist
}
