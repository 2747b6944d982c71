// Package models defines the core data structures for the Interlagos Conectado assistant.
//
// It includes the chat request/response contract, conversation turns, user profiles
// and subscription plans, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Persona identifies which assistant persona produced (or should produce) a reply.
type Persona string

const (
	// PersonaReceptionist greets users, runs onboarding and routes general questions.
	PersonaReceptionist Persona = "receptionist"
	// PersonaSalesperson pitches the paid highlight plans.
	PersonaSalesperson Persona = "salesperson"
	// PersonaIntern provides contextual technical help for the current page.
	PersonaIntern Persona = "intern"
	// PersonaSystem marks replies produced by the service itself (e.g. throttling).
	PersonaSystem Persona = "system"
)

// IsValidPersona checks if the given persona is supported.
func IsValidPersona(p Persona) bool {
	switch p {
	case PersonaReceptionist, PersonaSalesperson, PersonaIntern, PersonaSystem:
		return true
	default:
		return false
	}
}

// Sender values for conversation turns.
const (
	// SenderUser marks a turn authored by the user.
	SenderUser = "user"
	// SenderChatbot marks a turn authored by the assistant.
	SenderChatbot = "chatbot"
)

// Validation constants for input validation
const (
	// MaxChatMessageLength defines the maximum allowed length for a chat message
	MaxChatMessageLength = 500
	// DefaultLocale is assumed when the request does not carry one
	DefaultLocale = "pt-BR"
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrEmptyUserID     = errors.New("user id cannot be empty")
	ErrEmptyPlanName   = errors.New("plan name cannot be empty")
	ErrNegativePrice   = errors.New("plan price cannot be negative")
	ErrProfileNotFound = errors.New("user profile not found")
)

// ChatContext describes where in the app the user was when sending the message.
type ChatContext struct {
	PageName         string `json:"page_name"`
	PageURL          string `json:"page_url,omitempty"`
	ActionInProgress string `json:"action_in_progress,omitempty"`
	SelectedItemID   string `json:"selected_item_id,omitempty"`
}

// ChatRequest is the inbound payload of POST /chat.
//
// UserID is only honored when token verification is disabled; with auth
// enabled the authenticated identity always wins.
type ChatRequest struct {
	UserID      string       `json:"user_id,omitempty"`
	Message     string       `json:"message"`
	Context     *ChatContext `json:"current_context,omitempty"`
	UserProfile *UserProfile `json:"user_profile,omitempty"`
	Locale      string       `json:"locale,omitempty"`
}

// Validate checks the chat message constraints. Only the message is validated
// here; schema shape is enforced by JSON decoding. The length limit counts
// characters, not bytes, so accented Portuguese text is not penalized.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(r.Message) > MaxChatMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// SuggestedAction is a canned follow-up the client can render as a button.
type SuggestedAction struct {
	Label   string `json:"label"`
	Action  string `json:"action"`
	Payload string `json:"payload,omitempty"`
}

// ChatResponse is the outbound payload of POST /chat.
type ChatResponse struct {
	ResponseMessage  string            `json:"response_message"`
	SuggestedActions []SuggestedAction `json:"suggested_actions,omitempty"`
	PersonaUsed      Persona           `json:"persona_used"`
}

// ConversationTurn is one entry in a user's append-only conversation log.
// Seq is assigned by the store and is strictly increasing per user, so
// chronological order never depends on clock resolution.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Sender    string    `json:"sender"` // "user" or "chatbot"
	Message   string    `json:"message_content"`
	Persona   Persona   `json:"chatbot_persona,omitempty"` // set on chatbot turns only
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// UserProfile holds the assistant-relevant slice of an account.
type UserProfile struct {
	UID                    string    `json:"uid"`
	DisplayName            string    `json:"display_name,omitempty"`
	HasCompletedOnboarding bool      `json:"has_completed_onboarding"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Validate ensures the profile has required fields.
func (p *UserProfile) Validate() error {
	if p.UID == "" {
		return ErrEmptyUserID
	}
	return nil
}

// UserProfileUpdate is the payload for PUT /profile. Onboarding completion is
// one-way and cannot be reset through this endpoint.
type UserProfileUpdate struct {
	DisplayName *string `json:"display_name,omitempty"`
}

// Plan is a paid highlight subscription offered to local merchants.
type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	IsActive    bool     `json:"is_active"`
}

// Validate performs basic validation on a Plan.
func (p *Plan) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyPlanName
	}
	if p.Price < 0 {
		return ErrNegativePrice
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
