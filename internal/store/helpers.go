package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/InterlagosConectado/Assistente/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanTurn scans a ConversationTurn from a row or rows cursor.
func scanTurn(row rowScanner) (models.ConversationTurn, error) {
	var t models.ConversationTurn
	var persona string
	err := row.Scan(&t.ID, &t.UserID, &t.Sender, &t.Message, &persona, &t.Seq, &t.Timestamp)
	if err != nil {
		return t, err
	}
	t.Persona = models.Persona(persona)
	return t, nil
}

// scanPlan scans a Plan from a row or rows cursor, decoding the features JSON.
func scanPlan(row rowScanner) (models.Plan, error) {
	var p models.Plan
	var featuresJSON string
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Currency, &p.Description, &featuresJSON, &p.IsActive)
	if err != nil {
		return p, err
	}
	if featuresJSON != "" {
		if err := json.Unmarshal([]byte(featuresJSON), &p.Features); err != nil {
			slog.Error("store.scanPlan: failed to decode features JSON", "error", err, "planID", p.ID)
			return p, fmt.Errorf("failed to decode plan features: %w", err)
		}
	}
	return p, nil
}

// encodeFeatures serializes a plan's feature list for storage.
func encodeFeatures(features []string) (string, error) {
	if features == nil {
		features = []string{}
	}
	data, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("failed to encode plan features: %w", err)
	}
	return string(data), nil
}

// collectTurns drains a rows cursor of conversation turns.
func collectTurns(rows *sql.Rows) ([]models.ConversationTurn, error) {
	defer rows.Close()
	var turns []models.ConversationTurn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation turns: %w", err)
	}
	return turns, nil
}

// reverseTurns flips a most-recent-first result into chronological order.
func reverseTurns(turns []models.ConversationTurn) {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
}
