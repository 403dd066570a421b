package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// LogActivity appends a telemetry event for the user
func (s *Store) LogActivity(ctx context.Context, userID, eventType string, eventData map[string]any) error {
	data, err := json.Marshal(eventData)
	if err != nil {
		return fmt.Errorf("failed to encode event data: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO activity_log (user_id, event_type, event_data) VALUES (?, ?, ?)",
		userID, eventType, string(data)); err != nil {
		return fmt.Errorf("failed to log activity: %w", err)
	}
	return nil
}
