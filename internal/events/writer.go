// Package events appends to the workspace audit log.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types written by the engine.
const (
	AgendaCreated   = "agenda.created"
	AgendaUpdated   = "agenda.updated"
	AgendaDeleted   = "agenda.deleted"
	AgendaFinished  = "agenda.finished"
	AgendaReopened  = "agenda.reopened"
	AgendaExported  = "agenda.exported"
	ProcessCreated  = "process.created"
	ProcessUpdated  = "process.updated"
	ProcessDeleted  = "process.deleted"
	ProcessImported = "process.imported"
	DocConfigSet    = "document_config.updated"
	APIKeyCreated   = "api_key.created"
	APIKeyDeleted   = "api_key.deleted"
)

type Writer struct {
	Now func() time.Time
}

type Payload map[string]any

// Append writes one event inside tx so it commits with the mutation it
// describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	var id any
	if entityID != "" {
		id = entityID
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339Nano), evtType, entityKind, id, actorID, string(data))
	return err
}
