package store

import (
	"context"
	"encoding/json"
	"time"

	"mistrihub/internal/common/logger"
)

// AuditLog records lifecycle events for later inspection. Writes are
// non-critical: a failed insert is logged and swallowed so it can never
// fail the primary operation.
type AuditLog struct {
	logger logger.Logger
}

func NewAuditLog(log logger.Logger) *AuditLog {
	return &AuditLog{
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

func (a *AuditLog) Record(ctx context.Context, q Queryer, eventType, resourceType, resourceID string, details map[string]interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		a.logger.Warn("failed to marshal audit details", map[string]interface{}{
			"error": err.Error(),
		})
		detailsJSON = []byte("{}")
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		eventType, resourceType, resourceID, detailsJSON, time.Now().UTC(),
	)
	if err != nil {
		a.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":      err.Error(),
			"eventType":  eventType,
			"resourceId": resourceID,
		})
	}
}
