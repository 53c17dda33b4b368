package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/serverinv/internal/audit"
	"github.com/hitoshi/serverinv/internal/model"
)

// AuditReader は監査ログの読み出しを行う。audit.Logger が満たす。
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]*model.AuditRecord, error)
}

// LogHandler は監査ログ閲覧のHTTPハンドラー。
type LogHandler struct {
	reader AuditReader
}

// NewLogHandler はLogHandlerを生成する。
func NewLogHandler(reader AuditReader) *LogHandler {
	return &LogHandler{reader: reader}
}

// auditRecordResponse は監査レコードのAPIレスポンス。
type auditRecordResponse struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	Details   *string   `json:"details"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address"`
}

// ListLogs は新しい順に最新の監査レコードを返す。
// GET /api/logs
func (h *LogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	records, err := h.reader.Recent(r.Context(), audit.MaxRecent)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]auditRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = auditRecordResponse{
			ID:        rec.ID,
			User:      rec.Actor,
			Action:    string(rec.Action),
			Resource:  rec.Resource,
			Details:   optionalString(rec.Detail),
			Timestamp: rec.OccurredAt,
			IPAddress: rec.SourceAddr,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
