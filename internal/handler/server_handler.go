package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/serverinv/internal/inventory"
	"github.com/hitoshi/serverinv/internal/middleware"
	"github.com/hitoshi/serverinv/internal/model"
)

// InventoryServiceInterface はサーバーハンドラーが必要とするサービスインターフェース。
type InventoryServiceInterface interface {
	List(ctx context.Context, actor, sourceAddr string) ([]*model.Server, error)
	Create(ctx context.Context, actor string, in inventory.CreateInput, sourceAddr string) (*model.Server, error)
	Delete(ctx context.Context, actor string, id int64, sourceAddr string) (*model.Server, error)
}

// ServerHandler はサーバーインベントリのHTTPハンドラー。
type ServerHandler struct {
	service InventoryServiceInterface
}

// NewServerHandler はServerHandlerを生成する。
func NewServerHandler(service InventoryServiceInterface) *ServerHandler {
	return &ServerHandler{service: service}
}

// serverResponse はサーバー情報のAPIレスポンス。
type serverResponse struct {
	ID             int64     `json:"id"`
	Hostname       string    `json:"hostname"`
	OSType         string    `json:"os_type"`
	OSVersion      string    `json:"os_version"`
	ServerType     string    `json:"server_type"`
	PrivateIP      string    `json:"private_ip"`
	PublicIP       *string   `json:"public_ip"`
	PrimaryOwner   string    `json:"primary_owner"`
	SecondaryOwner *string   `json:"secondary_owner"`
	Datacenter     string    `json:"datacenter"`
	Environment    string    `json:"environment"`
	CreatedBy      string    `json:"created_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type createServerResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// ListServers はサーバー一覧を返す。
// GET /api/servers
func (h *ServerHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UsernameFromContext(r.Context())

	servers, err := h.service.List(r.Context(), actor, middleware.ClientAddrFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]serverResponse, len(servers))
	for i, s := range servers {
		resp[i] = toServerResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateServer はサーバーを登録する。
// POST /api/servers
func (h *ServerHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UsernameFromContext(r.Context())

	var in inventory.CreateInput
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, err)
		return
	}

	server, err := h.service.Create(r.Context(), actor, in, middleware.ClientAddrFromContext(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, createServerResponse{
		ID:      server.ID,
		Message: "Server created successfully",
	})
}

// DeleteServer はサーバーを削除する。
// DELETE /api/servers/{id}
func (h *ServerHandler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UsernameFromContext(r.Context())

	// 整数以外のIDは存在しないサーバーとして扱う
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewServerNotFoundError(0))
		return
	}

	if _, err := h.service.Delete(r.Context(), actor, id, middleware.ClientAddrFromContext(r.Context())); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Server deleted successfully"})
}

func toServerResponse(s *model.Server) serverResponse {
	return serverResponse{
		ID:             s.ID,
		Hostname:       s.Hostname,
		OSType:         s.OSType,
		OSVersion:      s.OSVersion,
		ServerType:     string(s.ServerType),
		PrivateIP:      s.PrivateIP,
		PublicIP:       optionalString(s.PublicIP),
		PrimaryOwner:   s.PrimaryOwner,
		SecondaryOwner: optionalString(s.SecondaryOwner),
		Datacenter:     s.Datacenter,
		Environment:    s.Environment,
		CreatedBy:      s.CreatedBy,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// optionalString は空文字をnullとして出力するために使う。
func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
