// Package inventory はサーバーインベントリの一覧・登録・削除を提供する。
// 各操作は対応する監査レコードと同一の作業単位で確定する。
// 呼び出し元の認可判定は済んでいることを前提とする。
package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/serverinv/internal/audit"
	"github.com/hitoshi/serverinv/internal/model"
	"github.com/hitoshi/serverinv/internal/repository"
	"github.com/hitoshi/serverinv/internal/validate"
)

// requiredFields は登録時の必須項目。エラーはこの順で最初の欠落項目を報告する。
var requiredFields = []string{
	"hostname", "os_type", "os_version", "server_type",
	"private_ip", "primary_owner", "datacenter", "environment",
}

// maxLengths は各テキスト項目の最大文字数。
var maxLengths = map[string]int{
	"hostname":        100,
	"os_type":         50,
	"os_version":      50,
	"primary_owner":   100,
	"secondary_owner": 100,
	"datacenter":      100,
}

// CreateInput はサーバー登録の入力。SERVER_CREATED の詳細としてJSONで記録する。
type CreateInput struct {
	Hostname       string `json:"hostname"`
	OSType         string `json:"os_type"`
	OSVersion      string `json:"os_version"`
	ServerType     string `json:"server_type"`
	PrivateIP      string `json:"private_ip"`
	PublicIP       string `json:"public_ip,omitempty"`
	PrimaryOwner   string `json:"primary_owner"`
	SecondaryOwner string `json:"secondary_owner,omitempty"`
	Datacenter     string `json:"datacenter"`
	Environment    string `json:"environment"`
}

func (in CreateInput) fields() map[string]string {
	return map[string]string{
		"hostname":        in.Hostname,
		"os_type":         in.OSType,
		"os_version":      in.OSVersion,
		"server_type":     in.ServerType,
		"private_ip":      in.PrivateIP,
		"public_ip":       in.PublicIP,
		"primary_owner":   in.PrimaryOwner,
		"secondary_owner": in.SecondaryOwner,
		"datacenter":      in.Datacenter,
		"environment":     in.Environment,
	}
}

// Validate は入力を検証し、最初に見つかった問題を*model.APIErrorで返す。
func (in CreateInput) Validate() error {
	fields := in.fields()

	if missing, ok := validate.RequireFields(fields, requiredFields); !ok {
		return model.NewMissingFieldError(missing)
	}
	if !validate.IsValidIPv4(in.PrivateIP) {
		return model.NewInvalidIPError("private_ip")
	}
	if in.PublicIP != "" && !validate.IsValidIPv4(in.PublicIP) {
		return model.NewInvalidIPError("public_ip")
	}
	if !validate.IsValidEnum(in.ServerType, model.ServerTypes) {
		return model.NewInvalidEnumError("server_type", model.ServerTypes)
	}
	if !validate.IsValidEnum(in.Environment, model.Environments) {
		return model.NewInvalidEnumError("environment", model.Environments)
	}

	for _, name := range []string{"hostname", "os_type", "os_version", "primary_owner", "secondary_owner", "datacenter"} {
		v := fields[name]
		if utf8.RuneCountInString(v) > maxLengths[name] {
			return model.NewFieldTooLongError(name, maxLengths[name])
		}
		if !validate.HasNoMarkup(v) {
			return model.NewMarkupNotAllowedError(name)
		}
	}
	return nil
}

// Service はインベントリ操作を提供する。
type Service struct {
	store repository.Store
	audit *audit.Logger
}

// NewService はServiceを生成する。
func NewService(store repository.Store, auditLogger *audit.Logger) *Service {
	return &Service{store: store, audit: auditLogger}
}

// List は登録済みサーバーを返し、VIEW_SERVERS を記録する。
func (s *Service) List(ctx context.Context, actor, sourceAddr string) ([]*model.Server, error) {
	var servers []*model.Server
	err := s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		servers, err = uow.Servers().List(ctx)
		if err != nil {
			return err
		}
		_, err = s.audit.Record(ctx, uow, audit.Entry{
			Actor:      actor,
			Action:     model.ActionViewServers,
			Resource:   "servers",
			SourceAddr: sourceAddr,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return servers, nil
}

// Create は入力を検証してサーバーを登録し、SERVER_CREATED を記録する。
// 検証に失敗した場合は何も変更せず、監査レコードも残さない。
func (s *Service) Create(ctx context.Context, actor string, in CreateInput, sourceAddr string) (*model.Server, error) {
	in = trimInput(in)
	if err := in.Validate(); err != nil {
		slog.Warn("server registration rejected",
			slog.String("actor", actor),
			slog.String("hostname", in.Hostname),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	detail, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit detail: %w", err)
	}

	server := &model.Server{
		Hostname:       in.Hostname,
		OSType:         in.OSType,
		OSVersion:      in.OSVersion,
		ServerType:     model.ServerType(in.ServerType),
		PrivateIP:      in.PrivateIP,
		PublicIP:       in.PublicIP,
		PrimaryOwner:   in.PrimaryOwner,
		SecondaryOwner: in.SecondaryOwner,
		Datacenter:     in.Datacenter,
		Environment:    in.Environment,
		CreatedBy:      actor,
	}

	err = s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		if err := uow.Servers().Create(ctx, server); err != nil {
			return err
		}
		_, err := s.audit.Record(ctx, uow, audit.Entry{
			Actor:      actor,
			Action:     model.ActionServerCreated,
			Resource:   "server:" + server.Hostname,
			Detail:     string(detail),
			SourceAddr: sourceAddr,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return server, nil
}

// Delete は指定IDのサーバーを削除し、SERVER_DELETED を記録する。
// 存在しない場合は SERVER_NOT_FOUND を返す。
func (s *Service) Delete(ctx context.Context, actor string, id int64, sourceAddr string) (*model.Server, error) {
	var deleted *model.Server
	err := s.store.WithinTx(ctx, func(uow repository.UnitOfWork) error {
		var err error
		deleted, err = uow.Servers().Delete(ctx, id)
		if err != nil {
			return err
		}
		if deleted == nil {
			return model.NewServerNotFoundError(id)
		}
		_, err = s.audit.Record(ctx, uow, audit.Entry{
			Actor:      actor,
			Action:     model.ActionServerDeleted,
			Resource:   "server:" + deleted.Hostname,
			Detail:     fmt.Sprintf(`{"id":%d}`, id),
			SourceAddr: sourceAddr,
		})
		return err
	})
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return nil, apiErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete server: %w", err)
	}
	return deleted, nil
}

func trimInput(in CreateInput) CreateInput {
	in.Hostname = strings.TrimSpace(in.Hostname)
	in.OSType = strings.TrimSpace(in.OSType)
	in.OSVersion = strings.TrimSpace(in.OSVersion)
	in.ServerType = strings.TrimSpace(in.ServerType)
	in.PrivateIP = strings.TrimSpace(in.PrivateIP)
	in.PublicIP = strings.TrimSpace(in.PublicIP)
	in.PrimaryOwner = strings.TrimSpace(in.PrimaryOwner)
	in.SecondaryOwner = strings.TrimSpace(in.SecondaryOwner)
	in.Datacenter = strings.TrimSpace(in.Datacenter)
	in.Environment = strings.TrimSpace(in.Environment)
	return in
}
