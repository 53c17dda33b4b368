package model

import "time"

// ServerType はサーバー種別の閉じた語彙。
type ServerType string

const (
	ServerTypePhysical ServerType = "physical"
	ServerTypeVirtual  ServerType = "virtual"
	ServerTypeCloud    ServerType = "cloud"
)

// ServerTypes は受け付けるサーバー種別の一覧。
var ServerTypes = []string{
	string(ServerTypePhysical),
	string(ServerTypeVirtual),
	string(ServerTypeCloud),
}

// Environments は受け付ける環境タグの一覧。
var Environments = []string{"production", "development", "test", "staging"}

// Server はインベントリに登録されたサーバー1台を表す。
// PublicIP と SecondaryOwner は任意項目で、未設定の場合は空文字。
type Server struct {
	ID             int64
	Hostname       string
	OSType         string
	OSVersion      string
	ServerType     ServerType
	PrivateIP      string
	PublicIP       string
	PrimaryOwner   string
	SecondaryOwner string
	Datacenter     string
	Environment    string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ServerStats はサーバー種別ごとの件数を含む集計値。
type ServerStats struct {
	Users        int
	Servers      int
	AuditRecords int
	ByType       map[ServerType]int
}
