package operador

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Operador is a field verifier. The cedula is the business key used by every
// operation; balances are in the smallest currency unit and only mutated by
// wallet operations.
type Operador struct {
	ID               snowflake.ID `gorm:"column:operador_id;primaryKey;autoIncrement:false" json:"id"`
	Cedula           string       `gorm:"column:cedula;uniqueIndex;not null" json:"cedula"`
	ZoneCode         string       `gorm:"column:zone_code" json:"zone_code,omitempty"`
	DisplayName      string       `gorm:"column:display_name" json:"display_name,omitempty"`
	AvailableBalance int64        `gorm:"column:available_balance;default:0" json:"available_balance"`
	WalletPhone      *string      `gorm:"column:wallet_phone" json:"wallet_phone,omitempty"`
	PinHash          string       `gorm:"column:pin_hash" json:"-"`
	CreatedAt        time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Operador) TableName() string { return "operadores" }
