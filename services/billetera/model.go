package billetera

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Destino string

const (
	DestinoBilleteraExterna Destino = "EXTERNAL_WALLET"
	DestinoCuentaBancaria   Destino = "BANK_ACCOUNT"
)

func (d Destino) Valid() bool {
	return d == DestinoBilleteraExterna || d == DestinoCuentaBancaria
}

type TipoMovimiento string

const (
	TipoRetiroBilletera TipoMovimiento = "WITHDRAWAL_TO_EXTERNAL_WALLET"
	TipoRetiroBanco     TipoMovimiento = "WITHDRAWAL_TO_BANK"
)

const MovimientoCompletado = "COMPLETED"

// Movimiento is one append-only ledger entry. It is inserted in the same
// transaction as the balance decrement and never updated afterwards.
type Movimiento struct {
	ID             snowflake.ID   `gorm:"column:movimiento_id;primaryKey;autoIncrement:false" json:"id"`
	Codigo         string         `gorm:"column:codigo" json:"codigo,omitempty"`
	OperadorCedula string         `gorm:"column:operador_cedula;index;not null" json:"operador_cedula"`
	Tipo           TipoMovimiento `gorm:"column:tipo;not null" json:"tipo"`
	Monto          int64          `gorm:"column:monto;not null" json:"monto"`
	Referencia     string         `gorm:"column:referencia" json:"referencia,omitempty"`
	Status         string         `gorm:"column:status;default:'COMPLETED'" json:"status"`
	Metadata       datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Movimiento) TableName() string { return "movimientos" }
