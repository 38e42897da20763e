package certificacion

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tipo string

const (
	TipoIssuerA Tipo = "ISSUER_A"
	TipoIssuerB Tipo = "ISSUER_B"
	TipoOtro    Tipo = "OTHER"
)

func (t Tipo) Valid() bool {
	switch t {
	case TipoIssuerA, TipoIssuerB, TipoOtro:
		return true
	}
	return false
}

// Certificacion is a formal credential attached to a ficha by staff. Never
// auto-created; a ficha can carry several.
type Certificacion struct {
	ID          snowflake.ID `gorm:"column:certificacion_id;primaryKey;autoIncrement:false" json:"id"`
	FichaID     snowflake.ID `gorm:"column:ficha_id;index;not null" json:"ficha_id"`
	Tipo        Tipo         `gorm:"column:tipo;not null" json:"tipo"`
	Institucion string       `gorm:"column:institucion;not null" json:"institucion"`
	IssuedAt    time.Time    `gorm:"column:issued_at" json:"issued_at"`
	Credencial  string       `gorm:"column:credencial" json:"credencial,omitempty"`
	CreatedAt   time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Certificacion) TableName() string { return "certificaciones" }
