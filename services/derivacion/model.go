package derivacion

import (
	"time"

	"padron-controlplane/services/clasificacion"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPendiente  Status = "PENDING"
	StatusEnCurso    Status = "IN_PROGRESS"
	StatusCompletada Status = "COMPLETED"
)

// Derivacion is a training referral. A ficha has at most one; the unique index
// on ficha_id is the backstop for the idempotent upsert.
type Derivacion struct {
	ID         snowflake.ID            `gorm:"column:derivacion_id;primaryKey;autoIncrement:false" json:"id"`
	FichaID    snowflake.ID            `gorm:"column:ficha_id;uniqueIndex;not null" json:"ficha_id"`
	Codigo     string                  `gorm:"column:codigo" json:"codigo"`
	OriginTier clasificacion.Categoria `gorm:"column:origin_tier;not null" json:"origin_tier"`
	Status     Status                  `gorm:"column:status;default:'PENDING'" json:"status"`
	ReferredAt time.Time               `gorm:"column:referred_at" json:"referred_at"`
	CreatedAt  time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time               `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Derivacion) TableName() string { return "derivaciones" }

// nextStatus encodes the only legal manual transitions.
var nextStatus = map[Status]Status{
	StatusPendiente: StatusEnCurso,
	StatusEnCurso:   StatusCompletada,
}
