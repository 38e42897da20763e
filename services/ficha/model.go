package ficha

import (
	"time"

	"padron-controlplane/services/clasificacion"

	"github.com/bwmarrin/snowflake"
)

type EstadoVerificacion string

const (
	EstadoPendiente   EstadoVerificacion = "PENDING"
	EstadoVerificado  EstadoVerificacion = "VERIFIED"
	EstadoTransferido EstadoVerificacion = "TRANSFERRED"
)

type Dictamen string

const (
	DictamenAprobado            Dictamen = "APPROVED"
	DictamenAprobadoObservacion Dictamen = "APPROVED_WITH_OBSERVATION"
	DictamenRechazado           Dictamen = "REJECTED"
	DictamenDerivarCapacitacion Dictamen = "REFER_TO_TRAINING"
)

func (d Dictamen) Valid() bool {
	switch d {
	case DictamenAprobado, DictamenAprobadoObservacion, DictamenRechazado, DictamenDerivarCapacitacion:
		return true
	}
	return false
}

// Verifies reports whether this verdict moves the record to VERIFIED.
func (d Dictamen) Verifies() bool {
	return d == DictamenAprobado || d == DictamenAprobadoObservacion
}

// Ficha is one subscriber's registration record. The tier is assigned once at
// creation and never changes; the verification lifecycle runs through the
// assignment and dictamen fields.
type Ficha struct {
	ID               snowflake.ID `gorm:"column:ficha_id;primaryKey;autoIncrement:false" json:"id"`
	Folio            string       `gorm:"column:folio" json:"folio,omitempty"`
	SecurityCode     string       `gorm:"column:security_code;uniqueIndex;not null" json:"-"`
	VerificationCode string       `gorm:"column:verification_code;uniqueIndex;not null" json:"verification_code"`
	Cedula           string       `gorm:"column:cedula;uniqueIndex;not null" json:"cedula"`
	NombreCompleto   string       `gorm:"column:nombre_completo;not null" json:"nombre_completo"`
	Telefono         string       `gorm:"column:telefono" json:"telefono,omitempty"`
	ZonaCode         string       `gorm:"column:zona_code" json:"zona_code,omitempty"`
	NivelEducativo   string       `gorm:"column:nivel_educativo;not null" json:"nivel_educativo"`
	AniosExperiencia int          `gorm:"column:anios_experiencia" json:"anios_experiencia"`
	Oficio           string       `gorm:"column:oficio" json:"oficio,omitempty"`

	RegistroLat *float64 `gorm:"column:registro_lat" json:"registro_lat,omitempty"`
	RegistroLng *float64 `gorm:"column:registro_lng" json:"registro_lng,omitempty"`
	CasaLat     *float64 `gorm:"column:casa_lat" json:"casa_lat,omitempty"`
	CasaLng     *float64 `gorm:"column:casa_lng" json:"casa_lng,omitempty"`
	TrabajoLat  *float64 `gorm:"column:trabajo_lat" json:"trabajo_lat,omitempty"`
	TrabajoLng  *float64 `gorm:"column:trabajo_lng" json:"trabajo_lng,omitempty"`

	Tier               clasificacion.Categoria `gorm:"column:tier;not null" json:"tier"`
	VerificationStatus EstadoVerificacion      `gorm:"column:verification_status;default:'PENDING'" json:"verification_status"`

	AssignedOperatorID *string    `gorm:"column:assigned_operator_id" json:"assigned_operator_id,omitempty"`
	AssignedAt         *time.Time `gorm:"column:assigned_at" json:"assigned_at,omitempty"`
	Verdict            *Dictamen  `gorm:"column:verdict" json:"verdict,omitempty"`
	VerdictAt          *time.Time `gorm:"column:verdict_at" json:"verdict_at,omitempty"`

	EquipmentShortfallEvidence bool `gorm:"column:equipment_shortfall_evidence;default:false" json:"equipment_shortfall_evidence"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Ficha) TableName() string { return "fichas" }

type AssignmentPhase string

const (
	PhaseUnclaimed   AssignmentPhase = "UNCLAIMED"
	PhaseClaimed     AssignmentPhase = "CLAIMED"
	PhaseAdjudicated AssignmentPhase = "ADJUDICATED"
)

// AssignmentState is the record's claim lifecycle as a tagged value. The
// nullable columns are the storage shape; callers branch on this instead of
// testing pointers for nil.
type AssignmentState struct {
	Phase      AssignmentPhase `json:"phase"`
	OperatorID string          `json:"operator_id,omitempty"`
	ClaimedAt  *time.Time      `json:"claimed_at,omitempty"`
	Verdict    Dictamen        `json:"verdict,omitempty"`
	VerdictAt  *time.Time      `json:"verdict_at,omitempty"`
}

func (f *Ficha) Assignment() AssignmentState {
	if f.AssignedOperatorID == nil {
		return AssignmentState{Phase: PhaseUnclaimed}
	}
	st := AssignmentState{
		Phase:      PhaseClaimed,
		OperatorID: *f.AssignedOperatorID,
		ClaimedAt:  f.AssignedAt,
	}
	if f.Verdict != nil {
		st.Phase = PhaseAdjudicated
		st.Verdict = *f.Verdict
		st.VerdictAt = f.VerdictAt
	}
	return st
}

// Resumen is the dashboard read model: headline counts over the registry.
type Resumen struct {
	Total        int64 `json:"total"`
	Pendientes   int64 `json:"pendientes"`
	Verificadas  int64 `json:"verificadas"`
	Transferidas int64 `json:"transferidas"`
	TierA        int64 `json:"tier_a"`
	TierB        int64 `json:"tier_b"`
	TierC        int64 `json:"tier_c"`
	Derivaciones int64 `json:"derivaciones"`
}
