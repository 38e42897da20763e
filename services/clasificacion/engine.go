// Package clasificacion implements the preclassification rules applied to a
// worker at registration time: the A/B/C tier from education and experience,
// the derived idoneity status shown on the public verification page, and the
// rule deciding who is automatically referred to training. All functions are
// pure; persistence and flags live with the callers.
package clasificacion

import (
	"strconv"
	"strings"
)

type Categoria string

const (
	CategoriaA Categoria = "A"
	CategoriaB Categoria = "B"
	CategoriaC Categoria = "C"
)

// NivelEmpirico is the education level reported by workers with no formal
// credential. Every other value counts as a formal credential.
const NivelEmpirico = "Empirical"

const (
	EstadoFastTrack  = "Fast-track validation"
	EstadoComite     = "Pending Committee (on-site audit)"
	EstadoCapacitado = "Referred to training"
)

type Resultado struct {
	Categoria      Categoria `json:"categoria"`
	Estado         string    `json:"estado"`
	Prioridad      int       `json:"prioridad"`
	RequiereComite bool      `json:"requiere_comite"`
}

// Classify buckets a worker by education level and years of experience.
// Rules apply in order: any formal credential fast-tracks regardless of years;
// empirical workers with two or more years go to the on-site committee; the
// rest are referred to training.
func Classify(nivelEducativo string, aniosExperiencia int) Resultado {
	if aniosExperiencia < 0 {
		aniosExperiencia = 0
	}

	if nivelEducativo != NivelEmpirico {
		return Resultado{
			Categoria:      CategoriaA,
			Estado:         EstadoFastTrack,
			Prioridad:      1,
			RequiereComite: false,
		}
	}

	if aniosExperiencia >= 2 {
		return Resultado{
			Categoria:      CategoriaB,
			Estado:         EstadoComite,
			Prioridad:      2,
			RequiereComite: true,
		}
	}

	return Resultado{
		Categoria:      CategoriaC,
		Estado:         EstadoCapacitado,
		Prioridad:      3,
		RequiereComite: false,
	}
}

// ParseExperienceYears normalises caller input. Registration forms send the
// years as free text; anything that does not parse to a non-negative integer
// counts as zero, never as satisfying the committee threshold.
func ParseExperienceYears(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	years, err := strconv.Atoi(raw)
	if err != nil {
		// tolerate "3.5" style input by truncating
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0
		}
		years = int(f)
	}

	if years < 0 {
		return 0
	}
	return years
}

type Idoneidad string

const (
	IdoneidadCertificado             Idoneidad = "CERTIFIED"
	IdoneidadCertificadoPostCurso    Idoneidad = "CERTIFIED_POST_TRAINING"
	IdoneidadComitePendiente         Idoneidad = "PENDING_COMMITTEE"
	IdoneidadEnCapacitacion          Idoneidad = "EN_CAPACITACION"
	IdoneidadSinRespaldo             Idoneidad = "NO_BACKING"
)

// Eligibility derives the idoneity status from the tier and the worker's
// certification/referral state.
func Eligibility(cat Categoria, hasCertification, referredToTraining, referralCompleted bool) Idoneidad {
	if hasCertification {
		if referralCompleted {
			return IdoneidadCertificadoPostCurso
		}
		return IdoneidadCertificado
	}

	switch cat {
	case CategoriaA:
		return IdoneidadCertificado
	case CategoriaB:
		return IdoneidadComitePendiente
	default:
		if referredToTraining {
			return IdoneidadEnCapacitacion
		}
		return IdoneidadSinRespaldo
	}
}

// ReferralEligible decides whether a record qualifies for an automatic
// training referral. Tier C always does; tier B only under the
// "derivar-categoria-b-sin-certificacion" policy (flag-controlled, default on).
func ReferralEligible(cat Categoria, derivarCategoriaBSinCert bool) bool {
	if cat == CategoriaC {
		return true
	}
	return cat == CategoriaB && derivarCategoriaBSinCert
}
