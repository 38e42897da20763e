package operador

import (
	"context"
	"time"

	"padron-controlplane/pkg/repository"
	"padron-controlplane/services/ficha"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AssignmentRepository owns the two conditional updates that decide the claim
// race and the single-dictamen guarantee. Each is one statement whose affected
// row count is the arbiter; a zero never means success.
type AssignmentRepository struct {
	db     *gorm.DB
	fichas repository.Repository[ficha.Ficha]
}

type AssignmentRepositoryParams struct {
	DB *gorm.DB
}

func NewAssignmentRepository(p AssignmentRepositoryParams) *AssignmentRepository {
	return &AssignmentRepository{
		db:     p.DB,
		fichas: repository.ProvideStore[ficha.Ficha](p.DB),
	}
}

func (r *AssignmentRepository) FindFicha(ctx context.Context, fichaID snowflake.ID) (*ficha.Ficha, error) {
	return r.fichas.FindOne(ctx, &ficha.Ficha{ID: fichaID})
}

// Claim assigns the ficha to the operator if it is still pending and
// unclaimed. Returns the number of rows the update touched: 1 means the caller
// won the race, 0 means someone else did or the record is no longer pending.
func (r *AssignmentRepository) Claim(ctx context.Context, fichaID snowflake.ID, operadorCedula string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&ficha.Ficha{}).
		Where("ficha_id = ? AND assigned_operator_id IS NULL AND verification_status = ?",
			fichaID, ficha.EstadoPendiente).
		Updates(map[string]any{
			"assigned_operator_id": operadorCedula,
			"assigned_at":          time.Now(),
		})
	return res.RowsAffected, res.Error
}

// Adjudicate records the verdict if the ficha is still unadjudicated and
// assigned to this operator. When the verdict verifies the record the status
// moves in the same statement.
func (r *AssignmentRepository) Adjudicate(ctx context.Context, fichaID snowflake.ID, operadorCedula string, verdict ficha.Dictamen, evidence bool) (int64, error) {
	updates := map[string]any{
		"verdict":                      verdict,
		"verdict_at":                   time.Now(),
		"equipment_shortfall_evidence": evidence,
	}
	if verdict.Verifies() {
		updates["verification_status"] = ficha.EstadoVerificado
	}

	res := r.db.WithContext(ctx).Model(&ficha.Ficha{}).
		Where("ficha_id = ? AND verdict IS NULL AND assigned_operator_id = ?",
			fichaID, operadorCedula).
		Updates(updates)
	return res.RowsAffected, res.Error
}
