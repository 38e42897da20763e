package derivacion

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"padron-controlplane/pkg/errutil"
	"padron-controlplane/pkg/repository"
	"padron-controlplane/pkg/sequence"
	"padron-controlplane/pkg/task"
	"padron-controlplane/pkg/taskname"
	"padron-controlplane/services/clasificacion"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator

	repo     repository.Repository[Derivacion]
	enqueuer task.Enqueuer
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator `optional:"true"`

	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		seq:      p.Seq,
		repo:     repository.ProvideStore[Derivacion](p.DB),
		enqueuer: p.Enqueuer,
	}
}

// UpsertForFicha creates the referral for a ficha if none exists yet. It is
// idempotent: a second call, or a race with another caller, is a no-op. When
// tx is non-nil the write joins the caller's transaction.
func (s *Service) UpsertForFicha(ctx context.Context, tx *gorm.DB, fichaID snowflake.ID, origin clasificacion.Categoria) error {
	repo := s.repo.WithTrx(tx)

	exist, err := repo.FindOne(ctx, &Derivacion{FichaID: fichaID})
	if err != nil {
		return err
	}
	if exist != nil {
		return nil
	}

	d := &Derivacion{
		ID:         s.node.Generate(),
		FichaID:    fichaID,
		OriginTier: origin,
		Status:     StatusPendiente,
		ReferredAt: time.Now(),
	}

	if s.seq != nil {
		if codigo, err := s.seq.NextDerivacionCode(ctx, string(origin)); err == nil {
			d.Codigo = codigo
		} else {
			zap.L().Warn("failed to generate derivacion code", zap.Error(err))
		}
	}

	if err := repo.Create(ctx, d); err != nil {
		if isUniqueViolation(err) {
			// lost a create race; the referral exists, which is all we want
			return nil
		}
		return err
	}

	return nil
}

// Advance moves a referral through PENDING → IN_PROGRESS → COMPLETED. Staff
// drive these transitions manually from the dashboard.
func (s *Service) Advance(ctx context.Context, id snowflake.ID, target Status) (*Derivacion, error) {
	current, err := s.repo.FindOne(ctx, &Derivacion{ID: id})
	if err != nil {
		zap.L().Error("failed to query derivacion", zap.Error(err))
		return nil, errutil.Internal("failed to query derivacion", err)
	}
	if current == nil {
		return nil, errutil.NotFound("derivacion not found", nil)
	}

	if nextStatus[current.Status] != target {
		return nil, errutil.UnprocessableEntity("invalid status transition", nil,
			errutil.WithDetails(errutil.Detail{Field: "status", Message: string(current.Status) + " cannot move to " + string(target)}))
	}

	if err := s.repo.Update(ctx, current.ID.String(), map[string]any{
		"status":     target,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, errutil.Internal("failed to update derivacion", err)
	}

	current.Status = target
	s.notifyStatus(current)
	return current, nil
}

type statusNotification struct {
	FichaID string `json:"ficha_id"`
	Codigo  string `json:"codigo,omitempty"`
	Status  string `json:"status"`
}

func (s *Service) notifyStatus(d *Derivacion) {
	if s.enqueuer == nil {
		return
	}

	payload, err := json.Marshal(statusNotification{
		FichaID: d.FichaID.String(),
		Codigo:  d.Codigo,
		Status:  string(d.Status),
	})
	if err != nil {
		return
	}

	if _, err := s.enqueuer.Enqueue(asynq.NewTask(taskname.DerivacionNotificar, payload)); err != nil {
		zap.L().Warn("failed to enqueue derivacion notification",
			zap.String("ficha_id", d.FichaID.String()), zap.Error(err))
	}
}

// ForFicha returns the referral for a ficha, or nil when none exists.
func (s *Service) ForFicha(ctx context.Context, fichaID snowflake.ID) (*Derivacion, error) {
	return s.repo.FindOne(ctx, &Derivacion{FichaID: fichaID})
}

// Count returns the total number of referrals.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx, &Derivacion{})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "DUPLICATE")
}
