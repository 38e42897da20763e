package certificacion

import (
	"context"
	"time"

	"padron-controlplane/pkg/errutil"
	"padron-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node

	repo repository.Repository[Certificacion]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[Certificacion](p.DB),
	}
}

type CreateInput struct {
	FichaID     snowflake.ID
	Tipo        Tipo
	Institucion string
	IssuedAt    time.Time
	Credencial  string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Certificacion, error) {
	if !in.Tipo.Valid() {
		return nil, errutil.ValidationFailed("invalid certification type", nil,
			errutil.WithDetails(errutil.Detail{Field: "tipo", Message: "must be ISSUER_A, ISSUER_B or OTHER"}))
	}
	if in.Institucion == "" {
		return nil, errutil.ValidationFailed("issuing institution is required", nil)
	}
	if in.IssuedAt.IsZero() {
		in.IssuedAt = time.Now()
	}

	cert := &Certificacion{
		ID:          s.node.Generate(),
		FichaID:     in.FichaID,
		Tipo:        in.Tipo,
		Institucion: in.Institucion,
		IssuedAt:    in.IssuedAt,
		Credencial:  in.Credencial,
	}

	if err := s.repo.Create(ctx, cert); err != nil {
		zap.L().Error("failed to create certificacion", zap.Error(err))
		return nil, errutil.Internal("failed to create certificacion", err)
	}

	return cert, nil
}

// CountForFicha reports how many credentials back a ficha.
func (s *Service) CountForFicha(ctx context.Context, fichaID snowflake.ID) (int64, error) {
	return s.repo.Count(ctx, &Certificacion{FichaID: fichaID})
}
