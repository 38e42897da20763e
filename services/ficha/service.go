package ficha

import (
	"context"
	"errors"
	"strings"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/pkg/featureflags"
	"padron-controlplane/pkg/gen"
	"padron-controlplane/pkg/repository"
	"padron-controlplane/pkg/sequence"
	"padron-controlplane/services/certificacion"
	"padron-controlplane/services/clasificacion"
	"padron-controlplane/services/derivacion"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// FlagDerivarTierB gates the automatic referral of tier B registrations that
// carry no certification yet.
const FlagDerivarTierB = "derivar-categoria-b-sin-certificacion"

const maxCodeAttempts = 5

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	cfg   *config.Config
	seq   sequence.Generator
	flags featureflags.FeatureFlag

	derivaciones    *derivacion.Service
	certificaciones *certificacion.Service

	repo repository.Repository[Ficha]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
	Seq    sequence.Generator       `optional:"true"`
	Flags  featureflags.FeatureFlag `optional:"true"`

	Derivaciones    *derivacion.Service
	Certificaciones *certificacion.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:              p.DB,
		node:            p.Node,
		cfg:             p.Config,
		seq:             p.Seq,
		flags:           p.Flags,
		derivaciones:    p.Derivaciones,
		certificaciones: p.Certificaciones,
		repo:            repository.ProvideStore[Ficha](p.DB),
	}
}

type RegisterInput struct {
	Cedula           string
	NombreCompleto   string
	Telefono         string
	ZonaCode         string
	NivelEducativo   string
	AniosExperiencia string
	Oficio           string

	RegistroLat *float64
	RegistroLng *float64
	CasaLat     *float64
	CasaLng     *float64
	TrabajoLat  *float64
	TrabajoLng  *float64
}

func (in RegisterInput) validate() error {
	var details []errutil.Detail
	if strings.TrimSpace(in.Cedula) == "" {
		details = append(details, errutil.Detail{Field: "cedula", Message: "required"})
	}
	if strings.TrimSpace(in.NombreCompleto) == "" {
		details = append(details, errutil.Detail{Field: "nombre_completo", Message: "required"})
	}
	if strings.TrimSpace(in.NivelEducativo) == "" {
		details = append(details, errutil.Detail{Field: "nivel_educativo", Message: "required"})
	}
	if len(details) > 0 {
		return errutil.ValidationFailed("missing required fields", nil, errutil.WithDetails(details...))
	}
	return nil
}

// Register creates a ficha. The tier comes from the classification rules and
// is final. Tier A records verify immediately; referral-eligible tiers get
// their Derivacion in the same transaction so a crash never leaves a tier C
// registration without its referral.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Ficha, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	cedula := strings.TrimSpace(in.Cedula)

	exist, err := s.repo.FindOne(ctx, &Ficha{Cedula: cedula})
	if err != nil {
		zap.L().Error("failed to query ficha by cedula", zap.Error(err))
		return nil, errutil.Internal("failed to query ficha", err)
	}
	if exist != nil {
		return nil, errutil.Conflict("a ficha already exists for this cedula", nil,
			errutil.WithReason(errutil.ReasonDuplicateCedula))
	}

	res := clasificacion.Classify(in.NivelEducativo, clasificacion.ParseExperienceYears(in.AniosExperiencia))

	f := &Ficha{
		ID:               s.node.Generate(),
		Cedula:           cedula,
		NombreCompleto:   strings.TrimSpace(in.NombreCompleto),
		Telefono:         in.Telefono,
		ZonaCode:         s.zone(in.ZonaCode),
		NivelEducativo:   in.NivelEducativo,
		AniosExperiencia: clasificacion.ParseExperienceYears(in.AniosExperiencia),
		Oficio:           in.Oficio,
		RegistroLat:      in.RegistroLat,
		RegistroLng:      in.RegistroLng,
		CasaLat:          in.CasaLat,
		CasaLng:          in.CasaLng,
		TrabajoLat:       in.TrabajoLat,
		TrabajoLng:       in.TrabajoLng,
		Tier:             res.Categoria,
	}

	f.VerificationStatus = EstadoPendiente
	if res.Categoria == clasificacion.CategoriaA {
		// a formal credential is its own verification
		f.VerificationStatus = EstadoVerificado
	}

	if s.seq != nil {
		if folio, err := s.seq.NextFichaFolio(ctx); err == nil {
			f.Folio = folio
		} else {
			zap.L().Warn("failed to generate ficha folio", zap.Error(err))
		}
	}

	refer := clasificacion.ReferralEligible(res.Categoria, s.derivarTierB(ctx))

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		f.SecurityCode, err = gen.SecurityCode()
		if err != nil {
			return nil, errutil.Internal("failed to generate security code", err)
		}
		f.VerificationCode, err = gen.VerificationCode()
		if err != nil {
			return nil, errutil.Internal("failed to generate verification code", err)
		}

		txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.WithTrx(tx).Create(ctx, f); err != nil {
				return err
			}
			if refer {
				return s.derivaciones.UpsertForFicha(ctx, tx, f.ID, f.Tier)
			}
			return nil
		})
		if txErr == nil {
			return f, nil
		}
		if !isUniqueViolation(txErr) {
			zap.L().Error("failed to create ficha", zap.Error(txErr))
			return nil, errutil.Internal("failed to create ficha", txErr)
		}

		// unique violation: either the cedula raced us or a generated code
		// collided. Re-check the cedula; a collision just means new codes.
		dup, derr := s.repo.FindOne(ctx, &Ficha{Cedula: cedula})
		if derr != nil {
			return nil, errutil.Internal("failed to query ficha", derr)
		}
		if dup != nil {
			return nil, errutil.Conflict("a ficha already exists for this cedula", nil,
				errutil.WithReason(errutil.ReasonDuplicateCedula))
		}
		zap.L().Warn("generated code collided, regenerating",
			zap.Int("attempt", attempt+1), zap.String("cedula", cedula))
	}

	return nil, errutil.Conflict("could not allocate unique codes for the ficha", nil)
}

// ClasificacionView is the public read model behind the verification code: the
// tier plus the eligibility derived from certifications and referral state.
type ClasificacionView struct {
	VerificationCode   string                  `json:"verification_code"`
	NombreCompleto     string                  `json:"nombre_completo"`
	Tier               clasificacion.Categoria `json:"tier"`
	Estado             string                  `json:"estado"`
	Idoneidad          clasificacion.Idoneidad `json:"idoneidad"`
	VerificationStatus EstadoVerificacion      `json:"verification_status"`
	HasCertification   bool                    `json:"has_certification"`
	ReferredToTraining bool                    `json:"referred_to_training"`
	ReferralCompleted  bool                    `json:"referral_completed"`
}

func (s *Service) Clasificacion(ctx context.Context, verificationCode string) (*ClasificacionView, error) {
	code := strings.TrimSpace(verificationCode)
	if code == "" {
		return nil, errutil.BadRequest("verification code is required", nil)
	}

	f, err := s.repo.FindOne(ctx, &Ficha{VerificationCode: code})
	if err != nil {
		zap.L().Error("failed to query ficha by verification code", zap.Error(err))
		return nil, errutil.Internal("failed to query ficha", err)
	}
	if f == nil {
		return nil, errutil.NotFound("no ficha matches this verification code", nil)
	}

	certs, err := s.certificaciones.CountForFicha(ctx, f.ID)
	if err != nil {
		return nil, errutil.Internal("failed to count certificaciones", err)
	}

	deriv, err := s.derivaciones.ForFicha(ctx, f.ID)
	if err != nil {
		return nil, errutil.Internal("failed to query derivacion", err)
	}

	referred := deriv != nil
	completed := deriv != nil && deriv.Status == derivacion.StatusCompletada

	return &ClasificacionView{
		VerificationCode:   f.VerificationCode,
		NombreCompleto:     f.NombreCompleto,
		Tier:               f.Tier,
		Estado:             clasificacion.Classify(f.NivelEducativo, f.AniosExperiencia).Estado,
		Idoneidad:          clasificacion.Eligibility(f.Tier, certs > 0, referred, completed),
		VerificationStatus: f.VerificationStatus,
		HasCertification:   certs > 0,
		ReferredToTraining: referred,
		ReferralCompleted:  completed,
	}, nil
}

// Resumen aggregates the headline registry counts. The queries are independent
// so they run in parallel.
func (s *Service) Resumen(ctx context.Context) (*Resumen, error) {
	var out Resumen

	g, gctx := errgroup.WithContext(ctx)

	count := func(dst *int64, query *Ficha) func() error {
		return func() error {
			n, err := s.repo.Count(gctx, query)
			if err != nil {
				return err
			}
			*dst = n
			return nil
		}
	}

	g.Go(count(&out.Total, &Ficha{}))
	g.Go(count(&out.Pendientes, &Ficha{VerificationStatus: EstadoPendiente}))
	g.Go(count(&out.Verificadas, &Ficha{VerificationStatus: EstadoVerificado}))
	g.Go(count(&out.Transferidas, &Ficha{VerificationStatus: EstadoTransferido}))
	g.Go(count(&out.TierA, &Ficha{Tier: clasificacion.CategoriaA}))
	g.Go(count(&out.TierB, &Ficha{Tier: clasificacion.CategoriaB}))
	g.Go(count(&out.TierC, &Ficha{Tier: clasificacion.CategoriaC}))
	g.Go(func() error {
		n, err := s.derivaciones.Count(gctx)
		if err != nil {
			return err
		}
		out.Derivaciones = n
		return nil
	})

	if err := g.Wait(); err != nil {
		zap.L().Error("failed to aggregate resumen", zap.Error(err))
		return nil, errutil.Internal("failed to aggregate resumen", err)
	}

	return &out, nil
}

func (s *Service) zone(requested string) string {
	if requested != "" {
		return requested
	}
	if s.cfg != nil {
		return s.cfg.Territorio.ZonaDefault
	}
	return ""
}

func (s *Service) derivarTierB(ctx context.Context) bool {
	fallback := true
	if s.cfg != nil {
		fallback = s.cfg.Registro.DerivarCategoriaBSinCert
	}
	if s.flags == nil {
		return fallback
	}
	return s.flags.IsEnabled(ctx, FlagDerivarTierB, fallback)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "UNIQUE") || strings.Contains(msg, "DUPLICATE")
}
