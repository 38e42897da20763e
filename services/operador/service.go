package operador

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/pkg/featureflags"
	"padron-controlplane/pkg/middleware"
	"padron-controlplane/pkg/repository"
	"padron-controlplane/pkg/task"
	"padron-controlplane/pkg/taskname"
	"padron-controlplane/services/clasificacion"
	"padron-controlplane/services/derivacion"
	"padron-controlplane/services/ficha"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	cfg   *config.Config
	flags featureflags.FeatureFlag

	assignments  *AssignmentRepository
	operadores   repository.Repository[Operador]
	derivaciones *derivacion.Service

	enqueuer task.Enqueuer
	storage  *minio.Client
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
	Flags  featureflags.FeatureFlag `optional:"true"`

	Derivaciones *derivacion.Service

	Enqueuer task.Enqueuer `optional:"true"`
	Storage  *minio.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:           p.DB,
		node:         p.Node,
		cfg:          p.Config,
		flags:        p.Flags,
		assignments:  NewAssignmentRepository(AssignmentRepositoryParams{DB: p.DB}),
		operadores:   repository.ProvideStore[Operador](p.DB),
		derivaciones: p.Derivaciones,
		enqueuer:     p.Enqueuer,
		storage:      p.Storage,
	}
}

type UpsertInput struct {
	Cedula      string
	ZoneCode    string
	DisplayName string
	Pin         string
}

// Upsert creates or updates an operator keyed on cedula. The PIN is stored
// only as a bcrypt hash and never returned.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Operador, error) {
	cedula := strings.TrimSpace(in.Cedula)
	if cedula == "" {
		return nil, errutil.ValidationFailed("cedula is required", nil)
	}

	var pinHash string
	if in.Pin != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Pin), bcrypt.DefaultCost)
		if err != nil {
			return nil, errutil.Internal("failed to hash pin", err)
		}
		pinHash = string(hash)
	}

	exist, err := s.operadores.FindOne(ctx, &Operador{Cedula: cedula})
	if err != nil {
		zap.L().Error("failed to query operador", zap.Error(err))
		return nil, errutil.Internal("failed to query operador", err)
	}

	if exist == nil {
		op := &Operador{
			ID:          s.node.Generate(),
			Cedula:      cedula,
			ZoneCode:    in.ZoneCode,
			DisplayName: in.DisplayName,
			PinHash:     pinHash,
		}
		if err := s.operadores.Create(ctx, op); err != nil {
			zap.L().Error("failed to create operador", zap.Error(err))
			return nil, errutil.Internal("failed to create operador", err)
		}
		return op, nil
	}

	updates := map[string]any{"updated_at": time.Now()}
	if in.ZoneCode != "" {
		updates["zone_code"] = in.ZoneCode
		exist.ZoneCode = in.ZoneCode
	}
	if in.DisplayName != "" {
		updates["display_name"] = in.DisplayName
		exist.DisplayName = in.DisplayName
	}
	if pinHash != "" {
		updates["pin_hash"] = pinHash
		exist.PinHash = pinHash
	}
	if err := s.operadores.Update(ctx, exist.ID.String(), updates); err != nil {
		zap.L().Error("failed to update operador", zap.Error(err))
		return nil, errutil.Internal("failed to update operador", err)
	}

	return exist, nil
}

func (s *Service) ByCedula(ctx context.Context, cedula string) (*Operador, error) {
	return s.operadores.FindOne(ctx, &Operador{Cedula: cedula})
}

// VerifyPin checks an operator's access PIN against the stored hash.
func (s *Service) VerifyPin(ctx context.Context, cedula, pin string) error {
	op, err := s.ByCedula(ctx, cedula)
	if err != nil {
		return errutil.Internal("failed to query operador", err)
	}
	if op == nil || op.PinHash == "" {
		return errutil.Unauthorized("invalid credentials", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PinHash), []byte(pin)); err != nil {
		return errutil.Unauthorized("invalid credentials", nil)
	}
	return nil
}

// Claim assigns a pending, unclaimed ficha to the operator. First to arrive
// wins: the winner is decided by a single conditional update, never by a
// read-then-write sequence. Losers get a stable machine reason so the caller
// can tell "someone beat you to it" apart from other conflicts.
func (s *Service) Claim(ctx context.Context, fichaID snowflake.ID, operadorCedula string) (*ficha.Ficha, error) {
	if operadorCedula == "" {
		return nil, errutil.ValidationFailed("operator cedula is required", nil)
	}

	f, err := s.assignments.FindFicha(ctx, fichaID)
	if err != nil {
		zap.L().Error("failed to query ficha", zap.Error(err))
		return nil, errutil.Internal("failed to query ficha", err)
	}
	if f == nil {
		return nil, errutil.NotFound("ficha not found", nil)
	}
	if f.VerificationStatus != ficha.EstadoPendiente {
		return nil, errutil.BadRequest("ficha is no longer pending", nil,
			errutil.WithReason(errutil.ReasonNotPending))
	}
	if f.AssignedOperatorID != nil {
		return nil, errutil.Conflict("ficha is already claimed", nil,
			errutil.WithReason(errutil.ReasonAlreadyClaimed))
	}

	rows, err := s.assignments.Claim(ctx, fichaID, operadorCedula)
	if err != nil {
		zap.L().Error("failed to claim ficha", zap.Error(err))
		return nil, errutil.Internal("failed to claim ficha", err)
	}
	if rows == 0 {
		// lost the race between the precheck and the update
		return nil, s.classifyClaimLoss(ctx, fichaID)
	}

	now := time.Now()
	f.AssignedOperatorID = &operadorCedula
	f.AssignedAt = &now

	zap.L().Info("ficha claimed",
		zap.String("ficha_id", fichaID.String()),
		zap.String("operador", operadorCedula),
		zap.String("channel", middleware.ChannelName(ctx)))

	return f, nil
}

func (s *Service) classifyClaimLoss(ctx context.Context, fichaID snowflake.ID) error {
	f, err := s.assignments.FindFicha(ctx, fichaID)
	if err != nil || f == nil {
		return errutil.Conflict("ficha is already claimed", err,
			errutil.WithReason(errutil.ReasonAlreadyClaimed))
	}
	if f.VerificationStatus != ficha.EstadoPendiente {
		return errutil.BadRequest("ficha is no longer pending", nil,
			errutil.WithReason(errutil.ReasonNotPending))
	}
	return errutil.Conflict("ficha is already claimed", nil,
		errutil.WithReason(errutil.ReasonAlreadyClaimed))
}

type AdjudicateResult struct {
	FichaID            snowflake.ID             `json:"ficha_id"`
	Verdict            ficha.Dictamen           `json:"verdict"`
	VerificationStatus ficha.EstadoVerificacion `json:"verification_status"`
}

// Adjudicate records the operator's single, final verdict on a ficha they
// claimed. The guard on a null verdict makes the dictamen exactly-once; a
// REFER_TO_TRAINING verdict additionally upserts the training referral as a
// best-effort side effect that never fails the adjudication itself.
func (s *Service) Adjudicate(ctx context.Context, fichaID snowflake.ID, operadorCedula string, verdict ficha.Dictamen, evidence bool) (*AdjudicateResult, error) {
	if !verdict.Valid() {
		return nil, errutil.ValidationFailed("invalid verdict", nil,
			errutil.WithDetails(errutil.Detail{Field: "verdict", Message: "must be APPROVED, APPROVED_WITH_OBSERVATION, REJECTED or REFER_TO_TRAINING"}))
	}
	if operadorCedula == "" {
		return nil, errutil.ValidationFailed("operator cedula is required", nil)
	}

	f, err := s.assignments.FindFicha(ctx, fichaID)
	if err != nil {
		zap.L().Error("failed to query ficha", zap.Error(err))
		return nil, errutil.Internal("failed to query ficha", err)
	}
	if f == nil {
		return nil, errutil.NotFound("ficha not found", nil)
	}
	if f.AssignedOperatorID == nil || *f.AssignedOperatorID != operadorCedula {
		return nil, errutil.Forbidden("ficha is not assigned to this operator", nil)
	}
	if f.Verdict != nil {
		return nil, errutil.Conflict("ficha has already been adjudicated", nil,
			errutil.WithReason(errutil.ReasonAlreadyAdjudicated))
	}

	rows, err := s.assignments.Adjudicate(ctx, fichaID, operadorCedula, verdict, evidence)
	if err != nil {
		zap.L().Error("failed to adjudicate ficha", zap.Error(err))
		return nil, errutil.Internal("failed to adjudicate ficha", err)
	}
	if rows == 0 {
		return nil, s.classifyAdjudicationLoss(ctx, fichaID, operadorCedula)
	}

	status := f.VerificationStatus
	if verdict.Verifies() {
		status = ficha.EstadoVerificado
	}

	if verdict == ficha.DictamenDerivarCapacitacion && clasificacion.ReferralEligible(f.Tier, s.derivarTierB(ctx)) {
		if err := s.derivaciones.UpsertForFicha(ctx, nil, f.ID, f.Tier); err != nil {
			zap.L().Error("failed to upsert derivacion after dictamen",
				zap.String("ficha_id", f.ID.String()), zap.Error(err))
		}
	}

	s.notifyDictamen(f, operadorCedula, verdict, status)

	zap.L().Info("ficha adjudicated",
		zap.String("ficha_id", fichaID.String()),
		zap.String("operador", operadorCedula),
		zap.String("verdict", string(verdict)))

	return &AdjudicateResult{FichaID: f.ID, Verdict: verdict, VerificationStatus: status}, nil
}

func (s *Service) classifyAdjudicationLoss(ctx context.Context, fichaID snowflake.ID, operadorCedula string) error {
	f, err := s.assignments.FindFicha(ctx, fichaID)
	if err != nil || f == nil {
		return errutil.Conflict("ficha has already been adjudicated", err,
			errutil.WithReason(errutil.ReasonAlreadyAdjudicated))
	}
	if f.AssignedOperatorID == nil || *f.AssignedOperatorID != operadorCedula {
		return errutil.Forbidden("ficha is not assigned to this operator", nil)
	}
	return errutil.Conflict("ficha has already been adjudicated", nil,
		errutil.WithReason(errutil.ReasonAlreadyAdjudicated))
}

type dictamenNotification struct {
	FichaID            string `json:"ficha_id"`
	OperadorCedula     string `json:"operador_cedula"`
	Verdict            string `json:"verdict"`
	VerificationStatus string `json:"verification_status"`
	Telefono           string `json:"telefono,omitempty"`
}

func (s *Service) notifyDictamen(f *ficha.Ficha, operadorCedula string, verdict ficha.Dictamen, status ficha.EstadoVerificacion) {
	if s.enqueuer == nil {
		return
	}

	payload, err := json.Marshal(dictamenNotification{
		FichaID:            f.ID.String(),
		OperadorCedula:     operadorCedula,
		Verdict:            string(verdict),
		VerificationStatus: string(status),
		Telefono:           f.Telefono,
	})
	if err != nil {
		return
	}

	if _, err := s.enqueuer.Enqueue(asynq.NewTask(taskname.DictamenNotificar, payload)); err != nil {
		zap.L().Warn("failed to enqueue dictamen notification",
			zap.String("ficha_id", f.ID.String()), zap.Error(err))
	}
}

// LinkWallet stores the operator's external-wallet phone number, the
// prerequisite for EXTERNAL_WALLET withdrawals.
func (s *Service) LinkWallet(ctx context.Context, cedula, phone string) (*Operador, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errutil.ValidationFailed("wallet phone is required", nil)
	}

	op, err := s.ByCedula(ctx, cedula)
	if err != nil {
		zap.L().Error("failed to query operador", zap.Error(err))
		return nil, errutil.Internal("failed to query operador", err)
	}
	if op == nil {
		return nil, errutil.NotFound("operador not found", nil)
	}

	if err := s.operadores.Update(ctx, op.ID.String(), map[string]any{
		"wallet_phone": phone,
		"updated_at":   time.Now(),
	}); err != nil {
		return nil, errutil.Internal("failed to link wallet", err)
	}

	op.WalletPhone = &phone
	return op, nil
}

// UploadEvidence stores a dictamen evidence photo in object storage and
// returns the object key.
func (s *Service) UploadEvidence(ctx context.Context, fichaID snowflake.ID, operadorCedula, filename, contentType string, r io.Reader, size int64) (string, error) {
	if s.storage == nil {
		return "", errutil.New(errutil.StatusServiceUnavailable, "evidence storage is not configured")
	}

	f, err := s.assignments.FindFicha(ctx, fichaID)
	if err != nil {
		return "", errutil.Internal("failed to query ficha", err)
	}
	if f == nil {
		return "", errutil.NotFound("ficha not found", nil)
	}
	if f.AssignedOperatorID == nil || *f.AssignedOperatorID != operadorCedula {
		return "", errutil.Forbidden("ficha is not assigned to this operator", nil)
	}

	key := fmt.Sprintf("evidencia/%s/%d-%s", fichaID.String(), time.Now().UnixNano(), filename)
	if _, err := s.storage.PutObject(ctx, s.cfg.Minio.BucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		zap.L().Error("failed to store evidence", zap.Error(err))
		return "", errutil.Internal("failed to store evidence", err)
	}

	return key, nil
}

func (s *Service) derivarTierB(ctx context.Context) bool {
	fallback := true
	if s.cfg != nil {
		fallback = s.cfg.Registro.DerivarCategoriaBSinCert
	}
	if s.flags == nil {
		return fallback
	}
	return s.flags.IsEnabled(ctx, ficha.FlagDerivarTierB, fallback)
}
