package operador

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/services/clasificacion"
	"padron-controlplane/services/derivacion"
	"padron-controlplane/services/ficha"
	"padron-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	operadores   *Service
	derivaciones *derivacion.Service
	db           *gorm.DB
	node         *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &ficha.Ficha{}, &Operador{}, &derivacion.Derivacion{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Registro.DerivarCategoriaBSinCert = true

	derivaciones := derivacion.NewService(derivacion.ServiceParams{DB: db, Node: node})

	return &fixture{
		operadores: NewService(ServiceParams{
			DB:           db,
			Node:         node,
			Config:       cfg,
			Derivaciones: derivaciones,
		}),
		derivaciones: derivaciones,
		db:           db,
		node:         node,
	}
}

func (fx *fixture) seedFicha(t *testing.T, tier clasificacion.Categoria) *ficha.Ficha {
	t.Helper()

	id := fx.node.Generate()
	f := &ficha.Ficha{
		ID:                 id,
		SecurityCode:       fmt.Sprintf("SEC%d", id),
		VerificationCode:   fmt.Sprintf("VER%d", id),
		Cedula:             fmt.Sprintf("CED%d", id),
		NombreCompleto:     "Test Worker",
		NivelEducativo:     clasificacion.NivelEmpirico,
		Tier:               tier,
		VerificationStatus: ficha.EstadoPendiente,
	}
	require.NoError(t, fx.db.Create(f).Error)
	return f
}

func reasonOf(t *testing.T, err error) string {
	t.Helper()

	var base errutil.BaseError
	require.True(t, errors.As(err, &base), "expected a BaseError, got %v", err)
	return base.Reason
}

func TestClaimExclusivityUnderConcurrency(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	const callers = 8

	var wg sync.WaitGroup
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = fx.operadores.Claim(ctx, f.ID, fmt.Sprintf("op-%d", i))
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		require.Equal(t, errutil.ReasonAlreadyClaimed, reasonOf(t, err))
	}
	require.Equal(t, 1, wins)

	var stored ficha.Ficha
	require.NoError(t, fx.db.First(&stored, "ficha_id = ?", f.ID).Error)
	require.NotNil(t, stored.AssignedOperatorID)
	require.NotNil(t, stored.AssignedAt)
}

func TestClaimFailureIsIdempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	_, err := fx.operadores.Claim(ctx, f.ID, "111")
	require.NoError(t, err)

	// even the winner cannot claim twice
	_, err = fx.operadores.Claim(ctx, f.ID, "111")
	require.Error(t, err)
	require.Equal(t, errutil.ReasonAlreadyClaimed, reasonOf(t, err))

	_, err = fx.operadores.Claim(ctx, f.ID, "222")
	require.Error(t, err)
	require.Equal(t, errutil.ReasonAlreadyClaimed, reasonOf(t, err))
}

func TestClaimPreconditions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.operadores.Claim(ctx, snowflake.ID(999999), "111")
	require.Error(t, err)

	f := fx.seedFicha(t, clasificacion.CategoriaA)
	require.NoError(t, fx.db.Model(&ficha.Ficha{}).
		Where("ficha_id = ?", f.ID).
		Update("verification_status", ficha.EstadoVerificado).Error)

	_, err = fx.operadores.Claim(ctx, f.ID, "111")
	require.Error(t, err)
	require.Equal(t, errutil.ReasonNotPending, reasonOf(t, err))
}

func TestAdjudicateScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	_, err := fx.operadores.Claim(ctx, f.ID, "111")
	require.NoError(t, err)

	_, err = fx.operadores.Claim(ctx, f.ID, "222")
	require.Error(t, err)
	require.Equal(t, errutil.ReasonAlreadyClaimed, reasonOf(t, err))

	res, err := fx.operadores.Adjudicate(ctx, f.ID, "111", ficha.DictamenAprobado, false)
	require.NoError(t, err)
	require.Equal(t, ficha.EstadoVerificado, res.VerificationStatus)

	_, err = fx.operadores.Adjudicate(ctx, f.ID, "111", ficha.DictamenRechazado, false)
	require.Error(t, err)
	require.Equal(t, errutil.ReasonAlreadyAdjudicated, reasonOf(t, err))

	var stored ficha.Ficha
	require.NoError(t, fx.db.First(&stored, "ficha_id = ?", f.ID).Error)
	require.NotNil(t, stored.Verdict)
	require.Equal(t, ficha.DictamenAprobado, *stored.Verdict)
	require.Equal(t, ficha.EstadoVerificado, stored.VerificationStatus)
}

func TestAdjudicateApprovedWithObservationVerifies(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	_, err := fx.operadores.Claim(ctx, f.ID, "111")
	require.NoError(t, err)

	res, err := fx.operadores.Adjudicate(ctx, f.ID, "111", ficha.DictamenAprobadoObservacion, false)
	require.NoError(t, err)
	require.Equal(t, ficha.EstadoVerificado, res.VerificationStatus)

	var stored ficha.Ficha
	require.NoError(t, fx.db.First(&stored, "ficha_id = ?", f.ID).Error)
	require.NotNil(t, stored.Verdict)
	require.Equal(t, ficha.DictamenAprobadoObservacion, *stored.Verdict)
	require.Equal(t, ficha.EstadoVerificado, stored.VerificationStatus)
}

func TestAdjudicateOwnership(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	_, err := fx.operadores.Claim(ctx, f.ID, "111")
	require.NoError(t, err)

	_, err = fx.operadores.Adjudicate(ctx, f.ID, "222", ficha.DictamenAprobado, false)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusForbidden, base.Code)

	var stored ficha.Ficha
	require.NoError(t, fx.db.First(&stored, "ficha_id = ?", f.ID).Error)
	require.Nil(t, stored.Verdict)
}

func TestAdjudicateInvalidVerdict(t *testing.T) {
	fx := newFixture(t)
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	_, err := fx.operadores.Adjudicate(context.Background(), f.ID, "111", ficha.Dictamen("MAYBE"), false)
	require.Error(t, err)
}

func TestAdjudicateRejectedLeavesStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaB)

	_, err := fx.operadores.Claim(ctx, f.ID, "111")
	require.NoError(t, err)

	res, err := fx.operadores.Adjudicate(ctx, f.ID, "111", ficha.DictamenRechazado, true)
	require.NoError(t, err)
	require.Equal(t, ficha.EstadoPendiente, res.VerificationStatus)

	var stored ficha.Ficha
	require.NoError(t, fx.db.First(&stored, "ficha_id = ?", f.ID).Error)
	require.Equal(t, ficha.EstadoPendiente, stored.VerificationStatus)
	require.True(t, stored.EquipmentShortfallEvidence)
}

func TestAdjudicateReferToTrainingCreatesDerivacion(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	f := fx.seedFicha(t, clasificacion.CategoriaC)

	_, err := fx.operadores.Claim(ctx, f.ID, "111")
	require.NoError(t, err)

	res, err := fx.operadores.Adjudicate(ctx, f.ID, "111", ficha.DictamenDerivarCapacitacion, false)
	require.NoError(t, err)
	require.Equal(t, ficha.EstadoPendiente, res.VerificationStatus)

	d, err := fx.derivaciones.ForFicha(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, clasificacion.CategoriaC, d.OriginTier)

	var count int64
	require.NoError(t, fx.db.Model(&derivacion.Derivacion{}).Where("ficha_id = ?", f.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestUpsertOperador(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	op, err := fx.operadores.Upsert(ctx, UpsertInput{
		Cedula:      "5000001",
		ZoneCode:    "Z1",
		DisplayName: "Ana",
		Pin:         "1234",
	})
	require.NoError(t, err)
	require.NotEmpty(t, op.PinHash)
	require.NotEqual(t, "1234", op.PinHash)

	require.NoError(t, fx.operadores.VerifyPin(ctx, "5000001", "1234"))
	require.Error(t, fx.operadores.VerifyPin(ctx, "5000001", "9999"))

	updated, err := fx.operadores.Upsert(ctx, UpsertInput{
		Cedula:      "5000001",
		DisplayName: "Ana Maria",
	})
	require.NoError(t, err)
	require.Equal(t, op.ID, updated.ID)
	require.Equal(t, "Ana Maria", updated.DisplayName)
	require.Equal(t, "Z1", updated.ZoneCode)

	var count int64
	require.NoError(t, fx.db.Model(&Operador{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestLinkWallet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.operadores.LinkWallet(ctx, "nope", "0981111111")
	require.Error(t, err)

	_, err = fx.operadores.Upsert(ctx, UpsertInput{Cedula: "5000002"})
	require.NoError(t, err)

	op, err := fx.operadores.LinkWallet(ctx, "5000002", "0981111111")
	require.NoError(t, err)
	require.NotNil(t, op.WalletPhone)
	require.Equal(t, "0981111111", *op.WalletPhone)
}
