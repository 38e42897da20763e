package ficha

import (
	"context"
	"errors"
	"testing"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/services/certificacion"
	"padron-controlplane/services/clasificacion"
	"padron-controlplane/services/derivacion"
	"padron-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	fichas          *Service
	derivaciones    *derivacion.Service
	certificaciones *certificacion.Service
	db              *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &Ficha{}, &derivacion.Derivacion{}, &certificacion.Certificacion{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Registro.DerivarCategoriaBSinCert = true

	derivaciones := derivacion.NewService(derivacion.ServiceParams{DB: db, Node: node})
	certificaciones := certificacion.NewService(certificacion.ServiceParams{DB: db, Node: node})

	return &fixture{
		fichas: NewService(ServiceParams{
			DB:              db,
			Node:            node,
			Config:          cfg,
			Derivaciones:    derivaciones,
			Certificaciones: certificaciones,
		}),
		derivaciones:    derivaciones,
		certificaciones: certificaciones,
		db:              db,
	}
}

func TestRegisterFormalCredentialAutoVerifies(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f, err := fx.fichas.Register(ctx, RegisterInput{
		Cedula:           "4123456",
		NombreCompleto:   "Juana Perez",
		NivelEducativo:   "SNPP",
		AniosExperiencia: "0",
	})
	require.NoError(t, err)
	require.Equal(t, clasificacion.CategoriaA, f.Tier)
	require.Equal(t, EstadoVerificado, f.VerificationStatus)
	require.NotEmpty(t, f.SecurityCode)
	require.NotEmpty(t, f.VerificationCode)
	require.Len(t, f.VerificationCode, 9)

	d, err := fx.derivaciones.ForFicha(ctx, f.ID)
	require.NoError(t, err)
	require.Nil(t, d)
}

func TestRegisterEmpiricalWithoutExperienceIsReferred(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f, err := fx.fichas.Register(ctx, RegisterInput{
		Cedula:           "4123457",
		NombreCompleto:   "Pedro Gomez",
		NivelEducativo:   clasificacion.NivelEmpirico,
		AniosExperiencia: "0",
	})
	require.NoError(t, err)
	require.Equal(t, clasificacion.CategoriaC, f.Tier)
	require.Equal(t, EstadoPendiente, f.VerificationStatus)

	d, err := fx.derivaciones.ForFicha(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, derivacion.StatusPendiente, d.Status)
	require.Equal(t, clasificacion.CategoriaC, d.OriginTier)
}

func TestRegisterEmpiricalWithExperienceReferredUnderPolicy(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f, err := fx.fichas.Register(ctx, RegisterInput{
		Cedula:           "4123458",
		NombreCompleto:   "Maria Lopez",
		NivelEducativo:   clasificacion.NivelEmpirico,
		AniosExperiencia: "5",
	})
	require.NoError(t, err)
	require.Equal(t, clasificacion.CategoriaB, f.Tier)
	require.Equal(t, EstadoPendiente, f.VerificationStatus)

	d, err := fx.derivaciones.ForFicha(ctx, f.ID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, clasificacion.CategoriaB, d.OriginTier)
}

func TestRegisterDuplicateCedula(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	in := RegisterInput{
		Cedula:           "4123459",
		NombreCompleto:   "Carlos Diaz",
		NivelEducativo:   "SNPP",
		AniosExperiencia: "1",
	}

	_, err := fx.fichas.Register(ctx, in)
	require.NoError(t, err)

	_, err = fx.fichas.Register(ctx, in)
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusConflict, base.Code)
	require.Equal(t, errutil.ReasonDuplicateCedula, base.Reason)
}

func TestRegisterValidatesRequiredFields(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.fichas.Register(context.Background(), RegisterInput{Cedula: "123"})
	require.Error(t, err)
}

func TestClasificacionByVerificationCode(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	f, err := fx.fichas.Register(ctx, RegisterInput{
		Cedula:           "4123460",
		NombreCompleto:   "Rosa Benitez",
		NivelEducativo:   clasificacion.NivelEmpirico,
		AniosExperiencia: "0",
	})
	require.NoError(t, err)

	view, err := fx.fichas.Clasificacion(ctx, f.VerificationCode)
	require.NoError(t, err)
	require.Equal(t, clasificacion.CategoriaC, view.Tier)
	require.Equal(t, clasificacion.IdoneidadEnCapacitacion, view.Idoneidad)
	require.False(t, view.HasCertification)
	require.True(t, view.ReferredToTraining)
	require.False(t, view.ReferralCompleted)

	// a registered credential upgrades the eligibility
	_, err = fx.certificaciones.Create(ctx, certificacion.CreateInput{
		FichaID:     f.ID,
		Tipo:        certificacion.TipoIssuerA,
		Institucion: "SNPP",
	})
	require.NoError(t, err)

	view, err = fx.fichas.Clasificacion(ctx, f.VerificationCode)
	require.NoError(t, err)
	require.True(t, view.HasCertification)
	require.Equal(t, clasificacion.IdoneidadCertificado, view.Idoneidad)

	_, err = fx.fichas.Clasificacion(ctx, "ZZZZ-ZZZZ")
	require.Error(t, err)

	_, err = fx.fichas.Clasificacion(ctx, "")
	require.Error(t, err)
}

func TestResumenCounts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.fichas.Register(ctx, RegisterInput{
		Cedula: "1", NombreCompleto: "a", NivelEducativo: "SNPP",
	})
	require.NoError(t, err)
	_, err = fx.fichas.Register(ctx, RegisterInput{
		Cedula: "2", NombreCompleto: "b", NivelEducativo: clasificacion.NivelEmpirico, AniosExperiencia: "0",
	})
	require.NoError(t, err)
	_, err = fx.fichas.Register(ctx, RegisterInput{
		Cedula: "3", NombreCompleto: "c", NivelEducativo: clasificacion.NivelEmpirico, AniosExperiencia: "4",
	})
	require.NoError(t, err)

	resumen, err := fx.fichas.Resumen(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, resumen.Total)
	require.EqualValues(t, 1, resumen.Verificadas)
	require.EqualValues(t, 2, resumen.Pendientes)
	require.EqualValues(t, 1, resumen.TierA)
	require.EqualValues(t, 1, resumen.TierB)
	require.EqualValues(t, 1, resumen.TierC)
	require.EqualValues(t, 2, resumen.Derivaciones)
}
