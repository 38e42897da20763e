package certificacion

import (
	"context"
	"testing"
	"time"

	"padron-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Certificacion{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreateRequiresValidType(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		FichaID:     snowflake.ID(1),
		Tipo:        Tipo("BOGUS"),
		Institucion: "SNPP",
	})
	require.Error(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		FichaID: snowflake.ID(1),
		Tipo:    TipoIssuerA,
	})
	require.Error(t, err)
}

func TestCreateAndCount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	fichaID := snowflake.ID(42)

	cert, err := svc.Create(ctx, CreateInput{
		FichaID:     fichaID,
		Tipo:        TipoIssuerA,
		Institucion: "SNPP",
		IssuedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Credencial:  "C-0001",
	})
	require.NoError(t, err)
	require.NotZero(t, cert.ID)

	_, err = svc.Create(ctx, CreateInput{
		FichaID:     fichaID,
		Tipo:        TipoOtro,
		Institucion: "Municipalidad",
	})
	require.NoError(t, err)

	count, err := svc.CountForFicha(ctx, fichaID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = svc.CountForFicha(ctx, snowflake.ID(7))
	require.NoError(t, err)
	require.Zero(t, count)
}
