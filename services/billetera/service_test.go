package billetera

import (
	"context"
	"errors"
	"sync"
	"testing"

	"padron-controlplane/pkg/config"
	"padron-controlplane/pkg/db/pagination"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/services/derivacion"
	"padron-controlplane/services/operador"
	"padron-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	billetera  *Service
	operadores *operador.Service
	db         *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &operador.Operador{}, &Movimiento{}, &derivacion.Derivacion{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	derivaciones := derivacion.NewService(derivacion.ServiceParams{DB: db, Node: node})
	operadores := operador.NewService(operador.ServiceParams{
		DB:           db,
		Node:         node,
		Config:       cfg,
		Derivaciones: derivaciones,
	})

	return &fixture{
		billetera: NewService(ServiceParams{
			DB:         db,
			Node:       node,
			Operadores: operadores,
		}),
		operadores: operadores,
		db:         db,
	}
}

func (fx *fixture) seedOperador(t *testing.T, cedula string, balance int64) {
	t.Helper()

	_, err := fx.operadores.Upsert(context.Background(), operador.UpsertInput{Cedula: cedula})
	require.NoError(t, err)
	require.NoError(t, fx.db.Model(&operador.Operador{}).
		Where("cedula = ?", cedula).
		Update("available_balance", balance).Error)
}

func balanceOf(t *testing.T, db *gorm.DB, cedula string) int64 {
	t.Helper()

	var op operador.Operador
	require.NoError(t, db.First(&op, "cedula = ?", cedula).Error)
	return op.AvailableBalance
}

func movimientosOf(t *testing.T, db *gorm.DB, cedula string) []Movimiento {
	t.Helper()

	var movs []Movimiento
	require.NoError(t, db.Where("operador_cedula = ?", cedula).Find(&movs).Error)
	return movs
}

func TestWithdrawScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedOperador(t, "111", 5000)

	// more than the balance
	_, err := fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "111",
		Destination: DestinoBilleteraExterna,
		Amount:      6000,
	})
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.ReasonInsufficientFunds, base.Reason)
	require.EqualValues(t, 5000, balanceOf(t, fx.db, "111"))
	require.Empty(t, movimientosOf(t, fx.db, "111"))

	// wallet not linked yet
	_, err = fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "111",
		Destination: DestinoBilleteraExterna,
		Amount:      3000,
	})
	require.Error(t, err)
	require.EqualValues(t, 5000, balanceOf(t, fx.db, "111"))

	_, err = fx.operadores.LinkWallet(ctx, "111", "0981234567")
	require.NoError(t, err)

	res, err := fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "111",
		Destination: DestinoBilleteraExterna,
		Amount:      3000,
	})
	require.NoError(t, err)
	require.EqualValues(t, 3000, res.Amount)
	require.Equal(t, "0981234567", res.Reference)
	require.EqualValues(t, 2000, balanceOf(t, fx.db, "111"))

	movs := movimientosOf(t, fx.db, "111")
	require.Len(t, movs, 1)
	require.Equal(t, TipoRetiroBilletera, movs[0].Tipo)
	require.EqualValues(t, 3000, movs[0].Monto)
	require.Equal(t, MovimientoCompletado, movs[0].Status)
}

func TestWithdrawInsufficientFundsExactBoundary(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedOperador(t, "222", 1000)
	_, err := fx.operadores.LinkWallet(ctx, "222", "0980000000")
	require.NoError(t, err)

	// exactly the balance is allowed
	_, err = fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "222",
		Destination: DestinoBilleteraExterna,
		Amount:      1000,
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, balanceOf(t, fx.db, "222"))

	_, err = fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "222",
		Destination: DestinoBilleteraExterna,
		Amount:      1,
	})
	require.Error(t, err)
	require.EqualValues(t, 0, balanceOf(t, fx.db, "222"))
	require.Len(t, movimientosOf(t, fx.db, "222"), 1)
}

func TestWithdrawBankAccountValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedOperador(t, "333", 5000)

	_, err := fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "333",
		Destination: DestinoCuentaBancaria,
		Amount:      1000,
	})
	require.Error(t, err)

	res, err := fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:        "333",
		Destination:   DestinoCuentaBancaria,
		Amount:        1000,
		Bank:          "Banco Itau",
		AccountNumber: "123456",
	})
	require.NoError(t, err)
	require.Equal(t, "Banco Itau - 123456", res.Reference)

	movs := movimientosOf(t, fx.db, "333")
	require.Len(t, movs, 1)
	require.Equal(t, TipoRetiroBanco, movs[0].Tipo)
}

func TestWithdrawAmountParsing(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedOperador(t, "444", 10000)
	_, err := fx.operadores.LinkWallet(ctx, "444", "0980000001")
	require.NoError(t, err)

	for _, bad := range []any{0, -5, "abc", "", "-10", 0.4, nil} {
		_, err := fx.billetera.Withdraw(ctx, WithdrawInput{
			Cedula:      "444",
			Destination: DestinoBilleteraExterna,
			Amount:      bad,
		})
		require.Error(t, err, "amount %v should be rejected", bad)
	}
	require.EqualValues(t, 10000, balanceOf(t, fx.db, "444"))

	// fractional and string input truncate to whole units
	res, err := fx.billetera.Withdraw(ctx, WithdrawInput{
		Cedula:      "444",
		Destination: DestinoBilleteraExterna,
		Amount:      "1500.75",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1500, res.Amount)
	require.EqualValues(t, 8500, balanceOf(t, fx.db, "444"))
}

func TestWithdrawUnknownOperador(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.billetera.Withdraw(context.Background(), WithdrawInput{
		Cedula:      "does-not-exist",
		Destination: DestinoBilleteraExterna,
		Amount:      100,
	})
	require.Error(t, err)

	var base errutil.BaseError
	require.True(t, errors.As(err, &base))
	require.Equal(t, errutil.StatusNotFound, base.Code)
}

func TestWithdrawReportsPostDebitBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedOperador(t, "666", 10000)
	_, err := fx.operadores.LinkWallet(ctx, "666", "0980000003")
	require.NoError(t, err)

	const callers = 4

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	balances := make(map[int64]bool)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := fx.billetera.Withdraw(ctx, WithdrawInput{
				Cedula:      "666",
				Destination: DestinoBilleteraExterna,
				Amount:      1000,
			})
			if err != nil {
				errs[i] = err
				return
			}
			mu.Lock()
			balances[res.Balance] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// every caller sees the balance left by its own debit, never a stale read
	require.Len(t, balances, callers)
	for _, want := range []int64{9000, 8000, 7000, 6000} {
		require.True(t, balances[want], "missing reported balance %d", want)
	}
	require.EqualValues(t, 6000, balanceOf(t, fx.db, "666"))
}

func TestMovimientosList(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.seedOperador(t, "555", 9000)
	_, err := fx.operadores.LinkWallet(ctx, "555", "0980000002")
	require.NoError(t, err)

	for _, amt := range []int{1000, 2000, 3000} {
		_, err := fx.billetera.Withdraw(ctx, WithdrawInput{
			Cedula:      "555",
			Destination: DestinoBilleteraExterna,
			Amount:      amt,
		})
		require.NoError(t, err)
	}

	movs, info, err := fx.billetera.Movimientos(ctx, "555", pagination.Pagination{})
	require.NoError(t, err)
	require.Len(t, movs, 3)
	require.False(t, info.HasMore)
	require.EqualValues(t, 3000, movs[0].Monto)

	movs, info, err = fx.billetera.Movimientos(ctx, "555", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, movs, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)

	rest, info, err := fx.billetera.Movimientos(ctx, "555",
		pagination.Pagination{Limit: 2, Cursor: info.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.False(t, info.HasMore)
	require.EqualValues(t, 1000, rest[0].Monto)

	_, _, err = fx.billetera.Movimientos(ctx, "555",
		pagination.Pagination{Cursor: "not-a-cursor"})
	require.Error(t, err)

	_, _, err = fx.billetera.Movimientos(ctx, "", pagination.Pagination{})
	require.Error(t, err)
}
