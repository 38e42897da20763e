package billetera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"padron-controlplane/pkg/db/option"
	"padron-controlplane/pkg/db/pagination"
	"padron-controlplane/pkg/errutil"
	"padron-controlplane/pkg/repository"
	"padron-controlplane/pkg/sequence"
	"padron-controlplane/pkg/task"
	"padron-controlplane/pkg/taskname"
	"padron-controlplane/services/operador"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	seq  sequence.Generator

	operadores  *operador.Service
	movimientos repository.Repository[Movimiento]

	enqueuer task.Enqueuer
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
	Seq  sequence.Generator `optional:"true"`

	Operadores *operador.Service

	Enqueuer task.Enqueuer `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:          p.DB,
		node:        p.Node,
		seq:         p.Seq,
		operadores:  p.Operadores,
		movimientos: repository.ProvideStore[Movimiento](p.DB),
		enqueuer:    p.Enqueuer,
	}
}

type WithdrawInput struct {
	Cedula        string
	Destination   Destino
	Amount        any
	Bank          string
	AccountNumber string
}

type WithdrawResult struct {
	Destination Destino `json:"destination"`
	Amount      int64   `json:"amount"`
	Reference   string  `json:"reference"`
	Codigo      string  `json:"codigo,omitempty"`
	Balance     int64   `json:"balance"`
}

// Withdraw debits the operator's balance and records the movement in one
// transaction. The decrement is a single conditional update guarded on the
// balance, so a concurrent duplicate submit can never take the balance
// negative; zero affected rows means insufficient funds, not an error.
func (s *Service) Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawResult, error) {
	cedula := strings.TrimSpace(in.Cedula)
	if cedula == "" {
		return nil, errutil.ValidationFailed("cedula is required", nil)
	}
	if !in.Destination.Valid() {
		return nil, errutil.ValidationFailed("destination must be EXTERNAL_WALLET or BANK_ACCOUNT", nil)
	}

	amount, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	op, err := s.operadores.ByCedula(ctx, cedula)
	if err != nil {
		zap.L().Error("failed to query operador", zap.Error(err))
		return nil, errutil.Internal("failed to query operador", err)
	}
	if op == nil {
		return nil, errutil.NotFound("operador not found", nil)
	}

	var (
		tipo       TipoMovimiento
		referencia string
	)
	switch in.Destination {
	case DestinoBilleteraExterna:
		if op.WalletPhone == nil || *op.WalletPhone == "" {
			return nil, errutil.ValidationFailed("link your wallet first", nil)
		}
		tipo = TipoRetiroBilletera
		referencia = *op.WalletPhone
	case DestinoCuentaBancaria:
		if strings.TrimSpace(in.Bank) == "" || strings.TrimSpace(in.AccountNumber) == "" {
			return nil, errutil.ValidationFailed("bank and account number are required", nil)
		}
		tipo = TipoRetiroBanco
		referencia = fmt.Sprintf("%s - %s", in.Bank, in.AccountNumber)
	}

	meta, _ := json.Marshal(map[string]string{
		"destination": string(in.Destination),
		"reference":   referencia,
	})

	mov := &Movimiento{
		ID:             s.node.Generate(),
		OperadorCedula: cedula,
		Tipo:           tipo,
		Monto:          amount,
		Referencia:     referencia,
		Status:         MovimientoCompletado,
		Metadata:       datatypes.JSON(meta),
	}

	if s.seq != nil {
		if codigo, err := s.seq.NextMovimientoCode(ctx, cedula); err == nil {
			mov.Codigo = codigo
		} else {
			zap.L().Warn("failed to generate movimiento code", zap.Error(err))
		}
	}

	var balance int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&operador.Operador{}).
			Where("cedula = ? AND available_balance >= ?", cedula, amount).
			Update("available_balance", gorm.Expr("available_balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errutil.BadRequest("insufficient funds", nil,
				errutil.WithReason(errutil.ReasonInsufficientFunds))
		}
		if err := tx.Model(&operador.Operador{}).
			Select("available_balance").
			Where("cedula = ?", cedula).
			Scan(&balance).Error; err != nil {
			return err
		}
		return s.movimientos.WithTrx(tx).Create(ctx, mov)
	})
	if txErr != nil {
		var base errutil.BaseError
		if errors.As(txErr, &base) {
			return nil, txErr
		}
		zap.L().Error("failed to withdraw", zap.Error(txErr))
		return nil, errutil.Internal("failed to withdraw", txErr)
	}

	s.notifyRetiro(mov)

	zap.L().Info("withdrawal recorded",
		zap.String("cedula", cedula),
		zap.String("tipo", string(tipo)),
		zap.Int64("monto", amount))

	return &WithdrawResult{
		Destination: in.Destination,
		Amount:      amount,
		Reference:   referencia,
		Codigo:      mov.Codigo,
		Balance:     balance,
	}, nil
}

// Movimientos lists an operator's ledger entries newest first, one page at a
// time. Snowflake ids are time ordered, so the cursor rides on movimiento_id.
func (s *Service) Movimientos(ctx context.Context, cedula string, page pagination.Pagination) ([]*Movimiento, *pagination.PageInfo, error) {
	if strings.TrimSpace(cedula) == "" {
		return nil, nil, errutil.BadRequest("cedula is required", nil)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 10
	}

	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "movimiento_id", OrderBy: "DESC"}),
		option.ApplyPagination(pagination.Pagination{Limit: limit + 1}),
	}
	if page.Cursor != "" {
		cur, err := pagination.DecodeCursor(page.Cursor)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		lastID, err := strconv.ParseInt(cur.ID, 10, 64)
		if err != nil {
			return nil, nil, errutil.BadRequest("invalid cursor", err)
		}
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "movimiento_id",
			Operator: option.LT,
			Value:    lastID,
		}))
	}

	movs, err := s.movimientos.Find(ctx, &Movimiento{OperadorCedula: cedula}, opts...)
	if err != nil {
		return nil, nil, err
	}

	info := pagination.BuildCursorPageInfo(movs, int32(limit), func(m *Movimiento) string {
		cursor, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        m.ID.String(),
			CreatedAt: m.CreatedAt.Format(time.RFC3339Nano),
		})
		return cursor
	})
	if len(movs) > limit {
		movs = movs[:limit]
	}

	return movs, info, nil
}

type retiroNotification struct {
	Cedula     string `json:"cedula"`
	Tipo       string `json:"tipo"`
	Monto      int64  `json:"monto"`
	Referencia string `json:"referencia"`
	Codigo     string `json:"codigo,omitempty"`
}

func (s *Service) notifyRetiro(mov *Movimiento) {
	if s.enqueuer == nil {
		return
	}

	payload, err := json.Marshal(retiroNotification{
		Cedula:     mov.OperadorCedula,
		Tipo:       string(mov.Tipo),
		Monto:      mov.Monto,
		Referencia: mov.Referencia,
		Codigo:     mov.Codigo,
	})
	if err != nil {
		return
	}

	if _, err := s.enqueuer.Enqueue(asynq.NewTask(taskname.RetiroNotificar, payload)); err != nil {
		zap.L().Warn("failed to enqueue retiro notification",
			zap.String("cedula", mov.OperadorCedula), zap.Error(err))
	}
}

// parseAmount accepts the integer, float and string shapes callers send and
// normalizes them to a positive whole amount. Fractional input truncates.
func parseAmount(v any) (int64, error) {
	invalid := func() error {
		return errutil.ValidationFailed("amount must be a positive integer", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "positive whole number required"}))
	}

	var amount int64
	switch n := v.(type) {
	case int64:
		amount = n
	case int:
		amount = int64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, invalid()
		}
		amount = int64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, invalid()
		}
		amount = int64(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, invalid()
		}
		amount = int64(f)
	default:
		return 0, invalid()
	}

	if amount <= 0 {
		return 0, invalid()
	}
	return amount, nil
}
