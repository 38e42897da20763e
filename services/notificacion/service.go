package notificacion

import (
	"context"
	"encoding/json"

	"padron-controlplane/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Service consumes the notification tasks the API side enqueues. Message
// templating and the SMS/WhatsApp gateway live outside this repo; the worker
// records the dispatch intent so the gateway integration has a single seam.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

type dictamenPayload struct {
	FichaID            string `json:"ficha_id"`
	OperadorCedula     string `json:"operador_cedula"`
	Verdict            string `json:"verdict"`
	VerificationStatus string `json:"verification_status"`
	Telefono           string `json:"telefono,omitempty"`
}

func (s *Service) HandleDictamen(ctx context.Context, t *asynq.Task) error {
	var p dictamenPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("dictamen notification dispatched",
		zap.String("ficha_id", p.FichaID),
		zap.String("verdict", p.Verdict),
		zap.String("verification_status", p.VerificationStatus),
		zap.Bool("has_phone", p.Telefono != ""))

	return nil
}

type retiroPayload struct {
	Cedula     string `json:"cedula"`
	Tipo       string `json:"tipo"`
	Monto      int64  `json:"monto"`
	Referencia string `json:"referencia"`
	Codigo     string `json:"codigo,omitempty"`
}

func (s *Service) HandleRetiro(ctx context.Context, t *asynq.Task) error {
	var p retiroPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("retiro notification dispatched",
		zap.String("cedula", p.Cedula),
		zap.String("tipo", p.Tipo),
		zap.Int64("monto", p.Monto),
		zap.String("codigo", p.Codigo))

	return nil
}

type derivacionPayload struct {
	FichaID string `json:"ficha_id"`
	Codigo  string `json:"codigo,omitempty"`
	Status  string `json:"status"`
}

func (s *Service) HandleDerivacion(ctx context.Context, t *asynq.Task) error {
	var p derivacionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}

	zap.L().Info("derivacion notification dispatched",
		zap.String("ficha_id", p.FichaID),
		zap.String("status", p.Status))

	return nil
}

var Module = fx.Module("notificacion.service",
	fx.Provide(NewService),
	fx.Invoke(registerHandlers),
)

func registerHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(taskname.DictamenNotificar, svc.HandleDictamen)
	mux.HandleFunc(taskname.RetiroNotificar, svc.HandleRetiro)
	mux.HandleFunc(taskname.DerivacionNotificar, svc.HandleDerivacion)
}
