package derivacion

import (
	"context"
	"encoding/json"
	"testing"

	"padron-controlplane/pkg/taskname"
	"padron-controlplane/services/clasificacion"
	"padron-controlplane/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Derivacion{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node}), db
}

func TestUpsertForFichaIsIdempotent(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	fichaID := snowflake.ID(1001)

	require.NoError(t, svc.UpsertForFicha(ctx, nil, fichaID, clasificacion.CategoriaC))
	require.NoError(t, svc.UpsertForFicha(ctx, nil, fichaID, clasificacion.CategoriaC))

	var count int64
	require.NoError(t, db.Model(&Derivacion{}).Where("ficha_id = ?", fichaID).Count(&count).Error)
	require.EqualValues(t, 1, count)

	d, err := svc.ForFicha(ctx, fichaID)
	require.NoError(t, err)
	require.NotNil(t, d)
	require.Equal(t, StatusPendiente, d.Status)
	require.Equal(t, clasificacion.CategoriaC, d.OriginTier)
}

func TestAdvanceFollowsTransitionOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	fichaID := snowflake.ID(2001)

	require.NoError(t, svc.UpsertForFicha(ctx, nil, fichaID, clasificacion.CategoriaB))
	d, err := svc.ForFicha(ctx, fichaID)
	require.NoError(t, err)

	// cannot skip straight to COMPLETED
	_, err = svc.Advance(ctx, d.ID, StatusCompletada)
	require.Error(t, err)

	updated, err := svc.Advance(ctx, d.ID, StatusEnCurso)
	require.NoError(t, err)
	require.Equal(t, StatusEnCurso, updated.Status)

	updated, err = svc.Advance(ctx, d.ID, StatusCompletada)
	require.NoError(t, err)
	require.Equal(t, StatusCompletada, updated.Status)

	// COMPLETED is terminal
	_, err = svc.Advance(ctx, d.ID, StatusEnCurso)
	require.Error(t, err)
}

type captureEnqueuer struct {
	tasks []*asynq.Task
}

func (c *captureEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestAdvanceEnqueuesNotification(t *testing.T) {
	db := testutil.NewTestDB(t, &Derivacion{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enqueuer := &captureEnqueuer{}
	svc := NewService(ServiceParams{DB: db, Node: node, Enqueuer: enqueuer})
	ctx := context.Background()
	fichaID := snowflake.ID(3001)

	require.NoError(t, svc.UpsertForFicha(ctx, nil, fichaID, clasificacion.CategoriaC))
	d, err := svc.ForFicha(ctx, fichaID)
	require.NoError(t, err)

	_, err = svc.Advance(ctx, d.ID, StatusEnCurso)
	require.NoError(t, err)

	require.Len(t, enqueuer.tasks, 1)
	require.Equal(t, taskname.DerivacionNotificar, enqueuer.tasks[0].Type())

	var payload struct {
		FichaID string `json:"ficha_id"`
		Status  string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(enqueuer.tasks[0].Payload(), &payload))
	require.Equal(t, fichaID.String(), payload.FichaID)
	require.Equal(t, string(StatusEnCurso), payload.Status)
}

func TestAdvanceUnknownDerivacion(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Advance(context.Background(), snowflake.ID(999999), StatusEnCurso)
	require.Error(t, err)
}
