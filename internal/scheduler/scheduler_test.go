package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/magazzino-sync/internal/application/dto"
	"github.com/jhoicas/magazzino-sync/internal/scheduler"
	"github.com/jhoicas/magazzino-sync/pkg/logger"
)

type countingResyncer struct{ n atomic.Int32 }

func (r *countingResyncer) RequestResync() bool {
	r.n.Add(1)
	return true
}

type countingReport struct{ n atomic.Int32 }

func (r *countingReport) GenerateReplenishmentList() []dto.ReplenishmentSuggestionDTO {
	r.n.Add(1)
	return []dto.ReplenishmentSuggestionDTO{{ProductKey: "farina 00", ProductName: "Farina 00", Priority: 1}}
}

func TestScheduler_EjecutaResyncYInforme(t *testing.T) {
	rs, rep := &countingResyncer{}, &countingReport{}
	s := scheduler.NewScheduler(scheduler.Config{ResyncSpec: "@every 1s", ReportSpec: "@every 1s"}, rs, rep, logger.Nop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return rs.n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Eventually(t, func() bool { return rep.n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestScheduler_ExpresionInvalida(t *testing.T) {
	s := scheduler.NewScheduler(scheduler.Config{ResyncSpec: "cada hora"}, &countingResyncer{}, nil, nil)
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cada hora")
}

func TestScheduler_SinTareasNoHaceNada(t *testing.T) {
	rs := &countingResyncer{}
	s := scheduler.NewScheduler(scheduler.Config{}, rs, nil, logger.Nop())
	require.NoError(t, s.Start())
	s.Stop()
	assert.Equal(t, int32(0), rs.n.Load())
}
