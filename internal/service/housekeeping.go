package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper es una tarea de limpieza que devuelve la cantidad de filas borradas.
type Sweeper func(ctx context.Context) (int64, error)

type namedSweeper struct {
	name  string
	sweep Sweeper
}

// HousekeepingService corre periodicamente las tareas de limpieza: cuentas sin
// verificar vencidas y enlaces compartidos vencidos.
type HousekeepingService struct {
	logger   *zap.Logger
	interval time.Duration
	timeout  time.Duration
	sweepers []namedSweeper

	mu      sync.Mutex
	started bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewHousekeepingService(logger *zap.Logger, interval time.Duration) *HousekeepingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &HousekeepingService{
		logger:   logger,
		interval: interval,
		timeout:  30 * time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Register agrega una tarea. Debe llamarse antes de Start.
func (h *HousekeepingService) Register(name string, sweep Sweeper) {
	h.sweepers = append(h.sweepers, namedSweeper{name: name, sweep: sweep})
}

// Start lanza el worker en segundo plano; ejecuta una pasada inmediata.
// Llamadas repetidas no tienen efecto.
func (h *HousekeepingService) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started || h.stopped {
		return
	}
	h.started = true
	go h.run()
	h.logger.Info("housekeeping started", zap.Duration("interval", h.interval))
}

// Stop detiene el worker y espera a que termine la pasada en curso. Sin Start
// previo, o si ya se detuvo, vuelve de inmediato.
func (h *HousekeepingService) Stop() {
	h.mu.Lock()
	if !h.started || h.stopped {
		h.stopped = true
		h.mu.Unlock()
		return
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.stopCh)
	<-h.doneCh
	h.logger.Info("housekeeping stopped")
}

func (h *HousekeepingService) run() {
	defer close(h.doneCh)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.RunOnce(context.Background())
	for {
		select {
		case <-ticker.C:
			h.RunOnce(context.Background())
		case <-h.stopCh:
			return
		}
	}
}

// RunOnce ejecuta cada tarea una vez. Una falla no detiene las demas.
func (h *HousekeepingService) RunOnce(ctx context.Context) int {
	ok := 0
	for _, s := range h.sweepers {
		runCtx, cancel := context.WithTimeout(ctx, h.timeout)
		n, err := s.sweep(runCtx)
		cancel()
		if err != nil {
			h.logger.Error("housekeeping task failed", zap.String("task", s.name), zap.Error(err))
			continue
		}
		ok++
		h.logger.Debug("housekeeping task done", zap.String("task", s.name), zap.Int64("deleted", n))
	}
	return ok
}
