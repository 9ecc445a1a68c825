// Package keeper é o agendador externo do ciclo de vida: fecha mercados passado o fim das
// apostas e cancela os que não foram resolvidos até o prazo. O motor nunca lê relógio;
// o keeper é quem passa o instante atual.
package keeper

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/engine"
	"github.com/radieske/parimutuel-settlement/internal/shared/lock"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

const (
	OpClose  = "close_betting"
	OpCancel = "cancel_expired"
)

// Resultados de uma transição
const (
	ResultOK      = "ok"
	ResultSkipped = "skipped"
	ResultError   = "error"
)

// Settler é o pedaço do serviço de liquidação que o keeper usa.
type Settler interface {
	DueMarkets(ctx context.Context, now int64, limit int) (closable, expired []accounts.Pubkey, err error)
	CloseBetting(ctx context.Context, market accounts.Pubkey, now int64) error
	CancelExpired(ctx context.Context, market accounts.Pubkey, now int64) error
}

type Config struct {
	AutoClose  bool
	AutoCancel bool
	Batch      int
	LockTTL    time.Duration
}

type Keeper struct {
	log     *zap.Logger
	svc     Settler
	locker  lock.Locker
	cfg     Config
	metrics *prometheus.CounterVec
	now     func() time.Time
}

func NewKeeper(log *zap.Logger, svc Settler, locker lock.Locker, cfg Config, reg prometheus.Registerer) *Keeper {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "keeper_transitions_total",
		Help: "transições disparadas pelo keeper por resultado",
	}, []string{"op", "result"})
	reg.MustRegister(transitions)
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	return &Keeper{log: log, svc: svc, locker: locker, cfg: cfg, metrics: transitions, now: time.Now}
}

// Stats resume uma rodada.
type Stats struct {
	Closed    int
	Cancelled int
	Skipped   int
	Failed    int
}

// Tick faz uma rodada: busca os mercados vencidos e aplica cada transição sob o lock do mercado.
func (k *Keeper) Tick(ctx context.Context) (Stats, error) {
	var st Stats
	now := k.now().Unix()
	closable, expired, err := k.svc.DueMarkets(ctx, now, k.cfg.Batch)
	if err != nil {
		return st, err
	}

	if k.cfg.AutoClose {
		for _, m := range closable {
			switch k.apply(ctx, OpClose, m, func() error { return k.svc.CloseBetting(ctx, m, now) }) {
			case ResultOK:
				st.Closed++
			case ResultSkipped:
				st.Skipped++
			default:
				st.Failed++
			}
		}
	}
	if k.cfg.AutoCancel {
		for _, m := range expired {
			switch k.apply(ctx, OpCancel, m, func() error { return k.svc.CancelExpired(ctx, m, now) }) {
			case ResultOK:
				st.Cancelled++
			case ResultSkipped:
				st.Skipped++
			default:
				st.Failed++
			}
		}
	}
	if st != (Stats{}) {
		k.log.Info("keeper tick",
			zap.Int("closed", st.Closed),
			zap.Int("cancelled", st.Cancelled),
			zap.Int("skipped", st.Skipped),
			zap.Int("failed", st.Failed),
		)
	}
	return st, nil
}

func (k *Keeper) apply(ctx context.Context, op string, market accounts.Pubkey, fn func() error) string {
	result := k.run(ctx, op, market, fn)
	k.metrics.WithLabelValues(op, result).Inc()
	return result
}

func (k *Keeper) run(ctx context.Context, op string, market accounts.Pubkey, fn func() error) string {
	unlock, err := k.locker.Acquire(ctx, "market:"+market.String(), k.cfg.LockTTL)
	if errors.Is(err, lock.ErrLockHeld) {
		return ResultSkipped
	}
	if err != nil {
		k.log.Warn("keeper lock failed", zap.String("op", op), zap.String("market", market.String()), zap.Error(err))
		return ResultError
	}
	defer unlock()

	err = fn()
	switch {
	case err == nil:
		return ResultOK
	case lostRace(err):
		// outra réplica ou o criador chegou antes
		return ResultSkipped
	default:
		k.log.Warn("keeper transition failed", zap.String("op", op), zap.String("market", market.String()), zap.Error(err))
		return ResultError
	}
}

func lostRace(err error) bool {
	switch engine.CodeOf(err) {
	case engine.CodeAlreadyClosed, engine.CodeInvalidState:
		return true
	}
	return false
}

// Run agenda Tick no cron até ctx terminar e espera a rodada em curso.
func (k *Keeper) Run(ctx context.Context, schedule string) error {
	logger := cron.PrintfLogger(zap.NewStdLog(k.log))
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if _, err := k.Tick(ctx); err != nil && ctx.Err() == nil {
			k.log.Warn("keeper tick failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	k.log.Info("keeper started", zap.String("schedule", schedule),
		zap.Bool("auto_close", k.cfg.AutoClose), zap.Bool("auto_cancel", k.cfg.AutoCancel))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	k.log.Info("keeper stopped")
	return nil
}
