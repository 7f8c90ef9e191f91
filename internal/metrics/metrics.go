// Package metrics exposes loop observations as prometheus collectors.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/spreadsniper/internal/domain"
)

// Collectors holds the spreadsniper_* series for one group.
type Collectors struct {
	registry *prometheus.Registry

	spread      prometheus.Gauge
	position    *prometheus.GaugeVec
	balance     *prometheus.GaugeVec
	legs        *prometheus.CounterVec
	cycles      *prometheus.CounterVec
	corrections *prometheus.CounterVec
	orders24h   prometheus.Gauge
	exits       *prometheus.CounterVec
}

// New registers the collectors on a fresh registry labelled with group.
func New(group string) *Collectors {
	labels := prometheus.Labels{"group": group}

	c := &Collectors{
		registry: prometheus.NewRegistry(),
		spread: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "spreadsniper_spread_percent",
			Help:        "Last observed bid/ask spread in percent",
			ConstLabels: labels,
		}),
		position: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "spreadsniper_position",
			Help:        "Signed position per account, long positive",
			ConstLabels: labels,
		}, []string{"account"}),
		balance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "spreadsniper_available_balance_usd",
			Help:        "Available balance per account",
			ConstLabels: labels,
		}, []string{"account"}),
		legs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "spreadsniper_legs_total",
			Help:        "Submitted paired trade legs by account, side and result",
			ConstLabels: labels,
		}, []string{"account", "side", "result"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "spreadsniper_cycles_total",
			Help:        "Fired cycles by result (ok|failed)",
			ConstLabels: labels,
		}, []string{"result"}),
		corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "spreadsniper_corrections_total",
			Help:        "Corrective orders by account, side and result",
			ConstLabels: labels,
		}, []string{"account", "side", "result"}),
		orders24h: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "spreadsniper_orders_24h",
			Help:        "Orders in the trailing 24h window",
			ConstLabels: labels,
		}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "spreadsniper_exits_total",
			Help:        "Session exits by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
	}

	c.registry.MustRegister(c.spread, c.position, c.balance, c.legs, c.cycles, c.corrections, c.orders24h, c.exits)

	return c
}

// Registry returns the underlying registry.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collectors) SpreadObserved(spread decimal.Decimal) {
	c.spread.Set(spread.InexactFloat64())
}

func (c *Collectors) PositionsObserved(snapshots domain.PerAccount[domain.AccountSnapshot]) {
	for _, id := range domain.AllAccounts {
		s := snapshots.Get(id)
		pos := s.Position
		if s.Direction == domain.DirectionShort {
			pos = pos.Neg()
		}
		c.position.WithLabelValues(id.String()).Set(pos.InexactFloat64())
		if s.Balance.Valid {
			c.balance.WithLabelValues(id.String()).Set(s.Balance.Decimal.InexactFloat64())
		}
	}
}

func (c *Collectors) LegsFinished(legs domain.PerAccount[domain.LegResult]) {
	for _, id := range domain.AllAccounts {
		leg := legs.Get(id)
		if !leg.Attempted {
			continue
		}
		c.legs.WithLabelValues(id.String(), leg.Side.String(), result(leg.Succeeded)).Inc()
	}
}

func (c *Collectors) CycleFinished(ok bool) {
	c.cycles.WithLabelValues(result(ok)).Inc()
}

func (c *Collectors) CorrectionPlaced(account domain.AccountID, side domain.Side, ok bool) {
	c.corrections.WithLabelValues(account.String(), side.String(), result(ok)).Inc()
}

func (c *Collectors) OrdersInWindow(n int) {
	c.orders24h.Set(float64(n))
}

func (c *Collectors) SessionExited(reason domain.ExitReason) {
	c.exits.WithLabelValues(reason.String()).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

// Serve exposes /metrics on addr until ctx is done.
func (c *Collectors) Serve(ctx context.Context, l *zap.Logger, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	l.Info("serving metrics", zap.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "metrics server")
	}

	return nil
}
