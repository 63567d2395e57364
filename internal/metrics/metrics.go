// Package metrics exports per-cycle gauges. Each invocation is a short-lived
// process, so the registry is written to a node-exporter textfile rather
// than served.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/alanyoungcy/strikearb/internal/domain"
)

// Cycle holds the gauges describing the most recent cycle.
type Cycle struct {
	registry *prometheus.Registry

	lastRun        *prometheus.GaugeVec
	duration       *prometheus.GaugeVec
	marketsScanned prometheus.Gauge
	signals        *prometheus.GaugeVec
	rejections     *prometheus.GaugeVec
	orders         *prometheus.GaugeVec
	refPrice       *prometheus.GaugeVec
	refReliable    *prometheus.GaugeVec
	killSwitch     prometheus.Gauge
	ambiguous      prometheus.Gauge
	skipped        *prometheus.GaugeVec
}

// NewCycle registers the gauges on a private registry.
func NewCycle() *Cycle {
	c := &Cycle{
		registry: prometheus.NewRegistry(),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_cycle_last_run_timestamp_seconds", Help: "Unix time the last cycle finished",
		}, []string{"mode"}),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_cycle_duration_seconds", Help: "Wall time of the last cycle",
		}, []string{"mode"}),
		marketsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strikearb_markets_scanned", Help: "Markets listed by the catalog in the last cycle",
		}),
		signals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_signals", Help: "Signals generated in the last cycle by action",
		}, []string{"action"}),
		rejections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_risk_rejections", Help: "Candidates rejected in the last cycle by reason",
		}, []string{"reason"}),
		orders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_orders", Help: "Orders attempted in the last cycle by status",
		}, []string{"status"}),
		refPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_reference_price", Help: "Reconciled reference price",
		}, []string{"underlying"}),
		refReliable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_reference_price_reliable", Help: "1 if the reference price met quorum and tolerance",
		}, []string{"underlying"}),
		killSwitch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strikearb_kill_switch_active", Help: "1 if the kill switch was observed",
		}),
		ambiguous: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strikearb_ambiguous_orders", Help: "Ledger entries awaiting manual reconciliation",
		}),
		skipped: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "strikearb_markets_skipped", Help: "Markets skipped in the last cycle by stage",
		}, []string{"stage"}),
	}
	c.registry.MustRegister(
		c.lastRun, c.duration, c.marketsScanned, c.signals, c.rejections,
		c.orders, c.refPrice, c.refReliable, c.killSwitch, c.ambiguous, c.skipped,
	)
	return c
}

// Registry exposes the underlying registry, mainly for tests.
func (c *Cycle) Registry() *prometheus.Registry { return c.registry }

// Observe sets every gauge from snap.
func (c *Cycle) Observe(snap domain.PortfolioSnapshot) {
	mode := string(snap.Mode)
	c.lastRun.WithLabelValues(mode).Set(float64(snap.GeneratedAt.Unix()))
	c.duration.WithLabelValues(mode).Set(snap.GeneratedAt.Sub(snap.StartedAt).Seconds())
	c.marketsScanned.Set(float64(snap.MarketsScanned))

	c.signals.Reset()
	for _, a := range []domain.Action{domain.ActionBuyYes, domain.ActionBuyNo, domain.ActionHold} {
		c.signals.WithLabelValues(string(a)).Set(0)
	}
	for _, s := range snap.Signals {
		c.signals.WithLabelValues(string(s.Action)).Inc()
	}

	c.rejections.Reset()
	for _, r := range snap.Rejections {
		c.rejections.WithLabelValues(string(r.Reason)).Inc()
	}

	c.orders.Reset()
	for _, o := range snap.RecentOrders {
		if o.CycleID == snap.CycleID {
			c.orders.WithLabelValues(string(o.Status)).Inc()
		}
	}

	c.refPrice.Reset()
	c.refReliable.Reset()
	for _, r := range snap.ReferencePrices {
		c.refPrice.WithLabelValues(r.Underlying).Set(r.Price)
		v := 0.0
		if r.Reliable {
			v = 1
		}
		c.refReliable.WithLabelValues(r.Underlying).Set(v)
	}

	c.skipped.Reset()
	for _, s := range snap.Skipped {
		c.skipped.WithLabelValues(s.Stage).Inc()
	}

	ks := 0.0
	if snap.KillSwitchActive {
		ks = 1
	}
	c.killSwitch.Set(ks)
	c.ambiguous.Set(float64(len(snap.AmbiguousOrders)))
}

// WriteTextfile writes the registry to path in the text exposition format.
// The file is replaced atomically.
func (c *Cycle) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics: mkdir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
