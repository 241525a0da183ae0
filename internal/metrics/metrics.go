// SPDX-License-Identifier:Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bgpspeaker"

// Metrics counts the configuration entries applied to the speaker.
type Metrics struct {
	Applied *prometheus.CounterVec
	Failed  *prometheus.CounterVec
	Skipped *prometheus.CounterVec
}

// New creates the collectors and registers them when reg is not nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_entries_applied_total",
			Help:      "Number of configuration entries applied to the speaker.",
		}, []string{"kind"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_entries_failed_total",
			Help:      "Number of configuration entries rejected by the speaker.",
		}, []string{"kind"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_entries_skipped_total",
			Help:      "Number of configuration entries skipped as invalid before reaching the speaker.",
		}, []string{"kind"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Applied, m.Failed, m.Skipped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
