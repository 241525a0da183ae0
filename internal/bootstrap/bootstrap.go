// SPDX-License-Identifier:Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/metrics"
	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/status"
	"k8s.io/utils/ptr"
)

// BootstrapError is returned when the speaker cannot be created from the
// BGP section. It only aborts the BGP bootstrap.
type BootstrapError struct {
	Field string
	Err   error
}

func (e *BootstrapError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("required BGP configuration missing: %s", e.Field)
	}
	return fmt.Sprintf("failed to create speaker: %v", e.Err)
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// ItemResult is the outcome of a single neighbor, VRF or route entry.
type ItemResult struct {
	Index   int
	Name    string
	Applied bool
	Skipped bool
	Err     error
}

type Report struct {
	Neighbors []ItemResult
	VRFs      []ItemResult
	Routes    []ItemResult
}

// Bootstrapper creates the speaker from the BGP section and applies the
// neighbors, VRFs and routes to it.
type Bootstrapper struct {
	newEngine speaker.Factory
	reporter  status.StatusReporter
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Bootstrapper. reporter and m may be nil.
func New(factory speaker.Factory, reporter status.StatusReporter, m *metrics.Metrics, logger *slog.Logger) *Bootstrapper {
	if factory == nil {
		factory = speaker.New
	}
	if m == nil {
		// unregistered collectors, never fails
		m, _ = metrics.New(nil)
	}
	return &Bootstrapper{
		newEngine: factory,
		reporter:  reporter,
		metrics:   m,
		logger:    logger,
	}
}

// Start creates the speaker and applies the configured entries in order.
// Entries rejected by the speaker are logged and skipped; any other error
// aborts the remaining entries and is returned together with the engine.
func (b *Bootstrapper) Start(ctx context.Context, bgp *static.BGPSettings) (speaker.Engine, Report, error) {
	if bgp == nil || bgp.ASNumber == nil {
		return nil, Report{}, &BootstrapError{Field: "as_number"}
	}
	if bgp.RouterID == nil {
		return nil, Report{}, &BootstrapError{Field: "router_id"}
	}

	settings := speaker.Settings{
		ASNumber:             *bgp.ASNumber,
		RouterID:             *bgp.RouterID,
		ServerPort:           ptr.Deref(bgp.ServerPort, speaker.DefaultServerPort),
		RefreshStalePathTime: ptr.Deref(bgp.RefreshStalePathTime, speaker.DefaultRefreshStalePathTime),
		RefreshMaxEORTime:    ptr.Deref(bgp.RefreshMaxEORTime, speaker.DefaultRefreshMaxEORTime),
		LabelRange:           speaker.LabelRange(ptr.Deref(bgp.LabelRange, [2]uint32(speaker.DefaultLabelRange))),
	}

	b.logger.DebugContext(ctx, "starting speaker", "as", settings.ASNumber, "routerID", settings.RouterID)
	engine, err := b.newEngine(settings, b.logger)
	if err != nil {
		return nil, Report{}, &BootstrapError{Err: err}
	}

	report, err := b.Reapply(ctx, engine, bgp)
	return engine, report, err
}

// Reapply applies the neighbors, VRFs and routes of the BGP section to an
// existing engine.
func (b *Bootstrapper) Reapply(ctx context.Context, engine speaker.Engine, bgp *static.BGPSettings) (Report, error) {
	var (
		report Report
		err    error
	)

	b.logger.DebugContext(ctx, "adding neighbors", "count", len(bgp.Neighbors))
	report.Neighbors, err = b.applyList(ctx, status.NeighborKind, bgp.Neighbors, func(static.Fields) applyFunc {
		return engine.AddNeighbor
	})
	if err != nil {
		return report, err
	}

	b.logger.DebugContext(ctx, "adding vrfs", "count", len(bgp.VRFs))
	report.VRFs, err = b.applyList(ctx, status.VRFKind, bgp.VRFs, func(static.Fields) applyFunc {
		return engine.AddVRF
	})
	if err != nil {
		return report, err
	}

	b.logger.DebugContext(ctx, "adding routes", "count", len(bgp.Routes))
	report.Routes, err = b.applyList(ctx, status.RouteKind, bgp.Routes, func(fields static.Fields) applyFunc {
		switch ClassifyRoute(fields) {
		case PrefixRoute:
			return engine.AddPrefix
		case EVPNRoute:
			return engine.AddEVPNPrefix
		}
		return nil
	})
	return report, err
}

type applyFunc func(ctx context.Context, fields static.Fields) error

// applyList applies the entries one at a time, in order. selectApply
// returns nil for entries that must be skipped.
func (b *Bootstrapper) applyList(ctx context.Context, kind status.ResourceKind, items []static.Fields,
	selectApply func(static.Fields) applyFunc) ([]ItemResult, error) {
	results := make([]ItemResult, 0, len(items))
	for i, fields := range items {
		res := ItemResult{Index: i, Name: resourceName(kind, i, fields)}

		apply := selectApply(fields)
		if apply == nil {
			b.logger.DebugContext(ctx, "skipping invalid settings", "kind", kind, "index", i, "settings", fields)
			b.metrics.Skipped.WithLabelValues(string(kind)).Inc()
			res.Skipped = true
			results = append(results, res)
			continue
		}

		b.logger.DebugContext(ctx, "applying settings", "kind", kind, "name", res.Name, "settings", fields)
		err := apply(ctx, fields)

		var rcErr *speaker.RuntimeConfigurationError
		switch {
		case err == nil:
			res.Applied = true
			b.metrics.Applied.WithLabelValues(string(kind)).Inc()
			if b.reporter != nil {
				b.reporter.ReportResourceSuccess(kind, res.Name)
			}
		case errors.As(err, &rcErr):
			res.Err = err
			b.logger.ErrorContext(ctx, "failed to apply settings", "kind", kind, "name", res.Name, "index", i, "error", err)
			b.metrics.Failed.WithLabelValues(string(kind)).Inc()
			if b.reporter != nil {
				b.reporter.ReportResourceFailure(kind, res.Name, err)
			}
		default:
			res.Err = err
			results = append(results, res)
			return results, fmt.Errorf("unexpected failure applying %s %s: %w", kind, res.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func resourceName(kind status.ResourceKind, index int, fields static.Fields) string {
	var key string
	switch kind {
	case status.NeighborKind:
		key = "address"
	case status.VRFKind:
		key = "route_dist"
	case status.RouteKind:
		key = "prefix"
		if !fields.Has(key) && fields.Has("route_type") {
			return fmt.Sprintf("%v/%v", fields["route_dist"], fields["route_type"])
		}
	}
	if v, ok := fields[key]; ok {
		return fmt.Sprint(v)
	}
	return fmt.Sprintf("#%d", index)
}
