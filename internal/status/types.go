// SPDX-License-Identifier:Apache-2.0

package status

import "time"

// ResourceKind is the kind of configuration entry applied to the speaker.
type ResourceKind string

const (
	NeighborKind ResourceKind = "Neighbor"
	VRFKind      ResourceKind = "VRF"
	RouteKind    ResourceKind = "Route"
)

// StatusReporter records the outcome of applying a configuration entry.
type StatusReporter interface {
	ReportResourceSuccess(kind ResourceKind, resourceName string)
	ReportResourceFailure(kind ResourceKind, resourceName string, err error)
}

// StatusReader exposes the aggregated outcome.
type StatusReader interface {
	GetStatusSummary() StatusSummary
}

type FailedResourceInfo struct {
	Kind         ResourceKind `json:"kind"`
	Name         string       `json:"name"`
	ErrorMessage string       `json:"error"`
}

type StatusSummary struct {
	AppliedResources int                  `json:"appliedResources"`
	FailedResources  []FailedResourceInfo `json:"failedResources"`
	LastUpdateTime   time.Time            `json:"lastUpdateTime"`
}
