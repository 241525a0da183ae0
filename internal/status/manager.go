/*
Copyright 2024.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package status

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type resourceCacheEntry struct {
	ResourceKind ResourceKind
	ResourceName string

	// Empty when the last apply succeeded
	ErrorMessage string

	Timestamp time.Time
}

// StatusManager stores the outcome of the last apply of every neighbor,
// VRF and route so it can be read back from the control channel and the
// admin shell.
type StatusManager struct {
	logger *slog.Logger

	// nowFunc returns the current time; can be overridden for testing
	nowFunc func() time.Time

	// Written by the bootstrap and reload paths, read by the control
	// channel and admin shell goroutines.
	resourceCacheMutex sync.RWMutex
	resourceCache      map[string]*resourceCacheEntry // key: "kind:name"
}

func NewStatusManager(logger *slog.Logger) *StatusManager {
	return &StatusManager{
		logger:        logger,
		nowFunc:       time.Now,
		resourceCache: make(map[string]*resourceCacheEntry),
	}
}

// ReportResourceSuccess implements StatusReporter interface
func (sm *StatusManager) ReportResourceSuccess(kind ResourceKind, resourceName string) {
	sm.store(kind, resourceName, "")

	sm.logger.Debug("reported success",
		"kind", kind,
		"resource", resourceName)
}

// ReportResourceFailure implements StatusReporter interface
func (sm *StatusManager) ReportResourceFailure(kind ResourceKind, resourceName string, err error) {
	sm.store(kind, resourceName, fmt.Sprintf("failed: %v", err))

	sm.logger.Debug("reported failure",
		"kind", kind,
		"resource", resourceName,
		"error", err)
}

func (sm *StatusManager) store(kind ResourceKind, resourceName, errorMessage string) {
	sm.resourceCacheMutex.Lock()
	defer sm.resourceCacheMutex.Unlock()

	key := fmt.Sprintf("%s:%s", kind, resourceName)
	sm.resourceCache[key] = &resourceCacheEntry{
		ResourceKind: kind,
		ResourceName: resourceName,
		ErrorMessage: errorMessage,
		Timestamp:    sm.nowFunc(),
	}
}

// GetStatusSummary returns aggregated status information
func (sm *StatusManager) GetStatusSummary() StatusSummary {
	sm.resourceCacheMutex.RLock()
	defer sm.resourceCacheMutex.RUnlock()

	failedResources := make([]FailedResourceInfo, 0)
	applied := 0
	var latestUpdate time.Time

	for _, entry := range sm.resourceCache {
		if entry.Timestamp.After(latestUpdate) {
			latestUpdate = entry.Timestamp
		}
		if entry.ErrorMessage == "" {
			applied++
			continue
		}

		failedResources = append(failedResources, FailedResourceInfo{
			Kind:         entry.ResourceKind,
			Name:         entry.ResourceName,
			ErrorMessage: entry.ErrorMessage,
		})
	}
	sort.Slice(failedResources, func(i, j int) bool {
		if failedResources[i].Kind != failedResources[j].Kind {
			return failedResources[i].Kind < failedResources[j].Kind
		}
		return failedResources[i].Name < failedResources[j].Name
	})

	return StatusSummary{
		AppliedResources: applied,
		FailedResources:  failedResources,
		LastUpdateTime:   latestUpdate,
	}
}

// Compile-time interface checks
var _ StatusReporter = (*StatusManager)(nil)
var _ StatusReader = (*StatusManager)(nil)
