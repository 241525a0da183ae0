// SPDX-License-Identifier:Apache-2.0

package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/conversion"
	"github.com/openperouter/bgpspeaker/internal/speaker"
)

type call struct {
	method string
	fields static.Fields
}

// fakeEngine records the successful calls. Entries carrying a "bad" key
// are rejected with a RuntimeConfigurationError, entries carrying a
// "panic" key with an unexpected error.
type fakeEngine struct {
	settings speaker.Settings
	attempts []call
	calls    []call
}

var errUnexpected = errors.New("engine defect")

func (f *fakeEngine) record(method string, fields static.Fields) error {
	f.attempts = append(f.attempts, call{method: method, fields: fields})
	if fields.Has("bad") {
		return &speaker.RuntimeConfigurationError{Kind: method, Err: errors.New("malformed")}
	}
	if fields.Has("panic") {
		return errUnexpected
	}
	f.calls = append(f.calls, call{method: method, fields: fields})
	return nil
}

func (f *fakeEngine) AddNeighbor(_ context.Context, fields static.Fields) error {
	return f.record("AddNeighbor", fields)
}

func (f *fakeEngine) AddVRF(_ context.Context, fields static.Fields) error {
	return f.record("AddVRF", fields)
}

func (f *fakeEngine) AddPrefix(_ context.Context, fields static.Fields) error {
	return f.record("AddPrefix", fields)
}

func (f *fakeEngine) AddEVPNPrefix(_ context.Context, fields static.Fields) error {
	return f.record("AddEVPNPrefix", fields)
}

func (f *fakeEngine) Neighbors() []conversion.NeighborParams { return nil }
func (f *fakeEngine) VRFs() []conversion.VRFParams           { return nil }
func (f *fakeEngine) Routes() []speaker.Route                { return nil }

type fakeFactory struct {
	created int
	engine  *fakeEngine
}

func (ff *fakeFactory) New(settings speaker.Settings, _ *slog.Logger) (speaker.Engine, error) {
	ff.created++
	ff.engine = &fakeEngine{settings: settings}
	return ff.engine, nil
}
