// SPDX-License-Identifier:Apache-2.0

package orchestrator

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	. "github.com/onsi/gomega"
	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/controlchannel"
)

// fakeChannel records the settings it was started with and serves until
// stopped.
type fakeChannel struct {
	mu       sync.Mutex
	settings []controlchannel.Settings
}

func (f *fakeChannel) Serve(ctx context.Context, settings controlchannel.Settings) error {
	f.mu.Lock()
	f.settings = append(f.settings, settings)
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *fakeChannel) started() []controlchannel.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]controlchannel.Settings(nil), f.settings...)
}

type fakeShell struct {
	mu     sync.Mutex
	fields []static.Fields
}

func (f *fakeShell) Serve(ctx context.Context, fields static.Fields) error {
	f.mu.Lock()
	f.fields = append(f.fields, fields)
	f.mu.Unlock()
	<-ctx.Done()
	return nil
}

func (f *fakeShell) started() []static.Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]static.Fields(nil), f.fields...)
}

type fakeHealth struct {
	mu      sync.Mutex
	serving bool
}

func (f *fakeHealth) SetServing(serving bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.serving = serving
}

func (f *fakeHealth) isServing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serving
}

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func newLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func writeConfig(dir, content string) string {
	path := filepath.Join(dir, "bgp_speaker.yaml")
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	return path
}
