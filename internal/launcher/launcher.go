// SPDX-License-Identifier:Apache-2.0

package launcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/controlchannel"
)

// ControlChannel serves the administrative control channel until ctx is done.
type ControlChannel interface {
	Serve(ctx context.Context, settings controlchannel.Settings) error
}

// AdminShell serves the administrative shell until ctx is done, configured
// with the SSH section of the document.
type AdminShell interface {
	Serve(ctx context.Context, fields static.Fields) error
}

type Launcher struct {
	controlChannel ControlChannel
	adminShell     AdminShell
	logger         *slog.Logger
}

// New creates a Launcher. shell may be nil when the admin shell is not
// available in the deployment.
func New(channel ControlChannel, shell AdminShell, logger *slog.Logger) *Launcher {
	return &Launcher{
		controlChannel: channel,
		adminShell:     shell,
		logger:         logger,
	}
}

// StartControlChannel starts the control channel listener in the background.
func (l *Launcher) StartControlChannel(ctx context.Context, settings controlchannel.Settings) *Task {
	l.logger.InfoContext(ctx, "starting control channel", "ip", settings.BindIP, "port", settings.BindPort)
	return l.Spawn(ctx, "control-channel", func(ctx context.Context) error {
		return l.controlChannel.Serve(ctx, settings)
	})
}

// StartAdminShell starts the admin shell in the background, forwarding the
// SSH section as is.
func (l *Launcher) StartAdminShell(ctx context.Context, fields static.Fields) *Task {
	l.logger.InfoContext(ctx, "starting admin shell")
	return l.Spawn(ctx, "admin-shell", func(ctx context.Context) error {
		if l.adminShell == nil {
			return errors.New("admin shell is not available")
		}
		return l.adminShell.Serve(ctx, fields)
	})
}

// Spawn runs fn as a detached task. A failure is logged, the task is not
// restarted.
func (l *Launcher) Spawn(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	return spawn(ctx, name, func(ctx context.Context) error {
		err := fn(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled):
			l.logger.Info("task stopped", "task", name)
		default:
			l.logger.Error("task failed", "task", name, "error", err)
		}
		return err
	})
}
