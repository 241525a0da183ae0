// SPDX-License-Identifier:Apache-2.0

package adminshell

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/status"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

const prompt = "bgpd> "

// Shell is the SSH administrative shell of the speaker.
type Shell struct {
	executor executor
	logger   *slog.Logger
}

func New(engine EngineProvider, statusReader status.StatusReader, logger *slog.Logger) *Shell {
	return &Shell{
		executor: executor{engine: engine, status: statusReader},
		logger:   logger,
	}
}

// Serve listens on the address configured by the SSH section and serves
// sessions until ctx is done.
func (s *Shell) Serve(ctx context.Context, fields static.Fields) error {
	settings, err := SettingsFromFields(fields)
	if err != nil {
		return err
	}
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", settings.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", settings.Address(), err)
	}
	return s.ServeListener(ctx, settings, l)
}

// ServeListener serves sessions on l until ctx is done. l is closed on
// return.
func (s *Shell) ServeListener(ctx context.Context, settings Settings, l net.Listener) error {
	config, err := serverConfig(settings)
	if err != nil {
		_ = l.Close()
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = l.Close()
	})
	defer stop()

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		conns = map[net.Conn]struct{}{}
	)
	defer func() {
		mu.Lock()
		for c := range conns {
			_ = c.Close()
		}
		mu.Unlock()
		wg.Wait()
	}()

	s.logger.Info("admin shell listening", "address", l.Addr().String(), "user", settings.Username)
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("admin shell accept failed: %w", err)
		}

		mu.Lock()
		conns[conn] = struct{}{}
		mu.Unlock()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				mu.Lock()
				delete(conns, conn)
				mu.Unlock()
				_ = conn.Close()
			}()
			s.handleConn(conn, config)
		}()
	}
}

func serverConfig(settings Settings) (*ssh.ServerConfig, error) {
	signer, err := hostKey(settings.HostKey)
	if err != nil {
		return nil, err
	}

	config := &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			userOK := subtle.ConstantTimeCompare([]byte(meta.User()), []byte(settings.Username)) == 1
			passwordOK := subtle.ConstantTimeCompare(password, []byte(settings.Password)) == 1
			if userOK && passwordOK {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials for %q", meta.User())
		},
	}
	config.AddHostKey(signer)
	return config, nil
}

// hostKey loads the private key at path, or generates an ephemeral
// ed25519 key when path is empty.
func hostKey(path string) (ssh.Signer, error) {
	if path == "" {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate host key: %w", err)
		}
		return ssh.NewSignerFromKey(key)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read host key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse host key %s: %w", path, err)
	}
	return signer, nil
}

func (s *Shell) handleConn(conn net.Conn, config *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		s.logger.Debug("ssh handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		return
	}
	defer sconn.Close()
	s.logger.Info("admin shell session opened", "remote", sconn.RemoteAddr().String(), "user", sconn.User())

	go ssh.DiscardRequests(reqs)

	var wg sync.WaitGroup
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			s.logger.Error("failed to accept ssh channel", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleSession(channel, requests)
		}()
	}
	wg.Wait()
	s.logger.Info("admin shell session closed", "remote", sconn.RemoteAddr().String())
}

type execRequest struct {
	Command string
}

type ptyRequest struct {
	Term     string
	Columns  uint32
	Rows     uint32
	Width    uint32
	Height   uint32
	Modelist string
}

type windowChangeRequest struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

type exitStatus struct {
	Status uint32
}

func (s *Shell) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	var terminal *term.Terminal
	var size windowChangeRequest
	for req := range requests {
		switch req.Type {
		case "pty-req":
			var pty ptyRequest
			if err := ssh.Unmarshal(req.Payload, &pty); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			size = windowChangeRequest{Columns: pty.Columns, Rows: pty.Rows}
			_ = req.Reply(true, nil)

		case "window-change":
			if err := ssh.Unmarshal(req.Payload, &size); err == nil && terminal != nil {
				_ = terminal.SetSize(int(size.Columns), int(size.Rows))
			}

		case "shell":
			if terminal != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			terminal = term.NewTerminal(channel, prompt)
			if size.Columns > 0 {
				_ = terminal.SetSize(int(size.Columns), int(size.Rows))
			}
			go func() {
				s.interactive(terminal)
				sendExitStatus(channel, 0)
				_ = channel.Close()
			}()

		case "exec":
			var cmd execRequest
			if err := ssh.Unmarshal(req.Payload, &cmd); err != nil {
				_ = req.Reply(false, nil)
				continue
			}
			_ = req.Reply(true, nil)
			s.logger.Debug("admin shell exec", "command", cmd.Command)
			output, _ := s.executor.execute(cmd.Command)
			_, _ = io.WriteString(channel, output)
			sendExitStatus(channel, 0)
			return

		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}

func (s *Shell) interactive(terminal *term.Terminal) {
	_, _ = io.WriteString(terminal, "Hello, this is the BGP speaker admin shell. Type help for the list of commands.\n")
	for {
		line, err := terminal.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("admin shell read failed", "error", err)
			}
			return
		}
		output, quit := s.executor.execute(strings.TrimSpace(line))
		if output != "" {
			_, _ = io.WriteString(terminal, output)
		}
		if quit {
			return
		}
	}
}

func sendExitStatus(channel ssh.Channel, code uint32) {
	_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(exitStatus{Status: code}))
}
