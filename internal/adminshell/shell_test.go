// SPDX-License-Identifier:Apache-2.0

package adminshell

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openperouter/bgpspeaker/internal/speaker"
	"golang.org/x/crypto/ssh"
)

func startShell(t *testing.T, settings Settings, engine speaker.Engine) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	shell := New(func() speaker.Engine { return engine }, nil, testLogger())
	done := make(chan error, 1)
	go func() {
		done <- shell.ServeListener(ctx, settings, l)
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("admin shell returned an error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("timeout waiting for admin shell to stop")
		}
	})
	return l.Addr().String()
}

func dial(addr, user, password string) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	})
}

func TestExecRoundTrip(t *testing.T) {
	settings := Settings{Username: "admin", Password: "secret"}
	addr := startShell(t, settings, newTestEngine(t))

	client, err := dial(addr, "admin", "secret")
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		t.Fatalf("failed to open session: %v", err)
	}
	defer session.Close()

	output, err := session.Output("show neighbors")
	if err != nil {
		t.Fatalf("exec failed: %v", err)
	}
	if !strings.Contains(string(output), "192.168.1.2") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestWrongCredentials(t *testing.T) {
	settings := Settings{Username: "admin", Password: "secret"}
	addr := startShell(t, settings, nil)

	if _, err := dial(addr, "admin", "wrong"); err == nil {
		t.Error("expected authentication failure with a wrong password")
	}
	if _, err := dial(addr, "root", "secret"); err == nil {
		t.Error("expected authentication failure with a wrong user")
	}
}

func TestHostKeyFromFile(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(key, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "ssh_host_key")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}

	signer, err := hostKey(path)
	if err != nil {
		t.Fatalf("failed to load host key: %v", err)
	}
	expected, err := ssh.NewSignerFromKey(key)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	if string(signer.PublicKey().Marshal()) != string(expected.PublicKey().Marshal()) {
		t.Error("loaded host key does not match the written one")
	}

	if _, err := hostKey(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing host key")
	}
}

func TestServeRequiresPassword(t *testing.T) {
	shell := New(func() speaker.Engine { return nil }, nil, testLogger())
	if err := shell.Serve(context.Background(), nil); err == nil {
		t.Error("expected error without ssh_password")
	}
}
