// SPDX-License-Identifier:Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/openperouter/bgpspeaker/api/static"
	"github.com/openperouter/bgpspeaker/internal/bootstrap"
	"github.com/openperouter/bgpspeaker/internal/controlchannel"
	"github.com/openperouter/bgpspeaker/internal/launcher"
	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/staticconfiguration"
	"github.com/openperouter/bgpspeaker/internal/status"
)

const fullConfig = `
LOGGING:
  level: debug
BGP:
  as_number: 65000
  router_id: 10.0.0.1
  neighbors:
  - address: 192.168.1.2
    remote_as: 65001
  - address: not-an-address
    remote_as: 65002
  - address: 192.168.1.3
    remote_as: 65003
  vrfs:
  - route_dist: "65000:100"
    import_rts: ["65000:100"]
    export_rts: ["65000:100"]
  routes:
  - prefix: 10.0.0.0/24
  - prefix: 10.10.0.0/24
    route_dist: "65000:100"
  - {}
SSH:
  ssh_port: 4990
  ssh_password: secret
`

type defectEngine struct {
	speaker.Engine
}

func (defectEngine) AddNeighbor(context.Context, static.Fields) error {
	return errors.New("engine defect")
}

var _ = Describe("Orchestrator", func() {
	var (
		dir       string
		logs      *syncBuffer
		channel   *fakeChannel
		shell     *fakeShell
		health    *fakeHealth
		statusMgr *status.StatusManager
		factory   speaker.Factory
		orch      *Orchestrator
	)

	newOrchestrator := func(config Config) *Orchestrator {
		logger := newLogger(logs)
		return New(config, Deps{
			Bootstrapper: bootstrap.New(factory, statusMgr, nil, logger),
			Launcher:     launcher.New(channel, shell, logger),
			Health:       health,
			Logger:       logger,
		})
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		logs = &syncBuffer{}
		channel = &fakeChannel{}
		shell = &fakeShell{}
		health = &fakeHealth{}
		statusMgr = status.NewStatusManager(newLogger(logs))
		factory = speaker.New
		orch = nil
	})

	AfterEach(func() {
		if orch != nil {
			orch.Shutdown()
		}
		if CurrentSpecReport().Failed() {
			GinkgoWriter.Println(logs.String())
		}
	})

	It("starts the control channel without a configuration file", func() {
		orch = newOrchestrator(Config{RPCHost: "127.0.0.1", RPCPort: 50002})
		task, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Name()).To(Equal("control-channel"))

		Eventually(channel.started).Should(Equal([]controlchannel.Settings{{BindIP: "127.0.0.1", BindPort: 50002}}))
		Consistently(shell.started, 200*time.Millisecond).Should(BeEmpty())
		Expect(orch.Engine()).To(BeNil())
	})

	It("starts the control channel exactly once when BGP and SSH are absent", func() {
		path := writeConfig(dir, "LOGGING:\n  level: info\n")
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "0.0.0.0"})
		_, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())

		Eventually(channel.started).Should(HaveLen(1))
		Consistently(channel.started, 200*time.Millisecond).Should(Equal([]controlchannel.Settings{
			{BindIP: "0.0.0.0", BindPort: controlchannel.DefaultBindPort},
		}))
		Expect(shell.started()).To(BeEmpty())
		Expect(logs.String()).To(ContainSubstring("logging settings found, not applied"))
	})

	It("bootstraps the speaker and launches both endpoints", func() {
		path := writeConfig(dir, fullConfig)
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "::1", RPCPort: 50010})
		_, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())

		engine := orch.Engine()
		Expect(engine).NotTo(BeNil())
		neighbors := engine.Neighbors()
		Expect(neighbors).To(HaveLen(2), spew.Sdump(neighbors))
		Expect(neighbors[0].Address).To(Equal("192.168.1.2"))
		Expect(neighbors[1].Address).To(Equal("192.168.1.3"))
		Expect(engine.VRFs()).To(HaveLen(1))

		routes := engine.Routes()
		Expect(routes).To(HaveLen(2), spew.Sdump(routes))
		Expect(routes[0].Prefix).To(Equal("10.0.0.0/24"))
		Expect(routes[1].Label).To(Equal(speaker.DefaultLabelRange[0]))

		Expect(strings.Count(logs.String(), "failed to apply settings")).To(Equal(1))
		Expect(logs.String()).To(ContainSubstring("skipping invalid settings"))

		summary := statusMgr.GetStatusSummary()
		Expect(summary.FailedResources).To(HaveLen(1))
		Expect(summary.FailedResources[0].Kind).To(Equal(status.NeighborKind))

		Eventually(shell.started).Should(HaveLen(1))
		Expect(shell.started()[0]).To(HaveKeyWithValue("ssh_password", "secret"))
		Eventually(channel.started).Should(Equal([]controlchannel.Settings{{BindIP: "::1", BindPort: 50010}}))
		Expect(health.isServing()).To(BeTrue())
	})

	It("skips the BGP bootstrap when a required field is missing", func() {
		path := writeConfig(dir, "BGP:\n  router_id: 10.0.0.1\n")
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "0.0.0.0"})
		task, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(task).NotTo(BeNil())

		Expect(orch.Engine()).To(BeNil())
		Expect(logs.String()).To(ContainSubstring("bgp bootstrap skipped"))
		Expect(logs.String()).To(ContainSubstring("as_number"))
		Eventually(channel.started).Should(HaveLen(1))
		Expect(health.isServing()).To(BeFalse())
	})

	It("skips the BGP bootstrap when the speaker rejects its settings", func() {
		path := writeConfig(dir, "BGP:\n  as_number: 65000\n  router_id: not-an-ip\n")
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "0.0.0.0"})
		_, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(orch.Engine()).To(BeNil())
		Eventually(channel.started).Should(HaveLen(1))
	})

	It("fails on an engine defect", func() {
		factory = func(settings speaker.Settings, _ *slog.Logger) (speaker.Engine, error) {
			return defectEngine{}, nil
		}
		path := writeConfig(dir, fullConfig)
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "0.0.0.0"})
		task, err := orch.Start(context.Background())
		Expect(err).To(MatchError(ContainSubstring("engine defect")))
		Expect(task).To(BeNil())
		Consistently(channel.started, 200*time.Millisecond).Should(BeEmpty())
	})

	DescribeTable("fails on configuration errors",
		func(config func() Config) {
			orch = newOrchestrator(config())
			task, err := orch.Start(context.Background())
			Expect(task).To(BeNil())
			var confErr *staticconfiguration.ConfigurationError
			Expect(errors.As(err, &confErr)).To(BeTrue(), "unexpected error %v", err)
		},
		Entry("missing file", func() Config {
			return Config{ConfigFile: filepath.Join(dir, "missing.yaml"), RPCHost: "0.0.0.0"}
		}),
		Entry("unparsable file", func() Config {
			return Config{ConfigFile: writeConfig(dir, "BGP: [unterminated"), RPCHost: "0.0.0.0"}
		}),
		Entry("invalid bind address", func() Config {
			return Config{RPCHost: "not-an-ip"}
		}),
	)

	It("stops the admin shell when the bind address is invalid", func() {
		path := writeConfig(dir, "SSH:\n  ssh_password: secret\n")
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "not-an-ip"})
		_, err := orch.Start(context.Background())
		Expect(err).To(HaveOccurred())
		Expect(channel.started()).To(BeEmpty())
	})

	It("keeps the tasks running after the caller context is cancelled", func() {
		orch = newOrchestrator(Config{RPCHost: "0.0.0.0"})
		ctx, cancel := context.WithCancel(context.Background())
		task, err := orch.Start(ctx)
		Expect(err).NotTo(HaveOccurred())
		cancel()

		Consistently(task.Done(), 200*time.Millisecond).ShouldNot(BeClosed())
		orch.Shutdown()
		Eventually(task.Done()).Should(BeClosed())
		Expect(task.Err()).NotTo(HaveOccurred())
	})

	It("reapplies the configuration when the file changes", func() {
		path := writeConfig(dir, "BGP:\n  as_number: 65000\n  router_id: 10.0.0.1\n  neighbors:\n  - address: 192.168.1.2\n    remote_as: 65001\n")
		orch = newOrchestrator(Config{ConfigFile: path, RPCHost: "0.0.0.0", WatchConfig: true})
		_, err := orch.Start(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(orch.Engine().Neighbors()).To(HaveLen(1))

		// give the watcher time to register
		time.Sleep(200 * time.Millisecond)
		updated := "BGP:\n  as_number: 65000\n  router_id: 10.0.0.1\n  neighbors:\n  - address: 192.168.1.2\n    remote_as: 65001\n  - address: 192.168.1.5\n    remote_as: 65005\n"
		Expect(os.WriteFile(path, []byte(updated), 0644)).To(Succeed())

		Eventually(func() int {
			return len(orch.Engine().Neighbors())
		}, 5*time.Second, 100*time.Millisecond).Should(Equal(2))
		Expect(logs.String()).To(ContainSubstring("configuration reloaded"))
	})
})
