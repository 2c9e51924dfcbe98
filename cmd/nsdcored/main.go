package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/CelestialDroid/nsdcore/internal/nsd"
)

// unavailableLegacyDaemon answers every verb with OperationNotRunning: this
// build has no platform-specific native mDNS daemon wired in, so legacy-
// routed requests fail cleanly instead of silently hanging.
type unavailableLegacyDaemon struct{}

func (unavailableLegacyDaemon) Start(context.Context) error { return nil }
func (unavailableLegacyDaemon) Stop()                        {}
func (unavailableLegacyDaemon) Discover(int32, string) error { return nsd.ErrOperationNotRunning }
func (unavailableLegacyDaemon) Register(int32, nsd.ServiceInfo) error {
	return nsd.ErrOperationNotRunning
}
func (unavailableLegacyDaemon) Resolve(int32, string, string) error { return nsd.ErrOperationNotRunning }
func (unavailableLegacyDaemon) GetAddrInfo(int32, string, int) error {
	return nsd.ErrOperationNotRunning
}
func (unavailableLegacyDaemon) StopOperation(int32) error { return nil }

func main() {
	var (
		modernDiscovery bool
		modernAdvertiser bool
		typeAllowlist   string
		maxRequests     int
	)

	root := &cobra.Command{
		Use:   "nsdcored",
		Short: "Network service discovery orchestrator",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the orchestrator's event loop until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := nsd.DefaultConfig()
			cfg.ModernDiscoveryManagerEnabled = modernDiscovery
			cfg.ModernAdvertiserEnabled = modernAdvertiser
			cfg.TypeAllowlist = nsd.ParseTypeAllowlist(typeAllowlist)
			cfg.MaxRequestsPerClient = maxRequests
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("nsdcored: invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engineEvents := make(chan nsd.EngineEvent, 64)
			engine, err := nsd.NewDNSSDEngine(engineEvents)
			if err != nil {
				return fmt.Errorf("nsdcored: failed to start mDNS engine: %w", err)
			}

			deviceConfig := &nsd.StaticDeviceConfig{
				DiscoveryManagerTags: map[string]bool{},
				AdvertiserTags:       map[string]bool{},
			}
			for _, tag := range cfg.TypeAllowlist {
				deviceConfig.DiscoveryManagerTags[tag] = true
				deviceConfig.AdvertiserTags[tag] = true
			}
			reg := nsd.NewRegistry()
			router := nsd.NewRouter(cfg, deviceConfig)
			lock := nsd.NewLockManager(&processMulticastLock{})
			machine := nsd.New(reg, router, cfg, lock, unavailableLegacyDaemon{}, engine, deviceConfig)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return engine.Run(gctx)
			})
			g.Go(func() error {
				machine.Run(gctx)
				return nil
			})
			g.Go(func() error {
				for {
					select {
					case <-gctx.Done():
						return nil
					case ev := <-engineEvents:
						machine.Post(nsd.EngineEventMsg{Event: ev})
					}
				}
			})

			slog.Info("nsdcored started", "modernDiscovery", modernDiscovery, "modernAdvertiser", modernAdvertiser)
			err = g.Wait()
			slog.Info("nsdcored stopped")
			return err
		},
	}

	serveCmd.Flags().BoolVar(&modernDiscovery, "modern-discovery", false, "route discovery/resolve through the modern in-process engine by default")
	serveCmd.Flags().BoolVar(&modernAdvertiser, "modern-advertiser", false, "route service registration through the modern in-process engine by default")
	serveCmd.Flags().StringVar(&typeAllowlist, "type-allowlist", "", `per-type modern-backend allowlist, e.g. "_foo._tcp:foo,_bar._tcp:bar"`)
	serveCmd.Flags().IntVar(&maxRequests, "max-requests-per-client", nsd.DefaultConfig().MaxRequestsPerClient, "outstanding request quota per connected client")

	root.AddCommand(serveCmd)

	if err := fang.Execute(context.Background(), root); err != nil {
		os.Exit(1)
	}
}

// processMulticastLock is a process-wide no-op multicast lock placeholder:
// a real deployment wires this to the platform's Wi-Fi multicast lock API,
// which this headless build does not have access to.
type processMulticastLock struct{}

func (processMulticastLock) Acquire() { slog.Debug("multicast lock acquired") }
func (processMulticastLock) Release() { slog.Debug("multicast lock released") }
