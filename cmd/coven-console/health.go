// ABOUTME: The health command: a one-shot backend check or a live connectivity watch
// ABOUTME: Watch mode can expose Prometheus metrics and a gRPC health probe

package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
	"github.com/2389/coven-console/internal/health"
)

func healthCmd(a *app) *cobra.Command {
	var (
		watch       bool
		metricsAddr string
		probeAddr   string
	)
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check backend health, or watch connectivity with --watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-addr") {
				metricsAddr = a.console.Config.Metrics.Addr
			}
			if !cmd.Flags().Changed("probe-addr") {
				probeAddr = a.console.Config.Probe.GRPCAddr
			}
			if watch {
				return a.watchHealth(cmd.Context(), metricsAddr, probeAddr)
			}
			return a.checkHealth(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "monitor the health socket until interrupted")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
	cmd.Flags().StringVar(&probeAddr, "probe-addr", "", "serve the gRPC health probe on this address while watching")
	return cmd
}

func (a *app) checkHealth(ctx context.Context) error {
	base, err := a.client().BaseURL(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Backend:  %s\n", base)
	if a.console.Tailnet() {
		fmt.Printf("Route:    tailnet\n")
	}
	fmt.Printf("Breaker:  %s\n", a.console.BreakerState())
	fmt.Print("Status:   ")

	st, err := a.client().Health(ctx)
	if err != nil {
		color.Red("UNREACHABLE (%s)\n", client.FriendlyError(err))
		return err
	}
	if a.emit(st) {
		return nil
	}
	printStatus(st)
	return nil
}

func printStatus(st *client.HealthStatus) {
	if st.Healthy() {
		green.Print(st.Status)
	} else {
		color.New(color.FgRed).Print(st.Status)
	}
	if st.Version != "" {
		gray.Printf(" (v%s)", st.Version)
	}
	fmt.Println()

	names := make([]string, 0, len(st.Services))
	for name := range st.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-10s %s\n", name, st.Services[name])
	}
}

func (a *app) watchHealth(ctx context.Context, metricsAddr, probeAddr string) error {
	mon := a.console.NewMonitor()

	stopConn := mon.OnConnectivity(func(c health.Connectivity) {
		stamp := gray.Sprint(time.Now().Format("15:04:05"))
		switch {
		case c.Connected:
			fmt.Printf("%s %s via %s\n", stamp, green.Sprint("connected"), c.Mode)
		case c.Mode == health.ModeStopped:
			fmt.Printf("%s %s\n", stamp, yellow.Sprint("monitor stopped"))
		case c.CloseCode != 0:
			fmt.Printf("%s %s (code %d, mode %s)\n", stamp, color.RedString("disconnected"), c.CloseCode, c.Mode)
		default:
			fmt.Printf("%s %s (mode %s)\n", stamp, color.RedString("disconnected"), c.Mode)
		}
	})
	defer stopConn()

	stopStatus := mon.OnStatus(func(st client.HealthStatus) {
		a.logger.Debug("health status", "status", st.Status, "version", st.Version)
	})
	defer stopStatus()

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A listener that fails stops the watch
	errCh := make(chan error, 2)
	serve := func(fn func() error) {
		err := fn()
		if err != nil {
			cancel()
		}
		errCh <- err
	}
	servers := 0
	if metricsAddr != "" {
		servers++
		go serve(func() error { return a.console.ServeMetrics(ctx, metricsAddr) })
	}
	if probeAddr != "" {
		servers++
		go serve(func() error { return a.console.ServeProbe(ctx, probeAddr, mon) })
	}

	cyan.Println("Watching backend health (Ctrl+C to stop)")
	runErr := mon.Run(ctx)

	cancel()
	var serveErr error
	for i := 0; i < servers; i++ {
		if err := <-errCh; err != nil && serveErr == nil {
			serveErr = err
		}
	}

	switch {
	case serveErr != nil:
		return serveErr
	case parent.Err() != nil:
		return nil
	}
	return runErr
}
