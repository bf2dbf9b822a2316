package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"omibyte.io/bxcan/internal/logging"
	"omibyte.io/bxcan/peripheral/can/cansim"
)

var (
	runOpts = struct {
		metricsAddr string
		wait        bool
		ticks       int
	}{}

	runCmd = &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a bus scenario",
		Long:  "Open every node of the scenario through the driver, send its frames over the simulated bus and print what each node receives.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadScenario(args[0])
			if err != nil {
				return err
			}
			if runOpts.ticks > 0 {
				s.Ticks = runOpts.ticks
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			metrics := cansim.NewMetrics(reg)

			if runOpts.metricsAddr != "" {
				srv := serveMetrics(runOpts.metricsAddr, reg)
				defer func() { _ = srv.Shutdown(context.Background()) }()
			}

			l := logging.L()
			sim, err := newSimulation(s, metrics, l, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ticks := sim.run(s.Ticks)
			l.Info("scenario_done", "ticks", ticks, "sent", sim.sent, "received", sim.received)

			if runOpts.wait && runOpts.metricsAddr != "" {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				<-ctx.Done()
				l.Info("shutdown_signal")
			}
			if q := sim.queued(); q > 0 {
				return fmt.Errorf("%d frames not sent within %d ticks", q, ticks)
			}
			return nil
		},
	}
)

func init() {
	runCmd.Flags().StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics at this address (e.g. :9100)")
	runCmd.Flags().BoolVar(&runOpts.wait, "wait", false, "keep serving metrics after the scenario until interrupted")
	runCmd.Flags().IntVar(&runOpts.ticks, "ticks", 0, "override the scenario's tick limit")
}

func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}
