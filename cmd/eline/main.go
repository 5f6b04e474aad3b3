// Copyright 2025 Open E-Line Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command eline runs the E-Line circuit controller.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/open-eline/eline/eline"
	"github.com/open-eline/eline/eline/circuit"
	"github.com/open-eline/eline/eline/config"
	"github.com/open-eline/eline/eline/mgmtapi"
	"github.com/open-eline/eline/pkg/log"
	"github.com/open-eline/eline/pkg/private/serrors"
)

func main() {
	root := &cobra.Command{
		Use:           "eline",
		Short:         "E-Line point-to-point circuit controller",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		newRunCmd(),
		newSampleConfigCmd(),
		newStatusCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "eline.toml", "Configuration file")
	return cmd
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Setup(cfg.Logging); err != nil {
		return err
	}
	defer log.Flush()
	logger := log.Root()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.CtxWith(ctx, logger)

	controller, err := eline.New(cfg, nil, nil)
	if err != nil {
		return err
	}
	defer controller.Store.Close()
	if err := controller.LoadCircuits(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return controller.Run(ctx)
	})
	if cfg.API.Addr != "" {
		srv := &http.Server{
			Addr:    cfg.API.Addr,
			Handler: (&mgmtapi.Server{Controller: controller}).Router(),
		}
		g.Go(func() error {
			logger.Info("Management API listening", "addr", cfg.API.Addr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return serrors.Wrap("serving management API", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		g.Go(func() error {
			logger.Info("Metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return serrors.Wrap("serving metrics", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}
	logger.Info("Controller started")
	return g.Wait()
}

func newSampleConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample-config",
		Short: "Print a sample configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), config.Sample())
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	var apiAddr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "List the circuits of a running controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			return status(cmd, apiAddr)
		},
	}
	cmd.Flags().StringVar(&apiAddr, "api", "http://127.0.0.1:8080",
		"Management API address")
	return cmd
}

func status(cmd *cobra.Command, apiAddr string) error {
	resp, err := http.Get(apiAddr + "/v2/evc/")
	if err != nil {
		return serrors.Wrap("querying controller", err, "api", apiAddr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return serrors.New("unexpected response", "status", resp.StatusCode)
	}
	var circuits map[string]circuit.Record
	if err := json.NewDecoder(resp.Body).Decode(&circuits); err != nil {
		return serrors.Wrap("decoding response", err)
	}
	ids := make([]string, 0, len(circuits))
	for id := range circuits {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{
		"ID", "Name", "Enabled", "Active", "UNI A", "UNI Z", "Current Path",
	})
	for _, id := range ids {
		rec := circuits[id]
		table.Append([]string{
			rec.ID,
			rec.Name,
			fmt.Sprint(rec.Enabled),
			fmt.Sprint(rec.Active),
			fmt.Sprintf("%s:%d tag %d", rec.UNIA.Switch, rec.UNIA.Port, rec.UNIA.Tag),
			fmt.Sprintf("%s:%d tag %d", rec.UNIZ.Switch, rec.UNIZ.Port, rec.UNIZ.Tag),
			fmt.Sprintf("%v", rec.CurrentPath.Links),
		})
	}
	table.Render()
	return nil
}
