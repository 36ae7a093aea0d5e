// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// ServiceStatus holds the probe results for a running service.
type ServiceStatus struct {
	Addr    string `json:"addr"`
	Live    bool   `json:"live"`
	Ready   bool   `json:"ready"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
	timeout    time.Duration
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running gatehouse service",
		Long: `Query the health probes of a running service on its observability
address (metrics.addr) and report liveness and readiness.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appCfg, err := readConfig(cmd)
			if err != nil {
				return err
			}
			if appCfg.Metrics.Addr == "" {
				return oops.Code("CONFIG_INVALID").
					With("key", "metrics.addr").
					Errorf("the observability server is disabled; set --metrics-addr")
			}
			return runStatus(cmd, cfg, appCfg.Metrics.Addr)
		},
	}

	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", 2*time.Second, "probe timeout")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "observability server address")

	return cmd
}

// runStatus probes addr and prints the result. A service that is not ready
// is reported as an error so scripts can rely on the exit code.
func runStatus(cmd *cobra.Command, cfg *statusConfig, addr string) error {
	status := queryStatus(cmd.Context(), addr, cfg.timeout)

	if cfg.jsonOutput {
		output, err := formatStatusJSON(status)
		if err != nil {
			return err
		}
		cmd.Println(output)
	} else {
		cmd.Print(formatStatusTable(status))
	}

	if !status.Ready {
		return oops.Code("SERVICE_NOT_READY").With("addr", addr).Errorf("service is not ready")
	}
	return nil
}

// queryStatus probes the liveness and readiness endpoints.
func queryStatus(ctx context.Context, addr string, timeout time.Duration) ServiceStatus {
	if ctx == nil {
		ctx = context.Background()
	}
	status := ServiceStatus{Addr: addr}
	client := &http.Client{Timeout: timeout}
	base := "http://" + strings.TrimPrefix(addr, "http://")

	start := time.Now()
	code, _, err := probe(ctx, client, base+"/healthz/liveness")
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	status.Live = code == http.StatusOK
	status.Latency = time.Since(start).Round(time.Millisecond).String()

	code, body, err := probe(ctx, client, base+"/healthz/readiness")
	if err != nil {
		status.Error = fmt.Sprintf("readiness probe failed: %v", err)
		return status
	}
	status.Ready = code == http.StatusOK
	if !status.Ready {
		status.Error = strings.TrimSpace(body)
	}
	return status
}

func probe(ctx context.Context, client *http.Client, url string) (int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(status ServiceStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ADDRESS\tLIVE\tREADY\tLATENCY\tDETAIL")
	_, _ = fmt.Fprintln(w, "-------\t----\t-----\t-------\t------")

	latency := status.Latency
	if latency == "" {
		latency = "-"
	}
	detail := status.Error
	if detail == "" {
		detail = "-"
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
		status.Addr, yesNo(status.Live), yesNo(status.Ready), latency, detail)

	_ = w.Flush()
	return sb.String()
}

// formatStatusJSON formats the status as JSON.
func formatStatusJSON(status ServiceStatus) (string, error) {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return "", oops.Code("STATUS_ENCODE_FAILED").Wrap(err)
	}
	return string(data), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
