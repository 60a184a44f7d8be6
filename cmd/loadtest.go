package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/angeloszaimis/health-router/internal/loadtest"
)

func newLoadtestCmd() *cobra.Command {
	var opts loadtest.Options

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Send concurrent traffic through the proxy and report the endpoint distribution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := loadtest.Run(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("load test failed: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				loadtest.Report
				Distribution map[string]int64 `json:"distribution"`
			}{report, report.Distribution()})
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "http://localhost:8001/", "target URL")
	cmd.Flags().StringVar(&opts.Method, "method", "GET", "HTTP method")
	cmd.Flags().StringVar(&opts.Body, "body", "", "request body")
	cmd.Flags().StringVar(&opts.ContentType, "content-type", "application/json", "Content-Type header")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 10, "number of concurrent workers")
	cmd.Flags().IntVar(&opts.Requests, "requests", 100, "total number of requests to send")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request timeout")

	return cmd
}
