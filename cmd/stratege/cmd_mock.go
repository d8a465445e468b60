package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"stratege/internal/logging"
	"stratege/internal/mockapi"
)

// mockServerCmd serves the in-memory backend, for demos and for driving the
// chat without the real API.
var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Serve an in-memory backend implementing the stratège API",
	Long: `Starts an in-memory implementation of the backend API. Data lives
only as long as the process.

Example:
  stratege mock-server --addr 127.0.0.1:5000 &
  stratege --api-url http://127.0.0.1:5000`,
	RunE: runMockServer,
}

var (
	mockAddr   string
	mockNoSeed bool
)

func init() {
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "", "Listen address (default: mock.addr from config)")
	mockServerCmd.Flags().BoolVar(&mockNoSeed, "empty", false, "Start without demo data")
}

func runMockServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	addr := mockAddr
	if addr == "" {
		addr = cfg.Mock.Addr
	}
	var opts []mockapi.Option
	if cfg.Mock.Seed && !mockNoSeed {
		opts = append(opts, mockapi.WithSeed())
	}
	srv := mockapi.New(logs.Get(logging.CategoryMock), opts...)
	fmt.Fprintf(cmd.OutOrStdout(), "Mock backend on http://%s (ctrl+c to stop)\n", addr)
	return srv.ListenAndServe(ctx, addr)
}
