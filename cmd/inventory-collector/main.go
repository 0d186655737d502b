package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/breeze-rmm/inventory-agent/internal/collector"
	"github.com/breeze-rmm/inventory-agent/internal/logging"
)

var (
	version   = "0.1.0"
	listen    string
	logFormat string
	logLevel  string
	debug     bool
)

var rootCmd = &cobra.Command{
	Use:          "inventory-collector",
	Short:        "Receives inventory reports from agents",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the collector HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(logFormat, logLevel, os.Stdout)
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}
		return collector.New().Run(cmd.Context(), listen)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "inventory-collector v%s\n", version)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listen, "listen", "0.0.0.0:8080", "address to listen on")
	serveCmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "run gin in debug mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
