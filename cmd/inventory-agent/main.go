package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/breeze-rmm/inventory-agent/internal/agent"
	"github.com/breeze-rmm/inventory-agent/internal/config"
	"github.com/breeze-rmm/inventory-agent/internal/facts"
	"github.com/breeze-rmm/inventory-agent/internal/httputil"
	"github.com/breeze-rmm/inventory-agent/internal/inventory"
	"github.com/breeze-rmm/inventory-agent/internal/logging"
	"github.com/breeze-rmm/inventory-agent/pkg/api"
)

var log = logging.L("main")

var (
	version = "0.1.0"
	cfgFile string
	output  string
	find    string
)

var rootCmd = &cobra.Command{
	Use:          "inventory-agent",
	Short:        "Host inventory agent",
	Long:         `inventory-agent periodically enumerates installed software and host facts and delivers them to a collector.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent and run until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if isWindowsService() {
			return runAsService(startAgent)
		}
		return runAgent(cmd.Context())
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildAgent()
		if err != nil {
			return err
		}
		defer comps.logCloser.Close()

		report, err := comps.agent.ForceScan(cmd.Context())
		if err != nil {
			return err
		}
		if find != "" {
			return printValue(cmd.OutOrStdout(), comps.agent.FindSoftware(cmd.Context(), find))
		}
		return printValue(cmd.OutOrStdout(), report)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Scan once and deliver the report to the collector",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps, err := buildAgent()
		if err != nil {
			return err
		}
		defer comps.logCloser.Close()

		ack, err := comps.agent.ForceSend(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Delivered to %s: %s (%s)\n",
			comps.store.Get().CollectorURL(), ack.Message, ack.ReceivedTimestamp)
		return nil
	},
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the collector is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		client := api.NewClient(cfg.CollectorURL(), api.WithUserAgent(userAgent()))
		health, err := client.Health(cmd.Context(), httputil.DefaultRetryConfig())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collector %s: %s (%d reports received)\n",
			cfg.CollectorURL(), health.Status, health.ReceivedReports)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "inventory-agent v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format: json or yaml")
	scanCmd.Flags().StringVar(&find, "find", "", "only print software whose name contains this text")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(pingCmd)
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

type agentComponents struct {
	store     *config.Store
	agent     *agent.Agent
	logCloser io.Closer
}

func userAgent() string { return "inventory-agent/" + version }

// buildAgent loads configuration, sets up logging and wires an agent
// without starting it.
func buildAgent() (*agentComponents, error) {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	closer, err := logging.Setup(cfg.LogFormat, cfg.LogLevel, cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	if err != nil {
		log.Warn("log file unavailable, logging to stdout only", "file", cfg.LogFile, logging.KeyError, err)
	}

	store := config.NewStore(cfg, path)
	a := agent.New(store, inventory.NewPlatformEnumerator(), facts.NewCollector(), agent.WithVersion(version))
	return &agentComponents{store: store, agent: a, logCloser: closer}, nil
}

// startAgent builds the agent, starts its scheduler and begins watching the
// config file.
func startAgent() (*agentComponents, error) {
	comps, err := buildAgent()
	if err != nil {
		return nil, err
	}
	comps.store.Watch()
	comps.agent.Start()
	return comps, nil
}

func shutdownAgent(comps *agentComponents) {
	if comps == nil {
		return
	}
	comps.agent.Stop()
	st := comps.agent.Status()
	log.Info("agent shut down", logging.KeyScanCount, st.ScanCount, logging.KeySendCount, st.SendCount)
	comps.logCloser.Close()
}

func runAgent(ctx context.Context) error {
	comps, err := startAgent()
	if err != nil {
		return err
	}

	if hasConsole() {
		cfg := comps.store.Get()
		fmt.Printf("inventory-agent v%s\n", version)
		fmt.Printf("Collector: %s\n", cfg.CollectorURL())
		fmt.Printf("Scan every %s, send every %s\n",
			time.Duration(cfg.ScanIntervalSeconds)*time.Second,
			time.Duration(cfg.SendIntervalSeconds)*time.Second)
	}

	<-ctx.Done()

	log.Info("shutting down agent")
	shutdownAgent(comps)
	return nil
}

func printValue(w io.Writer, v any) error {
	switch output {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(v)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", output)
	}
}
