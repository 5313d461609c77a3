package cmd

import (
	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jarlhq/jarl/internal/config"
	"github.com/jarlhq/jarl/internal/observability"
)

const appName = "jarl"

var (
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd runs the delay server when called without a subcommand
var rootCmd = &cobra.Command{
	Use:   appName + " --service NAME --requests N --period SECONDS --port PORT",
	Short: "Sliding-window delay server for client-side rate limiting",
	Long: `jarl tells callers how long to wait before hitting a rate-limited service.

Every TCP connection to --ip:--port receives one decimal number, the delay in
seconds with three decimals (for example "0.000" or "13.000"), and is then
closed. The first --requests callers in any --period seconds get 0.000; callers
beyond that are spread out so the service sees at most --requests calls per
--period.`,
	Example: `  jarl --service shopify --requests 2 --period 10 --port 7000
  jarl --service github --requests 100 --period 1 --ip 127.0.0.1 --port 7001 --admin-port 8080`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

// Execute runs the root command. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Keep library-level telemetry quiet until the server installs its own.
	if sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: false}); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	bindServerFlags(rootCmd.Flags())
}

func initLogging() {
	observability.InitCLILogger(appName, verbose)
}

// bindServerFlags registers the delay server flags.
func bindServerFlags(flags *pflag.FlagSet) {
	flags.String("service", "", "name of the rate-limited service (label only)")
	flags.Int("requests", 0, "requests allowed per period")
	flags.Float64("period", 0, "period length in seconds")
	flags.String("ip", config.DefaultIP, "interface to bind the delay listener to")
	flags.Int("port", 0, "TCP port for the delay listener")
	flags.String("log-level", config.DefaultLogLevel, "log level: trace|debug|info|warn|error")
	flags.Int("admin-port", 0, "port for the read-only status HTTP server (0 disables)")
	flags.String("admin-host", config.DefaultAdminHost, "interface for the status HTTP server")
	flags.Int("metrics-port", 0, "port for the Prometheus exporter (0 disables)")
}

// serverFlagKeys maps flag names to config keys.
var serverFlagKeys = map[string]string{
	"service":      "service",
	"requests":     "requests",
	"period":       "period",
	"ip":           "ip",
	"port":         "port",
	"log-level":    "logging.level",
	"admin-port":   "admin.port",
	"admin-host":   "admin.host",
	"metrics-port": "metrics.port",
}

// loadServerConfig builds the config from parsed flags only.
func loadServerConfig(flags *pflag.FlagSet, verbose bool) (*config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)

	for name, key := range serverFlagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, err
		}
	}

	if verbose && !flags.Changed("log-level") {
		v.Set("logging.level", "debug")
	}

	return config.Load(v)
}
