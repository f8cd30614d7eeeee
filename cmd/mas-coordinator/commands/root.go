package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hupe1980/mascoordinator"
	"github.com/hupe1980/mascoordinator/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mas-coordinator",
	Short: "MAS Coordinator - routes chat requests to the right agent",
	Long: `MAS Coordinator asks an LLM which agent should handle a chat request,
calls that agent, and streams a final answer synthesized from the agent's
response. Progress is reported as named stages.`,
	Version:      mascoordinator.Version,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to a YAML config file (default: ./configs/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("llm-endpoint", "", "Base URL of the LLM deployments")
	rootCmd.PersistentFlags().String("llm-deployment", "", "Deployment serving the decision and synthesis calls")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(versionCmd)
}

// persistentBindings maps config keys to the root flags overriding them.
var persistentBindings = map[string]string{
	"log.level":           "log-level",
	"llm.endpoint":        "llm-endpoint",
	"llm.deployment_name": "llm-deployment",
}

// loadConfig reads the configuration with the flags of cmd taking precedence.
// Only flags set on the command line override other sources.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, func(v *viper.Viper) {
		for _, b := range []map[string]string{persistentBindings, bindings} {
			for key, name := range b {
				if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
					_ = v.BindPFlag(key, f)
				}
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}
