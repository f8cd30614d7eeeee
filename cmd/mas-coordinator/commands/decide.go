package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/mascoordinator"
	"github.com/hupe1980/mascoordinator/logging"
)

var decideCmd = &cobra.Command{
	Use:   "decide <message>",
	Short: "Print the routing decision for a user message",
	Long: `Runs only the decision phase for a single user message and prints the
decision as JSON. No agent is called.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDecide,
}

func init() {
	decideCmd.Flags().String("api-key", "", "API key for the LLM deployment (default: llm.api_key)")
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	// Logs go to stderr so stdout carries only the decision.
	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()

	svc, err := mascoordinator.New(cmd.Context(), cfg, func(o *mascoordinator.Options) {
		o.Logger = logging.New(logCfg)
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Shutdown(cmd.Context()) }()

	apiKey, _ := cmd.Flags().GetString("api-key")

	decision, err := svc.Decide(cmd.Context(), apiKey, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
