package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/registry"
)

func newProvidersCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Discover providers and print the active ones per domain",
		Long: `Runs discovery against the current environment and prints, for every
known domain, the providers that are configured and constructed.

Examples:
  pulse providers
  pulse providers --json | jq '.finance'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			// Logs go to stderr so stdout stays parseable.
			logger := newLogger(cfg, cmd.ErrOrStderr())
			if root.logLevel == "" {
				logger.SetLevel(logging.LevelWarn)
			}

			reg, err := discover(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeProviders(reg, logger)

			if asJSON {
				return writeStatusJSON(cmd.OutOrStdout(), reg.Status())
			}
			return writeStatusTable(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the status as JSON")
	return cmd
}

func writeStatusJSON(w io.Writer, status map[string][]string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(status)
}

func writeStatusTable(w io.Writer, reg *registry.Registry) error {
	status := reg.Status()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DOMAIN\tSTATE\tPROVIDERS")
	for _, domain := range reg.Domains() {
		names := "-"
		if len(status[domain]) > 0 {
			names = strings.Join(status[domain], ", ")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", domain, reg.State(domain), names)
	}
	return tw.Flush()
}
