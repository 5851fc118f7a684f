package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pulseboard/pulse/internal/logging"
	"github.com/pulseboard/pulse/providers/notify"
	"github.com/pulseboard/pulse/registry"
)

var errNoChannels = errors.New("no notification channels are configured")

type notifyOptions struct {
	title    string
	body     string
	severity string
	url      string
	fields   map[string]string
}

func newNotifyCmd(root *rootOptions) *cobra.Command {
	opts := &notifyOptions{}

	cmd := &cobra.Command{
		Use:   "notify [body]",
		Short: "Send a message to every configured notification channel",
		Long: `Runs discovery and broadcasts one message to all active notification
channels at once. A failing channel does not stop delivery to the others;
the command exits non-zero if any channel failed.

Examples:
  pulse notify "Nightly sync finished"
  pulse notify --title "Budget alert" --severity critical --field campaign=spring "Spend is over 90%"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.body = args[0]
			}
			msg := opts.message()
			if err := msg.Validate(); err != nil {
				return err
			}

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			if root.logLevel == "" {
				logger.SetLevel(logging.LevelWarn)
			}

			reg, err := discover(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeProviders(reg, logger)

			channels := registry.All[notify.Notifier](reg, notify.DomainKey)
			if len(channels) == 0 {
				return errNoChannels
			}

			results, sendErr := notify.Broadcast(cmd.Context(), channels, msg)
			if err := writeResults(cmd.OutOrStdout(), results); err != nil {
				return err
			}
			return sendErr
		},
	}
	cmd.Flags().StringVar(&opts.title, "title", "", "message title")
	cmd.Flags().StringVar(&opts.body, "body", "", "message body (or pass it as the argument)")
	cmd.Flags().StringVar(&opts.severity, "severity", "", "info, warning or critical")
	cmd.Flags().StringVar(&opts.url, "url", "", "link attached to the message")
	cmd.Flags().StringToStringVar(&opts.fields, "field", nil, "extra key=value fields")
	return cmd
}

func (o *notifyOptions) message() notify.Message {
	return notify.Message{
		Title:    o.title,
		Body:     o.body,
		Severity: notify.Severity(strings.ToLower(o.severity)),
		URL:      o.url,
		Fields:   o.fields,
	}
}

func writeResults(w io.Writer, results []notify.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tRESULT\tDETAIL")
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(tw, "%s\tfailed\t%v\n", r.Provider, r.Err)
			continue
		}
		fmt.Fprintf(tw, "%s\tdelivered\t%s\n", r.Provider, r.Receipt.ID)
	}
	return tw.Flush()
}
