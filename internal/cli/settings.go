package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSettingsCmd создаёт группу команд для настроек клиентов.
func NewSettingsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage client delivery settings",
	}

	cmd.AddCommand(
		newSettingsGetCmd(clientFn, outputFn),
		newSettingsSetCmd(clientFn, outputFn),
		newSettingsDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newSettingsGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get CLIENT_ID",
		Short: "Show client settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			s, err := client.GetSettings(args[0])
			if err != nil {
				return err
			}
			return out.Settings(s)
		},
	}
}

func newSettingsSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var values []string

	cmd := &cobra.Command{
		Use:   "set CLIENT_ID",
		Short: "Update client settings (unset fields are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			patch, err := parseSettings(values)
			if err != nil {
				return err
			}
			if len(patch) == 0 {
				return fmt.Errorf("nothing to update, use --set KEY=VALUE")
			}

			s, err := client.UpdateSettings(args[0], patch)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Settings updated: %s", s.ID))
			return out.Settings(s)
		},
	}

	cmd.Flags().StringSliceVar(&values, "set", nil, "Field as KEY=VALUE, e.g. phone=+1555 (repeatable)")

	return cmd
}

func newSettingsDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete CLIENT_ID",
		Short: "Delete client settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSettings(args[0]); err != nil {
				return err
			}
			outputFn().Success(fmt.Sprintf("Settings deleted: %s", args[0]))
			return nil
		},
	}
}

// parseSettings разбирает KEY=VALUE; true/false становятся bool.
func parseSettings(values []string) (map[string]any, error) {
	patch := make(map[string]any, len(values))
	for _, kv := range values {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid format %q, expected KEY=VALUE", kv)
		}
		switch parts[1] {
		case "true":
			patch[parts[0]] = true
		case "false":
			patch[parts[0]] = false
		default:
			patch[parts[0]] = parts[1]
		}
	}
	return patch, nil
}
