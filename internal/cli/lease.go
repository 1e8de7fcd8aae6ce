package cli

import (
	"github.com/spf13/cobra"
)

// NewLeaseCmd создаёт группу команд для аренд лидерства.
func NewLeaseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease",
		Short: "Inspect scheduler leader leases",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get LEADER_TYPE",
		Short: "Show the lease of a scheduler domain (appointment, member)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			l, err := client.GetLease(args[0])
			if err != nil {
				return err
			}

			return out.Lease(l)
		},
	})

	return cmd
}
