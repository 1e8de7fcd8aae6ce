package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewDispatchCmd создаёт группу команд для работы с dispatch.
func NewDispatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Inspect and manage dispatches",
	}

	cmd.AddCommand(
		newDispatchGetCmd(clientFn, outputFn),
		newDispatchListCmd(clientFn, outputFn),
		newDispatchSubmitCmd(clientFn, outputFn),
		newDispatchCancelCmd(clientFn, outputFn),
		newDispatchPurgeCmd(clientFn, outputFn),
		newDispatchTriggerCmd(clientFn, outputFn),
	)

	return cmd
}

func newDispatchGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get DISPATCH_ID",
		Short: "Show a dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.GetDispatch(args[0])
			if err != nil {
				return err
			}
			return out.Dispatch(d)
		},
	}
}

func newDispatchListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var sender string
	var fields []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dispatches of a sender",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if len(fields) > 0 {
				rows, err := client.ProjectDispatches(sender, fields)
				if err != nil {
					return err
				}
				return out.Projection(fields, rows)
			}

			dispatches, err := client.ListDispatches(sender)
			if err != nil {
				return err
			}
			return out.Dispatches(dispatches)
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "Sender client ID (required)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Return only these fields (e.g. dispatchId,status)")
	_ = cmd.MarkFlagRequired("sender")

	return cmd
}

func newDispatchSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req SubmitDispatchRequest
	var in time.Duration

	cmd := &cobra.Command{
		Use:   "submit DISPATCH_ID",
		Short: "Queue a createDispatch command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req.DispatchID = args[0]
			if cmd.Flags().Changed("in") {
				req.TriggersAt = time.Now().Add(in).UTC().Format(time.RFC3339)
			}

			if err := client.SubmitDispatch(req); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Dispatch queued: %s", req.DispatchID))
			return nil
		},
	}

	cmd.Flags().StringVar(&req.SenderClientID, "sender", "", "Sender client ID")
	cmd.Flags().StringVar(&req.RecipientClientID, "recipient", "", "Recipient client ID")
	cmd.Flags().StringVar(&req.NotificationType, "type", "text", "Notification type (text, textSms, call, video)")
	cmd.Flags().StringVar(&req.Content, "content", "", "Message content")
	cmd.Flags().DurationVar(&in, "in", 0, "Send after this delay (sets triggersAt)")

	return cmd
}

func newDispatchCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel DISPATCH_ID",
		Short: "Cancel a dispatch that has not been sent yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			d, err := client.CancelDispatch(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Dispatch canceled: %s", d.DispatchID))
			return out.Dispatch(d)
		},
	}
}

func newDispatchPurgeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "purge CLIENT_ID",
		Short: "Delete all dispatches addressed to a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.PurgeClientDispatches(args[0])
			if err != nil {
				return err
			}
			return out.Purged(resp)
		},
	}
}

func newDispatchTriggerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger DISPATCH_ID",
		Short: "Show the deferred trigger of a dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tr, err := client.GetTrigger(args[0])
			if err != nil {
				return err
			}
			return out.Trigger(tr)
		},
	}
}
