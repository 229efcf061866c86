package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewPaymentCmd создаёт группу команд для просмотра платежей.
func NewPaymentCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payment",
		Short: "Inspect issued payments",
	}

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Show a signed payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			p, err := client.GetPayment(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "RECIPIENT", "AMOUNT", "NONCE", "LABEL"}
			row := []string{
				p.ID,
				p.Recipient,
				strconv.FormatUint(p.Amount, 10),
				strconv.FormatUint(p.Nonce, 10),
				p.Label,
			}
			out.Print(headers, [][]string{row}, p)
			return nil
		},
	}

	cmd.AddCommand(show)
	return cmd
}
