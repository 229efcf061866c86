package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewWorkerCmd создаёт группу команд для управления workers.
func NewWorkerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage workers",
	}

	cmd.AddCommand(
		newWorkerListCmd(clientFn, outputFn),
		newWorkerShowCmd(clientFn, outputFn),
		newWorkerBanCmd(clientFn, outputFn, true),
		newWorkerBanCmd(clientFn, outputFn, false),
		newWorkerQueueCmd(clientFn, outputFn),
	)

	return cmd
}

var workerHeaders = []string{"PEER", "RECIPIENT", "NONCE", "TASKS", "DONE", "REJECTED", "OUTSTANDING", "EARNED", "BANNED"}

func workerRow(w WorkerResponse) []string {
	return []string{
		w.PeerID,
		w.Recipient,
		strconv.FormatUint(w.Nonce, 10),
		strconv.Itoa(w.TotalTasks),
		strconv.Itoa(w.TasksCompleted),
		strconv.Itoa(w.TasksRejected),
		strconv.Itoa(w.Outstanding),
		strconv.FormatUint(w.TotalEarned, 10),
		strconv.FormatBool(w.Banned),
	}
}

func newWorkerListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workers, err := client.ListWorkers()
			if err != nil {
				return err
			}

			rows := make([][]string, len(workers))
			for i, w := range workers {
				rows[i] = workerRow(w)
			}

			out.Print(workerHeaders, rows, workers)
			return nil
		},
	}
}

func newWorkerShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show PEER_ID",
		Short: "Show a worker record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			worker, err := client.GetWorker(args[0])
			if err != nil {
				return err
			}

			out.Print(workerHeaders, [][]string{workerRow(*worker)}, worker)
			return nil
		},
	}
}

func newWorkerBanCmd(clientFn func() *Client, outputFn func() *Output, ban bool) *cobra.Command {
	use, short := "ban PEER_ID", "Ban a worker"
	if !ban {
		use, short = "unban PEER_ID", "Unban a worker"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			worker, err := client.SetWorkerBanned(args[0], ban)
			if err != nil {
				return err
			}

			if ban {
				out.Success(fmt.Sprintf("Worker %s banned", worker.PeerID))
			} else {
				out.Success(fmt.Sprintf("Worker %s unbanned", worker.PeerID))
			}
			out.Print(workerHeaders, [][]string{workerRow(*worker)}, worker)
			return nil
		},
	}
}

func newWorkerQueueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show the scheduling queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			queue, err := client.GetQueue()
			if err != nil {
				return err
			}

			rows := make([][]string, len(queue))
			for i, peer := range queue {
				rows[i] = []string{strconv.Itoa(i), peer}
			}

			out.Print([]string{"POS", "PEER"}, rows, queue)
			return nil
		},
	}
}
