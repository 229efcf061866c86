package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления tasks.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskAssignCmd(clientFn, outputFn),
	)

	return cmd
}

func taskRow(t TaskResponse) []string {
	return []string{
		t.ID,
		t.Title,
		t.Status,
		strconv.FormatUint(t.Reward, 10),
		t.TemplateID,
		t.AssignedTo,
	}
}

var taskHeaders = []string{"ID", "TITLE", "STATUS", "REWARD", "TEMPLATE", "ASSIGNED"}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(offset, limit)
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = taskRow(t)
			}

			out.Print(taskHeaders, rows, tasks)
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "Pagination offset")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of tasks")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var title, templateID, dataJSON string
	var reward uint64
	var timeLimit int

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var data map[string]any
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
					return fmt.Errorf("invalid --data: %w", err)
				}
			}

			task, err := client.CreateTask(CreateTaskRequest{
				Title:            title,
				Reward:           reward,
				TimeLimitSeconds: timeLimit,
				TemplateID:       templateID,
				Data:             data,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Task title (required)")
	cmd.Flags().Uint64Var(&reward, "reward", 0, "Reward in token units")
	cmd.Flags().IntVar(&timeLimit, "time-limit", 600, "Time limit in seconds")
	cmd.Flags().StringVar(&templateID, "template", "", "Template ID (required)")
	cmd.Flags().StringVar(&dataJSON, "data", "", "Task data as JSON")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("template")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a task with its event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)

			if !out.jsonMode && len(task.Events) > 0 {
				rows := make([][]string, len(task.Events))
				for i, ev := range task.Events {
					typ, _ := ev["type"].(string)
					ts, _ := ev["timestamp"].(string)
					peer, _ := ev["peer_id"].(string)
					reason, _ := ev["reason"].(string)
					rows[i] = []string{typ, ts, peer, reason}
				}
				out.Table([]string{"EVENT", "TIMESTAMP", "PEER", "REASON"}, rows)
			}
			return nil
		},
	}
}

func newTaskAssignCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "assign ID",
		Short: "Assign a task to the next free worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.AssignTask(args[0])
			if err != nil {
				return err
			}

			if task.AssignedTo == "" {
				out.Success("No free worker, task left pending")
			} else {
				out.Success(fmt.Sprintf("Task assigned to %s", task.AssignedTo))
			}
			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}
}
