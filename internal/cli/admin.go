package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewTemplateCmd создаёт группу команд для управления шаблонами.
func NewTemplateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage task templates",
	}

	cmd.AddCommand(
		newTemplateListCmd(clientFn, outputFn),
		newTemplateCreateCmd(clientFn, outputFn),
		newTemplateShowCmd(clientFn, outputFn),
	)

	return cmd
}

var templateHeaders = []string{"ID", "TITLE", "CREATED"}

func newTemplateListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			templates, err := client.ListTemplates()
			if err != nil {
				return err
			}

			rows := make([][]string, len(templates))
			for i, tpl := range templates {
				rows[i] = []string{tpl.ID, tpl.Title, tpl.CreatedAt}
			}

			out.Print(templateHeaders, rows, templates)
			return nil
		},
	}
}

func newTemplateCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var id, title, schemaJSON string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var schema map[string]any
			if schemaJSON != "" {
				if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
					return fmt.Errorf("invalid --schema: %w", err)
				}
			}

			tpl, err := client.CreateTemplate(CreateTemplateRequest{ID: id, Title: title, Schema: schema})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template created: %s", tpl.ID))
			out.Print(templateHeaders, [][]string{{tpl.ID, tpl.Title, tpl.CreatedAt}}, tpl)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Template ID (required)")
	cmd.Flags().StringVar(&title, "title", "", "Template title")
	cmd.Flags().StringVar(&schemaJSON, "schema", "", "Expected data schema as JSON")
	cmd.MarkFlagRequired("id")

	return cmd
}

func newTemplateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tpl, err := client.GetTemplate(args[0])
			if err != nil {
				return err
			}

			out.Print(templateHeaders, [][]string{{tpl.ID, tpl.Title, tpl.CreatedAt}}, tpl)
			return nil
		},
	}
}

// NewAdminCmd создаёт группу административных команд.
func NewAdminCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administrative operations",
	}

	accessCode := &cobra.Command{
		Use:   "access-code",
		Short: "Issue a one-time access code",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			code, err := client.IssueAccessCode()
			if err != nil {
				return err
			}

			out.Success("Access code issued")
			out.Print([]string{"CODE", "CREATED"}, [][]string{{code.Code, code.CreatedAt}}, code)
			return nil
		},
	}

	maintenance := &cobra.Command{
		Use:   "maintenance on|off",
		Short: "Toggle maintenance mode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}

			if err := client.SetMaintenance(enabled); err != nil {
				return err
			}
			out.Success(fmt.Sprintf("Maintenance mode: %s", args[0]))
			return nil
		},
	}

	cmd.AddCommand(accessCode, maintenance)
	return cmd
}
