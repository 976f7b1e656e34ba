package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"mtserver/internal/apiclient"
	"mtserver/internal/clix"
)

var serverURL string

// tasksCmd lists the tasks a server is currently running.
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List active translation tasks on a running server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		tasks, err := client.Tasks(cmd.Context())
		if err != nil {
			return fmt.Errorf("list tasks: %w", err)
		}
		if len(tasks) == 0 {
			fmt.Println("No active tasks.")
			return nil
		}
		clix.RenderTasks(os.Stdout, tasks)
		return nil
	},
}

// cancelCmd requests cancellation of a running task.
var cancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel an active translation task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		ok, err := client.Cancel(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("cancel task: %w", err)
		}
		if !ok {
			return fmt.Errorf("task %s not found", args[0])
		}
		fmt.Printf("Cancellation requested for task %s\n", args[0])
		return nil
	},
}

// newAPIClient builds a client for --server, falling back to the configured
// listen address.
func newAPIClient(cmd *cobra.Command) (*apiclient.Client, error) {
	base := serverURL
	if base == "" {
		cfg, err := GetConfigFromContext(cmd.Context())
		if err != nil {
			return nil, err
		}
		base = "http://" + cfg.ListenAddr()
	}
	return apiclient.New(base, &http.Client{}), nil
}

func addServerFlag(c *cobra.Command) {
	c.Flags().StringVar(&serverURL, "server", "", "Server base URL (default http://<server.addr>:<server.port>)")
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(cancelCmd)

	addServerFlag(tasksCmd)
	addServerFlag(cancelCmd)
}
