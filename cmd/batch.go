package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"mtserver/internal/apiclient"
	"mtserver/internal/clix"
)

var batchQueueSize int

// batchCmd represents the base command for queued batch operations.
var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Queue batch translations and inspect their results",
	Long:  `Provides commands to enqueue batch translations on a running server and read back their state once the worker has run them.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var batchQueueCmd = &cobra.Command{
	Use:   "queue [image...]",
	Short: "Queue image files for batch translation by the worker",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}
		workflow, err := clix.ParseWorkflow(cmd.Flags())
		if err != nil {
			return err
		}
		translationCfg, err := clix.ParseConfigFile(cmd.Flags())
		if err != nil {
			return err
		}

		images := make([]string, len(args))
		for i, path := range args {
			if images[i], err = apiclient.FileDataURI(path); err != nil {
				return err
			}
		}

		queued, err := client.QueueBatch(cmd.Context(), images, apiclient.BatchOptions{
			Workflow:  workflow,
			BatchSize: batchQueueSize,
			Config:    translationCfg,
		})
		if err != nil {
			return fmt.Errorf("queue batch: %w", err)
		}

		fmt.Printf("Queued batch %s on queue '%s' (%s)\n", color.CyanString(queued.ID), queued.Queue, queued.State)
		return nil
	},
}

var batchStatusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the state and results of a queued batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient(cmd)
		if err != nil {
			return err
		}

		job, err := client.BatchStatus(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("batch status: %w", err)
		}

		fmt.Printf("Batch %s: %s (retried %d)\n", job.Job.ID, job.Job.State, job.Job.Retried)
		if job.Job.LastErr != "" {
			fmt.Printf("Last error: %s\n", color.RedString(job.Job.LastErr))
		}
		if job.Result == nil {
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Index", "Success", "Image", "Regions"})
		table.SetBorder(false)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetAlignment(tablewriter.ALIGN_LEFT)

		for _, item := range job.Result.Items {
			if item.Result == nil {
				table.Append([]string{strconv.Itoa(item.Index), color.YellowString("no result"), "-", "-"})
				continue
			}
			table.Append([]string{
				strconv.Itoa(item.Index),
				strconv.FormatBool(item.Result.Success),
				strconv.FormatBool(item.Result.HasImage),
				strconv.Itoa(len(item.Result.TextRegions)),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.AddCommand(batchQueueCmd)
	batchCmd.AddCommand(batchStatusCmd)

	batchQueueCmd.Flags().IntVar(&batchQueueSize, "batch-size", 0, "Images per pipeline call (0 = server default)")
	batchQueueCmd.Flags().StringP("workflow", "w", "normal", "Workflow: normal, export_original, save_json, load_text, upscale_only or colorize_only")
	batchQueueCmd.Flags().String("config-json", "", "Path to a JSON translation config")
	addServerFlag(batchQueueCmd)
	addServerFlag(batchStatusCmd)
}
