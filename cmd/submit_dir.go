package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"mtserver/internal/apiclient"
	"mtserver/internal/clix"
	"mtserver/internal/fileingest"
	"mtserver/internal/framing"
)

var (
	submitDirOut    string
	submitDirFormat string
	submitDirQuiet  bool
)

// submitDirCmd streams every image under a directory, one after another.
var submitDirCmd = &cobra.Command{
	Use:   "submit-dir [directory]",
	Short: "Recursively translate all images in a directory on a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		ctx := cmd.Context()

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

		files, err := fileingest.DiscoverImageFiles(ctx, dir)
		if err != nil {
			return fmt.Errorf("failed to discover image files: %w", err)
		}
		if len(files) == 0 {
			fmt.Printf("No image files found under %s\n", dir)
			return nil
		}
		fmt.Printf("Discovered %d image files under %s\n", len(files), dir)

		if err := os.MkdirAll(submitDirOut, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}

		var successCount, errorCount int
		defer func() {
			fmt.Printf("\nProcessed %d files: %d succeeded, %d failed\n",
				len(files), successCount, errorCount)
		}()

		ext := submitDirFormat
		if ext == "jpeg" {
			ext = "jpg"
		}
		opts := apiclient.StreamOptions{Workflow: workflow, Format: submitDirFormat, Config: translationCfg}

		for _, f := range files {
			fmt.Printf("\nTranslating: %s\n", f.Path)

			var payload []byte
			var failure string
			err := client.StreamFile(ctx, f.Path, opts, func(fr framing.Frame) error {
				if !submitDirQuiet {
					clix.RenderFrame(os.Stdout, fr)
				}
				switch fr.Status {
				case framing.StatusPayload:
					payload = fr.Payload
				case framing.StatusError:
					if e, perr := framing.ParseFailure(fr); perr == nil {
						failure = fmt.Sprintf("%s: %s", e.Stage, e.Error)
					}
				}
				return nil
			})
			if err == nil && failure != "" {
				err = fmt.Errorf("%s", failure)
			}
			if err == nil && payload == nil {
				err = fmt.Errorf("stream ended without a result")
			}
			if err != nil {
				errorCount++
				fmt.Printf("  - %s: %v\n", color.RedString("ERROR"), err)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}

			rel, relErr := filepath.Rel(dir, f.Path)
			if relErr != nil {
				rel = f.Name
			}
			target := filepath.Join(submitDirOut, strings.TrimSuffix(rel, filepath.Ext(rel))+"."+ext)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err == nil {
				err = os.WriteFile(target, payload, 0o644)
			}
			if err != nil {
				errorCount++
				fmt.Printf("  - %s: write %s: %v\n", color.RedString("ERROR"), target, err)
				continue
			}

			fmt.Printf("  - %s %s\n", color.GreenString("Saved"), target)
			successCount++
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitDirCmd)

	submitDirCmd.Flags().StringVarP(&submitDirOut, "out-dir", "o", "translated", "Directory to write results to")
	submitDirCmd.Flags().StringVarP(&submitDirFormat, "format", "f", "png", "Result format: png or jpg")
	submitDirCmd.Flags().BoolVarP(&submitDirQuiet, "quiet", "q", false, "Do not print progress frames")
	submitDirCmd.Flags().StringP("workflow", "w", "normal", "Workflow: normal, export_original, save_json, load_text, upscale_only or colorize_only")
	submitDirCmd.Flags().String("config-json", "", "Path to a JSON translation config")
	addServerFlag(submitDirCmd)
}
