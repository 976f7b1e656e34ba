package cmd

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"mtserver/internal/apiclient"
	"mtserver/internal/clix"
	"mtserver/internal/framing"
)

var (
	submitOut    string
	submitFormat string
)

// submitCmd streams one image through a running server.
var submitCmd = &cobra.Command{
	Use:   "submit [image]",
	Short: "Translate an image on a running server and show progress",
	Args:  cobra.ExactArgs(1),
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

		var (
			payload []byte
			failure *framing.Failure
		)
		opts := apiclient.StreamOptions{Workflow: workflow, Format: submitFormat, Config: translationCfg}
		err = client.StreamFile(cmd.Context(), args[0], opts, func(f framing.Frame) error {
			clix.RenderFrame(os.Stdout, f)
			switch f.Status {
			case framing.StatusPayload:
				payload = f.Payload
			case framing.StatusError:
				if e, perr := framing.ParseFailure(f); perr == nil {
					failure = &e
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("stream translation: %w", err)
		}
		if failure != nil {
			return fmt.Errorf("translation failed at stage %s: %s", failure.Stage, failure.Error)
		}
		if payload == nil {
			return errors.New("server closed the stream without a result")
		}

		if submitOut == "" {
			log.Debugf("Discarding %d byte result (no --out given)", len(payload))
			return nil
		}
		if err := os.WriteFile(submitOut, payload, 0o644); err != nil {
			return fmt.Errorf("write result '%s': %w", submitOut, err)
		}
		fmt.Printf("Result written to %s\n", submitOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitOut, "out", "o", "", "File to write the result to")
	submitCmd.Flags().StringVarP(&submitFormat, "format", "f", "png", "Result format: png or jpg")
	submitCmd.Flags().StringP("workflow", "w", "normal", "Workflow: normal, export_original, save_json, load_text, upscale_only or colorize_only")
	submitCmd.Flags().String("config-json", "", "Path to a JSON translation config")
	addServerFlag(submitCmd)
}
