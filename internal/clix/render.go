package clix

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"mtserver/internal/framing"
	"mtserver/internal/models"
)

// RenderFrame prints a progress or error frame as one line. Payload frames
// are summarized by size.
func RenderFrame(w io.Writer, f framing.Frame) {
	switch f.Status {
	case framing.StatusProgress:
		p, err := framing.ParseProgress(f)
		if err != nil {
			fmt.Fprintf(w, "%s %v\n", color.YellowString("[?]"), err)
			return
		}
		switch {
		case p.TaskID != "":
			fmt.Fprintf(w, "%s task %s\n", color.CyanString("[%s]", p.Stage), p.TaskID)
		case p.Stage == string(models.StageComplete):
			fmt.Fprintf(w, "%s %s\n", color.GreenString("[%s]", p.Stage), p.Message)
		default:
			fmt.Fprintf(w, "%s %s\n", color.CyanString("[%s]", p.Stage), p.Message)
		}
	case framing.StatusPayload:
		fmt.Fprintf(w, "%s received %d bytes\n", color.GreenString("[result]"), len(f.Payload))
	case framing.StatusError:
		e, err := framing.ParseFailure(f)
		if err != nil {
			fmt.Fprintf(w, "%s %v\n", color.RedString("[error]"), err)
			return
		}
		fmt.Fprintf(w, "%s %s\n", color.RedString("[%s]", e.Stage), e.Error)
	}
}

// RenderTasks prints the active task table.
func RenderTasks(w io.Writer, tasks []models.Task) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Task ID", "Workflow", "Cancelled", "Age"})
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, t := range tasks {
		cancelled := "no"
		if t.Cancelled {
			cancelled = color.YellowString("yes")
		}
		table.Append([]string{
			t.ID,
			t.Workflow.String(),
			cancelled,
			time.Since(t.CreatedAt).Truncate(time.Second).String(),
		})
	}

	table.Render()
}
