package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"synthfilter/internal/config"
	"synthfilter/internal/remote"
)

func newRemoteCommands(ctx *commandContext) []*cobra.Command {
	var asJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *remote.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				renderSessionStatus(cmd, status)
				return nil
			})
		},
	}
	jsonFlag(statusCmd, &asJSON, "")

	reloadCmd := &cobra.Command{
		Use:   "reload [script]",
		Short: "Reload the script of a running session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				expanded, err := config.ExpandPath(args[0])
				if err != nil {
					return err
				}
				path = expanded
			}
			return ctx.withClient(func(client *remote.Client) error {
				resp, err := client.Reload(path)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if !resp.Reloaded {
					return fmt.Errorf("reload failed: %s", resp.Message)
				}
				fmt.Fprintf(stdout, "Reloaded %s\n", resp.ScriptPath)
				if resp.ErrorString != "" {
					fmt.Fprintf(stdout, "Script error: %s\n", resp.ErrorString)
				}
				return nil
			})
		},
	}
	return []*cobra.Command{statusCmd, reloadCmd}
}

func renderSessionStatus(cmd *cobra.Command, status *remote.StatusResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)
	for _, line := range renderSectionHeader("Session", colorize) {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout, renderStatusLine("Engine", statusInfo, status.EngineVersion, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Script", statusInfo, status.ScriptPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Source", statusInfo, status.SourcePath, colorize))
	if status.ErrorString != "" {
		fmt.Fprintln(stdout, renderStatusLine("Script error", statusError, status.ErrorString, colorize))
	} else {
		fmt.Fprintln(stdout, renderStatusLine("Script error", statusOK, "none", colorize))
	}
	fmt.Fprintln(stdout)

	video := func(v remote.VideoDescriptor) []string {
		return []string{
			fmt.Sprintf("%dx%d", v.Width, v.Height),
			v.PixelType,
			fmt.Sprintf("%d/%d (%.3f)", v.FPSNumerator, v.FPSDenominator, v.FrameRate),
		}
	}
	rows := [][]string{
		append([]string{"Source"}, video(status.Source)...),
		append([]string{"Script"}, video(status.Script)...),
	}
	fmt.Fprint(stdout, renderTable([]string{"Clip", "Size", "Pixel type", "Frame rate"}, rows, nil))

	fmt.Fprint(stdout, renderTable(
		[]string{"Figure", "Value"},
		[][]string{
			{"Source avg frame duration", strconv.FormatInt(status.SourceAvgFrameDuration, 10)},
			{"Script avg frame duration", strconv.FormatInt(status.ScriptAvgFrameDuration, 10)},
			{"Source avg frame rate", strconv.FormatInt(status.SourceAvgFrameRate, 10)},
			{"Output threads", strconv.Itoa(status.OutputThreads)},
			{"Delivered frames", strconv.Itoa(status.DeliveredFrames)},
		},
		[]columnAlignment{alignLeft, alignRight},
	))
}
