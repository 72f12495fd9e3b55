package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"synthfilter/internal/bridge"
	"synthfilter/internal/format"
	"synthfilter/internal/logging"
)

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceFormat string
		outputFormat string
		width        int
		height       int
		avg          int64
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Print the output descriptor the script produces for a source",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			mt, err := sourceMediaType(cfg, sourceFormat, width, height, avg)
			if err != nil {
				return err
			}
			handle, err := bridge.NewHandle(bridge.Options{
				Module:        cfg.Engine,
				ScriptPath:    cfg.ScriptPath,
				OutputThreads: cfg.OutputThreads,
				Logger:        logging.NewNop(),
			})
			if err != nil {
				return err
			}
			defer handle.Close()

			if err := handle.Reload(mt, false); err != nil {
				if errors.Is(err, bridge.ErrDisconnected) {
					fmt.Fprintln(cmd.OutOrStdout(), "Script disconnected the filter; no output descriptor")
					return nil
				}
				return err
			}
			name := strings.ToUpper(strings.TrimSpace(outputFormat))
			if name == "" {
				if name, err = negotiateOutputFormat(cfg, handle.ScriptPixelType()); err != nil {
					return err
				}
			}
			out, err := handle.GenerateMediaType(name, mt)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, out)
			}
			stdout := cmd.OutOrStdout()
			if text, ok := handle.ErrorString(); ok {
				fmt.Fprintf(stdout, "Script error: %s\n", text)
			}
			fmt.Fprint(stdout, renderTable(
				[]string{"Field", "Source", "Output"},
				descriptorRows(mt, out),
				[]columnAlignment{alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sourceFormat, "format", "f", "NV12", "Source format name")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "Output format (default: negotiated)")
	cmd.Flags().IntVar(&width, "width", 720, "Source width")
	cmd.Flags().IntVar(&height, "height", 480, "Source height")
	cmd.Flags().Int64Var(&avg, "avg-time-per-frame", 400000, "Source frame duration in 100ns units")
	jsonFlag(cmd, &asJSON, "Output the descriptor as JSON")
	return cmd
}

func descriptorRows(source, output format.MediaType) [][]string {
	name := func(mt format.MediaType) string {
		if def, ok := format.LookupSubtype(mt.Subtype); ok {
			return def.Name
		}
		return mt.Subtype.String()
	}
	aspect := func(mt format.MediaType) string {
		return fmt.Sprintf("%d:%d", mt.Header.PictAspectRatioX, mt.Header.PictAspectRatioY)
	}
	itoa := strconv.Itoa
	i64 := func(v int64) string { return strconv.FormatInt(v, 10) }
	return [][]string{
		{"Format", name(source), name(output)},
		{"Width", itoa(source.Header.Bitmap.Width), itoa(output.Header.Bitmap.Width)},
		{"Height", itoa(source.Header.Bitmap.Height), itoa(output.Header.Bitmap.Height)},
		{"Bit count", itoa(source.Header.Bitmap.BitCount), itoa(output.Header.Bitmap.BitCount)},
		{"Compression", fourCCString(source.Header.Bitmap.Compression), fourCCString(output.Header.Bitmap.Compression)},
		{"Image size", itoa(source.Header.Bitmap.SizeImage), itoa(output.Header.Bitmap.SizeImage)},
		{"Avg time per frame", i64(source.Header.AvgTimePerFrame), i64(output.Header.AvgTimePerFrame)},
		{"Aspect ratio", aspect(source), aspect(output)},
	}
}
