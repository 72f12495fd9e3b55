package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"synthfilter/internal/format"
)

type formatRow struct {
	Name      string `json:"name"`
	PixelType string `json:"pixel_type"`
	BitCount  int    `json:"bit_count"`
	Subtype   string `json:"subtype"`
	Enabled   bool   `json:"enabled"`
}

func newFormatsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List known formats and whether they are enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var entries []formatRow
			for _, name := range format.Names() {
				def, err := format.Lookup(name)
				if err != nil {
					return err
				}
				entries = append(entries, formatRow{
					Name:      def.Name,
					PixelType: string(def.PixelType),
					BitCount:  def.BitCount,
					Subtype:   def.Subtype.String(),
					Enabled:   cfg.IsInputFormatEnabled(def.Name),
				})
			}
			if asJSON {
				return writeJSON(cmd, entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Name, e.PixelType, strconv.Itoa(e.BitCount), e.Subtype, yesNo(e.Enabled)})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]string{"Format", "Pixel type", "Bits", "Subtype", "Enabled"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	jsonFlag(cmd, &asJSON, "")
	return cmd
}
