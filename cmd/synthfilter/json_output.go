package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"synthfilter/internal/preflight"
)

// jsonFlag registers the shared --json switch on cmd.
func jsonFlag(cmd *cobra.Command, target *bool, usage string) {
	if usage == "" {
		usage = "Output as JSON"
	}
	cmd.Flags().BoolVar(target, "json", false, usage)
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type preflightCheckJSON struct {
	Name     string `json:"name"`
	Result   string `json:"result"`
	Required bool   `json:"required"`
	Detail   string `json:"detail,omitempty"`
}

type preflightReportJSON struct {
	Checks   []preflightCheckJSON `json:"checks"`
	Passed   int                  `json:"passed"`
	Warnings int                  `json:"warnings"`
	Failed   int                  `json:"failed"`
}

func preflightReport(results []preflight.Result) preflightReportJSON {
	report := preflightReportJSON{Checks: make([]preflightCheckJSON, 0, len(results))}
	for _, r := range results {
		kind := statusKindForResult(r)
		switch kind {
		case statusOK:
			report.Passed++
		case statusWarn:
			report.Warnings++
		default:
			report.Failed++
		}
		report.Checks = append(report.Checks, preflightCheckJSON{
			Name:     r.Name,
			Result:   kind.String(),
			Required: !r.Optional,
			Detail:   r.Detail,
		})
	}
	return report
}
