package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/contractd/contractd/pkg/cli/internal/output"
	"github.com/contractd/contractd/pkg/datacontract"
)

// FormatsOutput represents JSON output format
type FormatsOutput struct {
	Formats  []FormatInfo `json:"formats"`
	Dialects []string     `json:"dialects"`
}

// FormatInfo describes one export format.
type FormatInfo struct {
	Name        string `json:"name"`
	SingleModel bool   `json:"singleModel"`
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the export formats and SQL dialects",
	Long: `List the formats accepted by POST /export?format=... and the SQL
dialects the sql and sql-query formats can target.

Formats marked "one" need a single model, selected with model=... when
the contract defines several.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := listFormats()
		w := cmd.OutOrStdout()
		if jsonOutput {
			return output.JSON(w, out)
		}

		tw := output.Table(w)
		fmt.Fprintln(tw, "FORMAT\tMODELS")
		for _, f := range out.Formats {
			models := "all"
			if f.SingleModel {
				models = "one"
			}
			fmt.Fprintf(tw, "%s\t%s\n", f.Name, models)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "SQL dialects: %s\n", strings.Join(out.Dialects, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func listFormats() FormatsOutput {
	eng := datacontract.New()
	var out FormatsOutput
	for _, f := range eng.Formats() {
		out.Formats = append(out.Formats, FormatInfo{
			Name:        string(f),
			SingleModel: datacontract.NeedsSingleModel(f),
		})
	}
	out.Dialects = datacontract.DialectNames()
	return out
}
