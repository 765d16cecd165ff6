package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpt-tools/cptgest/internal/results"
)

var convertOutput string

var convertCmd = &cobra.Command{
	Use:   "convert <file.jsonl>",
	Short: "Convert extracted JSONL records to CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		outPath := convertOutput
		if outPath == "" {
			outPath = strings.TrimSuffix(args[0], ".jsonl") + ".csv"
		}
		out, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()

		return results.ConvertJSONLToCSV(in, out)
	},
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output CSV path (default: input with .csv extension)")

	rootCmd.AddCommand(convertCmd)
}
