package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cpt-tools/cptgest/internal/epub"
)

var pagesStart int
var pagesEnd int
var pagesRaw bool
var pagesContext bool

var pagesCmd = &cobra.Command{
	Use:   "pages <file.epub>",
	Short: "Print the content of a page range",
	Long: `Print the content spanning a range of printed pages, located via the
document's page anchors. With --context, print the heading hierarchy
active at the start page instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nav, err := epub.Open(args[0])
		if err != nil {
			return err
		}
		defer nav.Close()

		start, end := pagesStart, pagesEnd
		if start <= 0 {
			start = 1
		}
		if end <= 0 {
			end = start
		}

		if pagesContext {
			hctx, err := nav.GetHierarchyContext(start)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(hctx)
		}

		markup, err := nav.GetContentByPageRange(start, end)
		if err != nil {
			return err
		}
		if pagesRaw {
			fmt.Fprintln(cmd.OutOrStdout(), markup)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(epub.Text(markup)))
		return nil
	},
}

func init() {
	pagesCmd.Flags().IntVar(&pagesStart, "start", 0, "First page of the range")
	pagesCmd.Flags().IntVar(&pagesEnd, "end", 0, "Last page of the range (defaults to start)")
	pagesCmd.Flags().BoolVar(&pagesRaw, "raw", false, "Print raw markup instead of flattened text")
	pagesCmd.Flags().BoolVar(&pagesContext, "context", false, "Print the heading hierarchy at the start page")

	rootCmd.AddCommand(pagesCmd)
}
