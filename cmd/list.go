package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/JakeFAU/guide-quotes/internal/harvest"
	"github.com/JakeFAU/guide-quotes/internal/server"
)

const maxQuoteWidth = 80

func newListCmd() *cobra.Command {
	var withURL bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print stored quotes as a table",
		RunE: withApp(func(cmd *cobra.Command, appInstance *server.App) error {
			records, err := appInstance.Store().ListAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("list quotes: %w", err)
			}
			renderQuotes(cmd.OutOrStdout(), records, withURL)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&withURL, "urls", false, "include chapter URLs")
	return cmd
}

func renderQuotes(out io.Writer, records []harvest.ChapterRecord, withURL bool) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)

	header := table.Row{"#", "Chapter", "Quote"}
	if withURL {
		header = append(header, "URL")
	}
	t.AppendHeader(header)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Quote", WidthMax: maxQuoteWidth, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, rec := range records {
		row := table.Row{i + 1, rec.Title, rec.Excerpt}
		if withURL {
			row = append(row, rec.URL)
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "Total", len(records)})
	t.Render()
}
