package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aluiziolira/go-promotores/client"
	"github.com/aluiziolira/go-promotores/ui"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

var searchQR string

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1e5b32", Dark: "#50fa7b"}).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#dc322f", Dark: "#ff5555"}).Bold(true)
	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

var searchCmd = &cobra.Command{
	Use:   "search [op]",
	Short: "Search one OP and print the results",
	Long: `Search sends one OP to the API and prints the result table. With
--qr the OP is read from a QR code image instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchQR, "qr", "", "Image with a QR code holding the OP")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && searchQR == "" {
		return errors.New("an OP argument or --qr image is required")
	}
	if err := validConfig(); err != nil {
		return err
	}
	api, err := client.New(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app := ui.NewApp(ui.Options{
		Searcher: api,
		// --qr images are decoded by the server.
		Decoder: api,
	})

	var runErr error
	if searchQR != "" {
		f, err := os.Open(searchQR)
		if err != nil {
			return fmt.Errorf("open qr image: %w", err)
		}
		runErr = app.ScanImage(ctx, f)
		f.Close()
	} else {
		app.SetInput(args[0])
		runErr = app.Search(ctx)
	}
	app.Wait()

	printState(cmd.OutOrStdout(), app.State())
	return runErr
}

func printState(w io.Writer, st ui.State) {
	if st.Alert.Message != "" {
		style := failStyle
		if st.Alert.Kind == ui.AlertSuccess {
			style = okStyle
		}
		fmt.Fprintln(w, style.Render(st.Alert.Message))
	}
	if !st.Table.HasData() {
		return
	}

	rows := make([][]string, len(st.Table.Rows))
	for i, r := range st.Table.Rows {
		texts := r.Texts()
		// Terminals cannot click the actions, so show the link itself.
		texts[len(texts)-1] = r.Link()
		rows[i] = texts
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(_, _ int) lipgloss.Style { return cellStyle }).
		Headers(st.Table.Header...).
		Rows(rows...)
	fmt.Fprintln(w, t.Render())
}
