package main

import (
	"fmt"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
)

var chunksCmd = &cobra.Command{
	Use:   "chunks <doc-id>",
	Short: "Show the stored chunks of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Show the most recent LLM calls",
	Args:  cobra.NoArgs,
	RunE:  runCalls,
}

var callsLimit int

func init() {
	callsCmd.Flags().IntVar(&callsLimit, "limit", 20, "number of calls to show")

	rootCmd.AddCommand(chunksCmd, callsCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
	chunks, err := docService.Chunks(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		cmd.Println("No chunks.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tCHARS\tTEXT")
	for _, c := range chunks {
		fmt.Fprintf(w, "%d\t%d\t%s\n", c.Position, utf8.RuneCountInString(c.Text), oneLine(c.Text))
	}
	return w.Flush()
}

func runCalls(cmd *cobra.Command, _ []string) error {
	calls, err := docService.Calls(cmd.Context(), callsLimit)
	if err != nil {
		return err
	}
	if len(calls) == 0 {
		cmd.Println("No LLM calls recorded.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tMODEL\tOK\tRETRIED\tRESULT")
	for _, c := range calls {
		fmt.Fprintf(w, "%s\t%s\t%t\t%t\t%s\n",
			c.CreatedAt.Format(time.DateTime), c.Model, c.IsSuccessful, c.IsRetried, oneLine(string(c.Result)))
	}
	return w.Flush()
}
