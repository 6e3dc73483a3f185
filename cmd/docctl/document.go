package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process <doc-id>",
	Short: "Run the processing pipeline for a document synchronously",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var askCmd = &cobra.Command{
	Use:   "ask <doc-id> <question>",
	Short: "Ask a question about a processed document",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAsk,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the latest documents",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove stored uploads older than a threshold",
	Args:  cobra.NoArgs,
	RunE:  runCleanup,
}

var (
	listLimit        int
	cleanupOlderThan time.Duration
)

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "number of documents to show (default from config)")
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 24*time.Hour, "delete uploads last modified before now minus this")

	rootCmd.AddCommand(processCmd, askCmd, listCmd, cleanupCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	id := args[0]
	start := time.Now()
	procErr := docService.HandleDocument(cmd.Context(), id)

	doc, err := docService.Get(cmd.Context(), id)
	if err != nil {
		if procErr != nil {
			return procErr
		}
		return err
	}
	cmd.Printf("Document: %s (%s)\n", doc.DisplayName, doc.ID)
	cmd.Printf("Status:   %s\n", doc.StatusDisplay)
	cmd.Printf("Elapsed:  %s\n", time.Since(start).Round(time.Millisecond))
	if procErr != nil {
		return fmt.Errorf("processing failed: %w", procErr)
	}
	if doc.Title != "" {
		cmd.Printf("Title:    %s\n", doc.Title)
	}
	cmd.Println()
	cmd.Println(doc.Summary)
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	answer, err := docService.Ask(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	cmd.Println(answer)
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	docs, err := docService.List(cmd.Context(), listLimit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tNAME\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.VariantDisplay, d.StatusDisplay, d.DisplayName, d.CreatedAt.Format(time.DateTime))
	}
	return w.Flush()
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if err := docService.Cleanup(cmd.Context(), cleanupOlderThan); err != nil {
		return err
	}
	cmd.Printf("Removed uploads older than %s\n", cleanupOlderThan)
	return nil
}
