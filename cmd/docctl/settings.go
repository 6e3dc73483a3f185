package main

import (
	"github.com/spf13/cobra"

	"github.com/feichai0017/document-summarizer/internal/models"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the model settings",
	RunE:  runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update model settings",
	Long: `Update the model settings record. Only the flags given are changed;
the next pipeline run picks up the new values.`,
	RunE: runSettingsSet,
}

var (
	setModel       string
	setTemperature float64
	setMaxRetries  int
)

func init() {
	settingsSetCmd.Flags().StringVar(&setModel, "model", "", "chat model id")
	settingsSetCmd.Flags().Float64Var(&setTemperature, "temperature", 0, "sampling temperature (0..1)")
	settingsSetCmd.Flags().IntVar(&setMaxRetries, "max-retries", 0, "retry budget recorded with each call")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	s, err := docService.GetSettings(cmd.Context())
	if err != nil {
		return err
	}
	printSettings(cmd, s)
	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	s, err := docService.GetSettings(cmd.Context())
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		s.Model = setModel
	}
	if flags.Changed("temperature") {
		s.Temperature = setTemperature
	}
	if flags.Changed("max-retries") {
		s.MaxRetries = setMaxRetries
	}

	saved, err := docService.UpdateSettings(cmd.Context(), s)
	if err != nil {
		return err
	}
	cmd.Println("Settings updated.")
	printSettings(cmd, saved)
	return nil
}

func printSettings(cmd *cobra.Command, s models.ModelSettings) {
	cmd.Println("[Model]")
	cmd.Printf("  Model:       %s\n", s.Model)
	cmd.Printf("  Temperature: %.2f\n", s.Temperature)
	cmd.Printf("  Max retries: %d\n", s.MaxRetries)
	cmd.Println("[Prompts]")
	cmd.Printf("  Summary:     %s\n", oneLine(s.SummaryPrompt))
	cmd.Printf("  Map:         %s\n", oneLine(s.MapPrompt))
	cmd.Printf("  Combine:     %s\n", oneLine(s.CombinePrompt))
	cmd.Printf("  Title:       %s\n", oneLine(s.TitlePrompt))
	cmd.Printf("  Q&A system:  %s\n", oneLine(s.QASystemPrompt))
}

func oneLine(s string) string {
	if s == "" {
		return "(not set)"
	}
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r[i] = ' '
		}
	}
	if len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return string(r)
}
