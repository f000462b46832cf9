package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/notetaker/internal/platform"
	"github.com/aretw0/notetaker/pkg/core"
)

var (
	setAPIKey     string
	setUILanguage string
	setAILanguage string
	setTheme      string
	setProfile    string
)

// settingsCmd represents the settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the notebook settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			s, err := app.Settings(ctx)
			if err != nil {
				return err
			}
			renderSettings(cmd, s)
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the settings",
	Long:  `Change the settings given as flags. Unknown themes and profiles fall back to the defaults.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			s, err := app.Settings(ctx)
			if err != nil {
				return err
			}
			applySettingsFlags(cmd, &s)
			if s, err = app.SaveSettings(ctx, s); err != nil {
				return err
			}
			renderSettings(cmd, s)
			return nil
		})
	},
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:     "init",
	Aliases: []string{"onboard"},
	Short:   "Create a notebook and complete the first run",
	Long: `Create the notebook at --path if needed, save the settings given as
flags and, on the first run, add a welcome note and the prebuilt templates.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *platform.App) error {
			done, err := app.Onboarded(ctx)
			if err != nil {
				return err
			}
			s, err := app.Settings(ctx)
			if err != nil {
				return err
			}
			applySettingsFlags(cmd, &s)
			if _, err := app.Onboard(ctx, s); err != nil {
				return err
			}
			if done {
				fmt.Fprintf(cmd.OutOrStdout(), "Notebook at %s already initialized, settings saved.\n", cfg.Store.Path)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Notebook initialized at %s with %d templates.\n", cfg.Store.Path, len(app.Templates()))
			return nil
		})
	},
}

func applySettingsFlags(cmd *cobra.Command, s *core.Settings) {
	flags := cmd.Flags()
	if flags.Changed("api-key") {
		s.APIKey = setAPIKey
	}
	if flags.Changed("ui-language") {
		s.UILanguage = setUILanguage
	}
	if flags.Changed("ai-language") {
		s.AILanguage = setAILanguage
	}
	if flags.Changed("theme") {
		s.Theme = setTheme
	}
	if flags.Changed("profile") {
		s.PerformanceProfile = setProfile
	}
}

func renderSettings(cmd *cobra.Command, s core.Settings) {
	key := "not set"
	if s.HasCredential() {
		key = "set"
	}
	out := cmd.OutOrStdout()
	for _, row := range [][2]string{
		{"ui language", s.UILanguage},
		{"ai language", s.AILanguage},
		{"theme", s.Theme},
		{"profile", s.PerformanceProfile},
		{"api key", key},
	} {
		fmt.Fprintf(out, "%s %s\n", labelStyle.Render(row[0]+":"), row[1])
	}
}

func settingsFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&setAPIKey, "api-key", "", "Credential of the enrichment provider")
	cmd.Flags().StringVar(&setUILanguage, "ui-language", "", "Language of the interface, en or pt")
	cmd.Flags().StringVar(&setAILanguage, "ai-language", "", "Language the analysis is written in")
	cmd.Flags().StringVar(&setTheme, "theme", "", "dark or light")
	cmd.Flags().StringVar(&setProfile, "profile", "", "max-quality, balanced or fast")
}

func init() {
	settingsFlags(settingsSetCmd)
	settingsFlags(initCmd)

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(settingsCmd, initCmd)
}
