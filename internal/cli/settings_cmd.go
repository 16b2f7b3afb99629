package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"upscale-viewer/internal/settings"
	"upscale-viewer/internal/startup"
)

func newSettingsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the settings file",
	}
	cmd.AddCommand(newSettingsShowCmd(root))
	cmd.AddCommand(newSettingsSetCmd(root))
	cmd.AddCommand(newSettingsPathCmd(root))
	return cmd
}

func settingsPath(root *rootOptions) string {
	if root.settingsPath != "" {
		return root.settingsPath
	}
	return startup.DefaultSettingsPath()
}

func newSettingsShowCmd(root *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings file contents",
		Long: `Print the settings as stored, with defaults filled in for missing keys.
Environment overrides are not applied.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := settingsPath(root)
			s, err := settings.Load(path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			// Marshal picks the encoding from the extension.
			target := path
			switch strings.ToLower(format) {
			case "":
			case "json":
				target = settings.DefaultFile
			case "yaml", "yml":
				target = "settings.yaml"
			default:
				return fmt.Errorf("unknown format %q", format)
			}

			data, err := settings.Marshal(target, s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "Output format: json or yaml (default from the file extension)")
	return cmd
}

func newSettingsSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting and save the file",
		Long:  "Change one setting and save the file. Keys: " + strings.Join(settings.Keys, ", "),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := settings.Open(settingsPath(root))
			updated, err := store.Update(func(s *settings.Settings) error {
				return s.Set(args[0], args[1])
			})
			if err != nil {
				return err
			}
			data, err := settings.Marshal(store.Path(), updated)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved %s\n", store.Path())
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newSettingsPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the settings file location",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), settingsPath(root))
		},
	}
}
