package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/xaenox/edu-assistant/internal/models"
)

var (
	lightUser      = lipgloss.Color("#101F38")
	lightAssistant = lipgloss.Color("#2E7D32")
	darkUser       = lipgloss.Color("#8BC34A")
	darkAssistant  = lipgloss.Color("#90CAF9")
	mutedColor     = lipgloss.Color("#9E9E9E")
)

// styles renders transcript lines for one output and color mode.
type styles struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	muted     lipgloss.Style
}

func newStyles(out io.Writer, dark bool) styles {
	r := lipgloss.NewRenderer(out)
	r.SetHasDarkBackground(dark)

	userColor, assistantColor := lightUser, lightAssistant
	if dark {
		userColor, assistantColor = darkUser, darkAssistant
	}
	return styles{
		user:      r.NewStyle().Bold(true).Foreground(userColor),
		assistant: r.NewStyle().Foreground(assistantColor),
		muted:     r.NewStyle().Foreground(mutedColor),
	}
}

func (s styles) message(m models.Message) string {
	if m.Role == models.RoleUser {
		return s.user.Render("you:") + " " + m.Content
	}
	return s.assistant.Render("assistant:") + " " + m.Content
}

func newThemeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "theme [on|off]",
		Short:     "Show or set dark mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := a.session.Settings()
			if len(args) == 1 {
				var dark bool
				switch args[0] {
				case "on":
					dark = true
				case "off":
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
				if err := settings.SetDarkMode(cmd.Context(), dark); err != nil {
					return err
				}
			}

			dark, err := settings.DarkMode(cmd.Context())
			if err != nil {
				return err
			}
			state := "off"
			if dark {
				state = "on"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dark mode: %s\n", state)
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile, owner id and current conversation",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "profile: %s\n", a.session.Settings().Profile())
			fmt.Fprintf(out, "owner: %s\n", a.session.OwnerID())
			if id := a.session.CurrentConversationID(); id != 0 {
				fmt.Fprintf(out, "conversation: %d\n", id)
			} else {
				fmt.Fprintln(out, "conversation: none")
			}
		},
	}
}
