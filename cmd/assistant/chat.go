package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xaenox/edu-assistant/internal/models"
	"github.com/xaenox/edu-assistant/internal/session"
	"golang.org/x/term"
)

const chatHelp = `Commands:
  /question [text]  question mode
  /quiz [topic]     quiz mode
  /task [topic]     task mode
  /new              start over
  /open <id>        continue a saved conversation
  /export           save this dialog as a spreadsheet
  /quit             leave`

func newChatCmd(a *app) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Long:  "Starts an interactive chat. Pick a mode with /question, /quiz or /task and type your message.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mode != "" {
				t, err := models.ParseMessageType(mode)
				if err != nil {
					return err
				}
				a.session.SetCurrentType(t)
			}
			return runChat(cmd, a)
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "initial mode: question, quiz or task")
	return cmd
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runChat(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	in := cmd.InOrStdin()
	out := cmd.OutOrStdout()
	interactive := isTerminal(in)

	dark, err := a.session.Settings().DarkMode(ctx)
	if err != nil {
		dark = false
	}
	st := newStyles(out, dark)

	if interactive {
		unsubscribe := a.session.Subscribe(func(ev session.Event) {
			if ev.Kind == session.EventLoadingChanged && ev.Loading {
				fmt.Fprintln(out, st.muted.Render("thinking..."))
			}
		})
		defer unsubscribe()
		fmt.Fprintln(out, st.muted.Render(chatHelp))
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Fprintf(out, "[%s] > ", modeLabel(a.session.CurrentType()))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := handleChatCommand(cmd, a, st, line); quit {
				return nil
			}
			continue
		}
		sendChat(cmd, a, st, line)
	}
}

func modeLabel(t models.MessageType) string {
	if t == "" {
		return "no mode"
	}
	return string(t)
}

func sendChat(cmd *cobra.Command, a *app, st styles, text string) {
	out := cmd.OutOrStdout()
	reply, err := a.session.Send(cmd.Context(), text)
	switch {
	case err == nil:
		fmt.Fprintln(out, st.message(reply))
	case errors.Is(err, session.ErrNoType):
		fmt.Fprintln(out, st.muted.Render("Choose a mode first: /question, /quiz or /task."))
	case errors.Is(err, session.ErrBusy):
		fmt.Fprintln(out, st.muted.Render("Still working on the previous message."))
	default:
		fmt.Fprintf(out, "error: %v\n", err)
	}
}

// handleChatCommand runs one slash command and reports whether to quit.
func handleChatCommand(cmd *cobra.Command, a *app, st styles, line string) bool {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	name, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	args = strings.TrimSpace(args)

	switch name {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(out, chatHelp)
	case "question", "quiz", "task":
		a.session.SetCurrentType(models.MessageType(name))
		if args != "" {
			sendChat(cmd, a, st, args)
		} else {
			fmt.Fprintf(out, "mode: %s\n", name)
		}
	case "new":
		a.session.ClearMessages()
		fmt.Fprintln(out, "started a new conversation")
	case "open":
		id, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			fmt.Fprintln(out, "usage: /open <id>")
			return false
		}
		if err := a.session.LoadConversation(ctx, id); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		for _, m := range a.session.Messages() {
			fmt.Fprintln(out, st.message(m))
		}
		fmt.Fprintf(out, "opened conversation %d (%s)\n", id, a.session.CurrentType())
	case "export":
		messages := a.session.Messages()
		if len(messages) == 0 {
			fmt.Fprintln(out, "nothing to export")
			return false
		}
		path, err := a.exporter.ExportDialog(ctx, messages)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(out, "exported to %s\n", path)
	default:
		fmt.Fprintf(out, "unknown command /%s, try /help\n", name)
	}
	return false
}
