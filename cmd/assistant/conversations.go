package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/edu-assistant/internal/export"
	"github.com/xaenox/edu-assistant/internal/models"
)

func newConversationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage saved conversations",
	}

	cmd.AddCommand(newConversationsListCmd(a))
	cmd.AddCommand(newConversationsShowCmd(a))
	cmd.AddCommand(newConversationsDeleteCmd(a))
	cmd.AddCommand(newConversationsRenameCmd(a))
	cmd.AddCommand(newConversationsExportCmd(a))
	return cmd
}

func parseConversationID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", arg)
	}
	return id, nil
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD or RFC 3339", value)
}

func newConversationsListCmd(a *app) *cobra.Command {
	var (
		filter   models.ConversationFilter
		typeName string
		from, to string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your conversations, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if typeName != "" {
				if filter.Type, err = models.ParseMessageType(typeName); err != nil {
					return err
				}
			}
			if filter.From, err = parseDate(from); err != nil {
				return err
			}
			if filter.To, err = parseDate(to); err != nil {
				return err
			}

			page, err := a.session.ListConversations(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(page.Conversations) == 0 {
				fmt.Fprintln(out, "no conversations")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tTITLE\tUPDATED")
			for _, conv := range page.Conversations {
				title := conv.Title
				if conv.ID == a.session.CurrentConversationID() {
					title += " *"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", conv.ID, conv.ConversationType, title,
					conv.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d-%d of %d\n", page.Skip+1, page.Skip+len(page.Conversations), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "filter by title")
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "filter by type: question, quiz or task")
	cmd.Flags().IntVar(&filter.Skip, "skip", 0, "number of conversations to skip")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&from, "from", "", "created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "created on or before (YYYY-MM-DD)")
	return cmd
}

func newConversationsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			conv, err := a.client.GetConversation(cmd.Context(), id)
			if err != nil {
				return err
			}

			dark, _ := a.session.Settings().DarkMode(cmd.Context())
			st := newStyles(cmd.OutOrStdout(), dark)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "#%d %s [%s]\n\n", conv.ID, conv.Title, conv.ConversationType)
			for _, m := range export.StoredToMessages(conv.Messages, conv.ConversationType) {
				fmt.Fprintln(out, st.message(m))
			}
			return nil
		},
	}
}

func newConversationsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			if err := a.session.DeleteConversation(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted conversation %d\n", id)
			return nil
		},
	}
}

func newConversationsRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := a.session.RenameConversation(cmd.Context(), id, title); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed conversation %d to %q\n", id, title)
			return nil
		},
	}
}

func newConversationsExportCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Save a conversation snapshot to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseConversationID(args[0])
			if err != nil {
				return err
			}
			path, err := a.exporter.ExportSnapshot(cmd.Context(), a.client, id, export.Format(format))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatJSON), "file format: json, xlsx or yaml")
	return cmd
}

func newExportDialogCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export-dialog [id]",
		Short: "Save a dialog as a turn-by-turn spreadsheet",
		Long:  "Saves a conversation as dialog_<n>_<date>.xlsx. Without an id the current conversation is used.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.session.CurrentConversationID()
			if len(args) == 1 {
				var err error
				if id, err = parseConversationID(args[0]); err != nil {
					return err
				}
			}
			if id == 0 {
				return fmt.Errorf("no current conversation, pass an id")
			}

			conv, err := a.client.GetConversation(cmd.Context(), id)
			if err != nil {
				return err
			}
			path, err := a.exporter.ExportDialog(cmd.Context(), export.StoredToMessages(conv.Messages, conv.ConversationType))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", path)
			return nil
		},
	}
}
