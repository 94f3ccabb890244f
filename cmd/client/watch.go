package main

import (
	"encoding/json"
	"fmt"
	"io"

	"keeper-notes/internal/service/notes"
	"keeper-notes/internal/session"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// watchEvent строка вывода watch
type watchEvent struct {
	Source string `json:"source"`
	Kind   string `json:"kind"`
	NoteID string `json:"noteId,omitempty"`
	User   string `json:"user,omitempty"`
	Notes  int    `json:"notes"`
}

func newWatchCmd(a *app) *cobra.Command {
	var tokens bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep the note cache in sync with the session and print changes",
		Long: `Watch binds the note cache to the session: signing in from another
terminal loads the notes, signing out clears them. With --tokens the token
file is watched for changes made by other keeper processes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("tokens") {
				tokens = a.cfg.Session.WatchTokenFile
			}

			changes := a.store.Subscribe()
			sessions := a.session.Subscribe()
			defer a.session.Unsubscribe(sessions)

			g, ctx := errgroup.WithContext(cmd.Context())
			a.store.Bind(ctx, a.session)

			if tokens {
				g.Go(func() error {
					if err := a.session.WatchTokens(ctx); err != nil {
						a.log.Warn().Err(err).Msg("token file watch stopped")
					}
					return nil
				})
			}

			out := cmd.OutOrStdout()
			g.Go(func() error {
				for {
					select {
					case <-ctx.Done():
						return nil
					case ev, ok := <-changes:
						if !ok {
							return nil
						}
						if err := a.printWatch(out, watchEvent{
							Source: "notes", Kind: ev.Kind.String(), NoteID: ev.NoteID, Notes: len(a.store.All()),
						}); err != nil {
							return err
						}
					case ev, ok := <-sessions:
						if !ok {
							return nil
						}
						if err := a.printWatch(out, sessionWatchEvent(ev, a.store)); err != nil {
							return err
						}
					}
				}
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&tokens, "tokens", false, "Watch the token file (default from session.watch_token_file)")
	return cmd
}

func sessionWatchEvent(ev session.Event, store *notes.Store) watchEvent {
	return watchEvent{Source: "session", Kind: ev.Kind.String(), User: ev.User.Identity(), Notes: len(store.All())}
}

func (a *app) printWatch(w io.Writer, ev watchEvent) error {
	if a.output == formatJSON {
		return json.NewEncoder(w).Encode(ev)
	}
	line := ev.Source + " " + ev.Kind
	switch {
	case ev.NoteID != "":
		line += " " + ev.NoteID
	case ev.User != "":
		line += " " + ev.User
	}
	_, err := fmt.Fprintf(w, "%s (%d notes)\n", line, ev.Notes)
	return err
}
