package main

import (
	"context"
	"fmt"
	"path/filepath"

	"keeper-notes/internal/model"
	"keeper-notes/internal/staging"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// loadNotes загружает заметки текущего пользователя в кэш
func (a *app) loadNotes(ctx context.Context) error {
	if err := a.requireSession(); err != nil {
		return err
	}
	return userError(a.store.Refresh(ctx))
}

// lookupNote загружает заметки и возвращает заметку id
func (a *app) lookupNote(ctx context.Context, id string) (model.Note, error) {
	if err := a.loadNotes(ctx); err != nil {
		return model.Note{}, err
	}
	note, ok := a.store.Lookup(id)
	if !ok {
		return model.Note{}, fmt.Errorf("note %q not found", id)
	}
	return note, nil
}

// stageImages добавляет в форму файлы изображений
func (a *app) stageImages(form *staging.Form, paths []string) error {
	for _, path := range paths {
		if err := a.stageImage(form, path); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) stageImage(form *staging.Form, path string) error {
	f, err := a.fs.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	id, err := form.AddImage(filepath.Base(path), info.Size(), f)
	if err != nil {
		return err
	}
	a.log.Debug().Str("path", path).Str("image_id", id).Msg("image added")
	return nil
}

// readDrawing читает файл рисунка и кодирует его в data URL
func (a *app) readDrawing(path string) (string, error) {
	data, err := afero.ReadFile(a.fs, path)
	if err != nil {
		return "", err
	}
	return staging.DataURL(filepath.Base(path), data)
}

func newListCmd(a *app) *cobra.Command {
	var (
		search    string
		favorites bool
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadNotes(cmd.Context()); err != nil {
				return err
			}
			a.store.SetSearchTerm(search)
			a.store.SetFilterFavorites(favorites)
			return printNotes(cmd.OutOrStdout(), a.output, a.store.Visible())
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "Show notes whose title or text contains the term")
	cmd.Flags().BoolVarP(&favorites, "favorites", "f", false, "Show favorite notes only")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, err := a.lookupNote(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printNote(cmd.OutOrStdout(), a.output, note)
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		title, content, drawing string
		images                  []string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}

			form := staging.NewForm(a.spool, staging.WithLimits(a.limits()), staging.WithLogger(a.log))
			defer form.Cancel()

			form.SetTitle(title)
			form.SetContent(content)
			if drawing != "" {
				url, err := a.readDrawing(drawing)
				if err != nil {
					return err
				}
				form.SetDrawing(url)
			}
			if err := a.stageImages(form, images); err != nil {
				return err
			}

			note, err := form.SubmitCreate(cmd.Context(), a.store)
			if err != nil {
				return userError(err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Created note %s\n", note.ID)
			return err
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Note title")
	cmd.Flags().StringVar(&content, "content", "", "Note text (HTML allowed)")
	cmd.Flags().StringSliceVarP(&images, "image", "i", nil, "Image file to attach (repeatable)")
	cmd.Flags().StringVar(&drawing, "drawing", "", "Drawing image file")
	return cmd
}

func newEditCmd(a *app) *cobra.Command {
	var (
		title, content, drawing string
		images, removeImages    []string
		clearDrawing            bool
	)
	cmd := &cobra.Command{
		Use:   "edit ID",
		Short: "Edit a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note, err := a.lookupNote(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			form := staging.EditForm(note, a.spool, staging.WithLimits(a.limits()), staging.WithLogger(a.log))
			defer form.Cancel()

			if cmd.Flags().Changed("title") {
				form.SetTitle(title)
			}
			if cmd.Flags().Changed("content") {
				form.SetContent(content)
			}
			switch {
			case clearDrawing:
				form.ClearDrawing()
			case drawing != "":
				url, err := a.readDrawing(drawing)
				if err != nil {
					return err
				}
				form.SetDrawing(url)
			}
			for _, id := range removeImages {
				if err := form.RemoveImage(id); err != nil {
					return fmt.Errorf("image %q: %w", id, err)
				}
			}
			if err := a.stageImages(form, images); err != nil {
				return err
			}

			updated, err := form.SubmitUpdate(cmd.Context(), a.store, note.ID)
			if err != nil {
				return userError(err)
			}
			return printNote(cmd.OutOrStdout(), a.output, updated)
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "New title")
	cmd.Flags().StringVar(&content, "content", "", "New text (HTML allowed)")
	cmd.Flags().StringSliceVarP(&images, "image", "i", nil, "Image file to attach (repeatable)")
	cmd.Flags().StringSliceVar(&removeImages, "remove-image", nil, "ID of an attached image to remove (repeatable)")
	cmd.Flags().StringVar(&drawing, "drawing", "", "Replace the drawing with an image file")
	cmd.Flags().BoolVar(&clearDrawing, "clear-drawing", false, "Remove the drawing")
	cmd.MarkFlagsMutuallyExclusive("drawing", "clear-drawing")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			if err := a.store.Delete(cmd.Context(), args[0]); err != nil {
				return userError(err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s\n", args[0])
			return err
		},
	}
}

func newFavoriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "favorite ID",
		Aliases: []string{"fav"},
		Short:   "Toggle the favorite flag of a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			fav, err := a.store.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			state := "removed from favorites"
			if fav {
				state = "added to favorites"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Note %s %s\n", args[0], state)
			return err
		},
	}
}

func newShareCmd(a *app) *cobra.Command {
	var visibility string
	cmd := &cobra.Command{
		Use:   "share ID",
		Short: "Share a note by link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}
			res, err := a.store.Share(cmd.Context(), args[0], model.ShareOptions{Type: visibility})
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			if res.URL != "" {
				_, err = fmt.Fprintln(out, res.URL)
				return err
			}
			msg := res.Message
			if msg == "" {
				msg = "Note shared"
			}
			_, err = fmt.Fprintln(out, msg)
			return err
		},
	}
	cmd.Flags().StringVar(&visibility, "type", model.ShareVisibilityPublic, "Share type")
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show note statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadNotes(cmd.Context()); err != nil {
				return err
			}
			return printStats(cmd.OutOrStdout(), a.output, a.store.Stats())
		},
	}
}
