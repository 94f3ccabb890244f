package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"keeper-notes/internal/model"

	"github.com/spf13/cobra"
)

// readSecret возвращает value или первую строку из in, если value пуст
func readSecret(in io.Reader, value, name string) (string, error) {
	if value != "" {
		return value, nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return line, nil
}

// credentialsCmd общая часть signup и login
func credentialsCmd(a *app, use, short string, run func(cmd *cobra.Command, email, password string) error) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  short + ".\nWithout --password the password is read from the first line of stdin.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readSecret(cmd.InOrStdin(), password, "password")
			if err != nil {
				return err
			}
			if err := run(cmd, email, pw); err != nil {
				return userError(err)
			}
			return a.greet(cmd)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	return credentialsCmd(a, "signup", "Create an account and sign in", func(cmd *cobra.Command, email, password string) error {
		return a.session.Signup(cmd.Context(), email, password)
	})
}

func newLoginCmd(a *app) *cobra.Command {
	return credentialsCmd(a, "login", "Sign in with email and password", func(cmd *cobra.Command, email, password string) error {
		return a.session.Login(cmd.Context(), email, password)
	})
}

func newGoogleCmd(a *app) *cobra.Command {
	var credential string
	cmd := &cobra.Command{
		Use:   "google",
		Short: "Sign in with a Google ID token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := readSecret(cmd.InOrStdin(), credential, "credential")
			if err != nil {
				return err
			}
			if err := a.session.GoogleLogin(cmd.Context(), cred); err != nil {
				return userError(err)
			}
			return a.greet(cmd)
		},
	}
	cmd.Flags().StringVar(&credential, "credential", "", "Google ID token")
	return cmd
}

func newOTPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Sign in with a one-time code sent to a phone",
	}

	send := &cobra.Command{
		Use:   "send PHONE",
		Short: "Request a one-time code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.session.SendOTP(cmd.Context(), args[0])
			if err != nil {
				return userError(err)
			}
			if msg == "" {
				msg = "Code sent"
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), msg)
			return err
		},
	}

	login := &cobra.Command{
		Use:   "login PHONE CODE",
		Short: "Sign in with the received code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.PhoneLogin(cmd.Context(), args[0], args[1]); err != nil {
				return userError(err)
			}
			return a.greet(cmd)
		},
	}

	cmd.AddCommand(send, login)
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.session.Logout()
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return err
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, ok := a.session.Current()
			if !ok {
				return errNotSignedIn
			}
			return printUser(cmd.OutOrStdout(), a.output, user)
		},
	}
}

func newProfileCmd(a *app) *cobra.Command {
	var name, avatar string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update the display name or avatar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireSession(); err != nil {
				return err
			}

			var patch model.ProfilePatch
			if cmd.Flags().Changed("name") {
				patch.Name = &name
			}
			if cmd.Flags().Changed("avatar") {
				patch.Avatar = &avatar
			}
			if patch.Name == nil && patch.Avatar == nil {
				return errors.New("nothing to update, pass --name or --avatar")
			}

			if err := a.session.UpdateProfile(cmd.Context(), patch); err != nil {
				return userError(err)
			}
			user, _ := a.session.Current()
			return printUser(cmd.OutOrStdout(), a.output, user)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar URL")
	return cmd
}

// greet печатает приветствие после входа
func (a *app) greet(cmd *cobra.Command) error {
	user, ok := a.session.Current()
	if !ok {
		return errNotSignedIn
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Name)
	return err
}
