package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bookhub/pkg/domain"
)

func runLogin(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	creds := domain.Credentials{
		Username: flagString(cmd, "username"),
		Email:    flagString(cmd, "email"),
		Password: flagString(cmd, "password"),
	}
	res := a.Login(cmd.Context(), creds)
	if !res.Success {
		return errors.New(res.Message)
	}
	user, _ := a.Session.User()
	fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", displayName(user))
	return nil
}

func runRegister(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	data := domain.RegisterData{
		Username:        flagString(cmd, "username"),
		Email:           flagString(cmd, "email"),
		Name:            flagString(cmd, "name"),
		Password:        flagString(cmd, "password"),
		ConfirmPassword: flagString(cmd, "confirm-password"),
	}
	res := a.Register(cmd.Context(), data)
	if !res.Success {
		return errors.New(res.Message)
	}
	user, _ := a.Session.User()
	fmt.Fprintf(cmd.OutOrStdout(), "registered and signed in as %s\n", displayName(user))
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "signed out")
	return nil
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	a, _, err := openApp(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	user, ok := a.Session.User()
	if !ok {
		return errNotSignedIn
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (id %s)\n", displayName(user), user.ID)
	return nil
}

var errNotSignedIn = errors.New("not signed in; run `bookhub login` first")

func displayName(u domain.AuthUser) string {
	switch {
	case u.Username != "":
		return u.Username
	case u.Name != "":
		return u.Name
	default:
		return u.Email
	}
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}
