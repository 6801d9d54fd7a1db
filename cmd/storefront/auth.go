package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login <identity-token>",
		Short: "Sign in with an identity provider token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.session.SignIn(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if _, err := a.session.Exchange(cmd.Context()); err != nil {
				log.Printf("Signed in without a session token, admin actions may fail: %v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", profile.Name, profile.Email)
			return nil
		},
	}
}

func adminLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "admin-login",
		Short: "Sign in with admin credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := a.session.LoginWithPassword(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", profile.Email, profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget every stored credential and the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			state := a.session.State(cmd.Context())
			profile, ok := a.session.Profile(cmd.Context())
			if !ok {
				fmt.Fprintf(out, "%s\n", state)
				return nil
			}
			fmt.Fprintf(out, "%s <%s> role=%s state=%s\n", profile.Name, profile.Email, profile.Role, state)
			return nil
		},
	}
}
