package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alecgard/formdesk/internal/account"
	"github.com/alecgard/formdesk/internal/session"
)

var (
	authEmail    string
	authName     string
	authPassword string
)

// passwordFlag falls back to FORMDESK_PASSWORD so it stays out of shell history.
func passwordFlag() string {
	if authPassword != "" {
		return authPassword
	}
	return os.Getenv("FORMDESK_PASSWORD")
}

func authFailure(a *app, err error) error {
	st := a.store.Snapshot().Auth
	return failure(err, st.LastMessage, st.FieldErrors)
}

func printUser(cmd *cobra.Command, u *account.User) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, u)
	}
	if u == nil {
		return nil
	}
	tw := newTable(out, "ID", "NAME", "EMAIL", "VERIFIED", "JOINED")
	row(tw, u.ID, u.Name, u.Email, yesNo(u.IsEmailVerified), ago(u.CreatedAt))
	return tw.Flush()
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		resp, err := a.store.Auth.Login(ctxOf(cmd), account.LoginRequest{Email: authEmail, Password: passwordFlag()})
		if err != nil {
			return authFailure(a, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.store.Snapshot().Auth.LastMessage)
		return printUser(cmd, resp.Data)
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		resp, err := a.store.Auth.Signup(ctxOf(cmd), account.SignupRequest{Name: authName, Email: authEmail, Password: passwordFlag()})
		if err != nil {
			return authFailure(a, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return printUser(cmd, resp.Data)
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if errors.Is(err, session.ErrSealedToken) {
			cfg, cerr := loadConfig()
			if cerr != nil {
				return cerr
			}
			if err := session.RemoveCredentials(cfg.Session.CredentialsFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}
		if err != nil {
			return err
		}
		if err := a.store.Auth.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Validate the stored token and show the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		u, err := a.store.Auth.Bootstrap(ctxOf(cmd))
		if err != nil {
			if errors.Is(err, account.ErrNoToken) {
				return errNotLoggedIn
			}
			return authFailure(a, err)
		}
		return printUser(cmd, u)
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Recover a forgotten password",
}

var passwordForgotCmd = &cobra.Command{
	Use:   "forgot",
	Short: "Email a password reset link",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		resp, err := a.store.Auth.ForgotPassword(ctxOf(cmd), authEmail)
		if err != nil {
			return authFailure(a, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
		return nil
	},
}

var passwordResetCmd = &cobra.Command{
	Use:   "reset TOKEN",
	Short: "Set a new password with the emailed reset token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		resp, err := a.store.Auth.ResetPassword(ctxOf(cmd), account.ResetPasswordRequest{ResetToken: args[0], Password: passwordFlag()})
		if err != nil {
			return authFailure(a, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.store.Snapshot().Auth.LastMessage)
		return printUser(cmd, resp.Data)
	},
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email TOKEN",
	Short: "Confirm an email address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := getApp()
		if err != nil {
			return err
		}
		resp, err := a.store.Auth.VerifyEmail(ctxOf(cmd), args[0])
		if err != nil {
			return authFailure(a, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), a.store.Snapshot().Auth.LastMessage)
		return printUser(cmd, resp.Data)
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd, passwordForgotCmd} {
		c.Flags().StringVar(&authEmail, "email", "", "account email")
	}
	for _, c := range []*cobra.Command{loginCmd, signupCmd, passwordResetCmd} {
		c.Flags().StringVar(&authPassword, "password", "", "password (or FORMDESK_PASSWORD)")
	}
	signupCmd.Flags().StringVar(&authName, "name", "", "display name")

	passwordCmd.AddCommand(passwordForgotCmd, passwordResetCmd)
	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd, passwordCmd, verifyEmailCmd)
}
