// ABOUTME: Account commands: login, logout, me, profile and password
// ABOUTME: Login is the two-step OTP flow; the code is typed at a prompt

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/session"
)

func loginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in with a one-time code sent by email",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var email string
			if len(args) == 1 {
				email = args[0]
			} else {
				var err error
				if email, err = prompt("Email: "); err != nil {
					return err
				}
			}

			if err := a.client().RequestOTP(ctx, email); err != nil {
				return err
			}
			green.Print("✓ ")
			fmt.Printf("Code sent to %s\n", email)

			code, err := prompt("Code: ")
			if err != nil {
				return err
			}
			resp, err := a.client().VerifyOTP(ctx, email, code)
			if err != nil {
				return err
			}

			green.Print("✓ ")
			fmt.Printf("Signed in as %s <%s>", resp.User.Name, resp.User.Email)
			gray.Printf(" (%s)\n", resp.User.Role)
			return nil
		},
	}
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Logout(cmd.Context()); err != nil {
				yellow.Printf("Server logout failed (%s); local session cleared.\n", err)
				return nil
			}
			green.Println("✓ Signed out")
			return nil
		},
	}
}

func meCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user and session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			info, err := a.console.Sessions.Current(ctx)
			if errors.Is(err, session.ErrNoSession) || errors.Is(err, session.ErrExpired) {
				yellow.Println("Not signed in. Run: coven-console login")
				return nil
			}
			if err != nil {
				return err
			}

			u, err := a.client().Me(ctx)
			if err != nil {
				return err
			}
			if a.emit(u) {
				return nil
			}

			cyan.Printf("%s\n", u.Name)
			fmt.Printf("  Email:    %s\n", u.Email)
			fmt.Printf("  Role:     %s\n", u.Role)
			fmt.Printf("  Active:   %s\n", yesNo(u.IsActive))
			fmt.Printf("  Joined:   %s\n", formatTime(u.CreatedAt))
			fmt.Printf("  Token:    from %s", info.Source)
			if info.Claims != nil && info.Claims.ExpiresAt != nil {
				fmt.Printf(", expires in %s", time.Until(*info.Claims.ExpiresAt).Round(time.Minute))
			}
			fmt.Println()
			return nil
		},
	}
}

func profileCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Change your display name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client().UpdateProfile(cmd.Context(), name)
			if err != nil {
				return err
			}
			if a.emit(u) {
				return nil
			}
			green.Print("✓ ")
			fmt.Printf("Name set to %s\n", u.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func passwordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Change your password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := promptSecret("Current password: ")
			if err != nil {
				return err
			}
			next, err := promptSecret("New password: ")
			if err != nil {
				return err
			}
			confirm, err := promptSecret("Confirm new password: ")
			if err != nil {
				return err
			}
			if next != confirm {
				return errors.New("passwords do not match")
			}

			if err := a.client().ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			green.Println("✓ Password changed")
			return nil
		},
	}
}
