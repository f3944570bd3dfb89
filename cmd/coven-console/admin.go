// ABOUTME: Admin commands: user management, system statistics and usage history
// ABOUTME: Every command here needs an admin or superadmin account

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
)

func printUser(a *app, u *client.User) {
	if a.emit(u) {
		return
	}
	cyan.Println(u.Name)
	fmt.Printf("  ID:         %s\n", u.ID)
	fmt.Printf("  Email:      %s\n", u.Email)
	fmt.Printf("  Role:       %s\n", u.Role)
	fmt.Printf("  Active:     %s\n", yesNo(u.IsActive))
	fmt.Printf("  Created:    %s\n", formatTime(u.CreatedAt))
	if u.LastLogin != nil {
		fmt.Printf("  Last login: %s\n", formatTime(*u.LastLogin))
	}
}

func adminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer users and view platform statistics",
	}

	var filter client.UserFilter
	users := &cobra.Command{
		Use:   "users",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := a.client().ListUsers(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if a.emit(page) {
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE\tACTIVE\tCREATED")
			for _, u := range page.Users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role, yesNo(u.IsActive), formatTime(u.CreatedAt))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			gray.Printf("page %d, %d of %d users\n", page.Page, len(page.Users), page.Total)
			return nil
		},
	}
	users.Flags().IntVar(&filter.Page, "page", 1, "page number")
	users.Flags().IntVar(&filter.Limit, "limit", 20, "users per page")
	users.Flags().StringVar(&filter.Search, "search", "", "match email or name")
	users.Flags().StringVar(&filter.Role, "role", "", "filter by role")
	cmd.AddCommand(users)

	cmd.AddCommand(&cobra.Command{
		Use:   "user <id>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client().GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printUser(a, u)
			return nil
		},
	})

	var name string
	updateUser := &cobra.Command{
		Use:   "update-user <id>",
		Short: "Change a user's display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client().UpdateUser(cmd.Context(), args[0], client.UserUpdate{Name: &name})
			if err != nil {
				return err
			}
			printUser(a, u)
			return nil
		},
	}
	updateUser.Flags().StringVar(&name, "name", "", "new display name")
	_ = updateUser.MarkFlagRequired("name")
	cmd.AddCommand(updateUser)

	cmd.AddCommand(&cobra.Command{
		Use:   "set-role <id> <user|admin|superadmin>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.client().SetUserRole(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			printUser(a, u)
			return nil
		},
	})

	for _, active := range []bool{true, false} {
		use, short := "activate <id>", "Re-enable a user"
		if !active {
			use, short = "deactivate <id>", "Disable a user"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := a.client().SetUserStatus(cmd.Context(), args[0], active)
				if err != nil {
					return err
				}
				printUser(a, u)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show platform statistics (superadmin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client().SystemStats(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(st) {
				return nil
			}
			w := newTable()
			rows := [][2]string{
				{"Users", fmt.Sprintf("%d (%d active)", st.TotalUsers, st.ActiveUsers)},
				{"Documents", fmt.Sprintf("%d (%d pending)", st.TotalDocuments, st.PendingDocuments)},
				{"Collections", strconv.Itoa(st.TotalCollections)},
				{"Sessions", strconv.Itoa(st.TotalSessions)},
				{"Messages", strconv.Itoa(st.TotalMessages)},
				{"Active LLM", orDash(st.ActiveLLM)},
			}
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
			}
			return w.Flush()
		},
	})

	var days int
	usage := &cobra.Command{
		Use:   "usage",
		Short: "Show daily usage history (superadmin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := a.client().UsageHistory(cmd.Context(), days)
			if err != nil {
				return err
			}
			if a.emit(history) {
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "DATE\tMESSAGES\tSESSIONS\tUSERS\tTOKENS")
			for _, d := range history {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", d.Date, d.Messages, d.Sessions, d.ActiveUsers, d.Tokens)
			}
			return w.Flush()
		},
	}
	usage.Flags().IntVar(&days, "days", 7, "number of days")
	cmd.AddCommand(usage)

	return cmd
}
