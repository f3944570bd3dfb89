// ABOUTME: Collection commands: CRUD and document membership
// ABOUTME: Updates fetch the current collection and overlay only the flags given

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
)

func printCollection(a *app, c *client.Collection) {
	if a.emit(c) {
		return
	}
	cyan.Println(c.Name)
	fmt.Printf("  ID:          %s\n", c.ID)
	fmt.Printf("  Description: %s\n", orDash(c.Description))
	fmt.Printf("  Documents:   %d\n", c.DocumentCount)
	fmt.Printf("  Public:      %s\n", yesNo(c.IsPublic))
	fmt.Printf("  Created:     %s\n", formatTime(c.CreatedAt))
}

func collectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Manage document collections",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cols, err := a.client().ListCollections(cmd.Context())
			if err != nil {
				return err
			}
			if a.emit(cols) {
				return nil
			}
			if len(cols) == 0 {
				yellow.Println("No collections.")
				return nil
			}
			w := newTable()
			fmt.Fprintln(w, "ID\tNAME\tDOCS\tPUBLIC\tDESCRIPTION")
			for _, c := range cols {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", c.ID, c.Name, c.DocumentCount, yesNo(c.IsPublic), orDash(c.Description))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client().GetCollection(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printCollection(a, c)
			return nil
		},
	})

	var in client.CollectionInput
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[0]
			c, err := a.client().CreateCollection(cmd.Context(), in)
			if err != nil {
				return err
			}
			printCollection(a, c)
			return nil
		},
	}
	create.Flags().StringVar(&in.Description, "description", "", "collection description")
	create.Flags().BoolVar(&in.IsPublic, "public", false, "visible to all users")
	cmd.AddCommand(create)

	var upd client.CollectionInput
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cur, err := a.client().GetCollection(ctx, args[0])
			if err != nil {
				return err
			}
			next := client.CollectionInput{Name: cur.Name, Description: cur.Description, IsPublic: cur.IsPublic}
			if cmd.Flags().Changed("name") {
				next.Name = upd.Name
			}
			if cmd.Flags().Changed("description") {
				next.Description = upd.Description
			}
			if cmd.Flags().Changed("public") {
				next.IsPublic = upd.IsPublic
			}
			c, err := a.client().UpdateCollection(ctx, args[0], next)
			if err != nil {
				return err
			}
			printCollection(a, c)
			return nil
		},
	}
	update.Flags().StringVar(&upd.Name, "name", "", "new name")
	update.Flags().StringVar(&upd.Description, "description", "", "new description")
	update.Flags().BoolVar(&upd.IsPublic, "public", false, "visible to all users")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a collection (its documents are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteCollection(cmd.Context(), args[0]); err != nil {
				return err
			}
			green.Println("✓ Collection deleted")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "docs <id>",
		Short: "List the documents in a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.client().CollectionDocuments(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printDocuments(a, docs)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add-doc <collection-id> <document-id>",
		Short: "Add a document to a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().AddCollectionDocument(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			green.Println("✓ Document added")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove-doc <collection-id> <document-id>",
		Short: "Remove a document from a collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().RemoveCollectionDocument(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			green.Println("✓ Document removed")
			return nil
		},
	})

	return cmd
}
