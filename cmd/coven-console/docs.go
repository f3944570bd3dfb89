// ABOUTME: Document commands: listing, upload, edits and the approval workflow
// ABOUTME: Approve and reject need an admin account

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/coven-console/internal/client"
)

func statusColor(status string) string {
	switch status {
	case client.DocumentApproved:
		return green.Sprint(status)
	case client.DocumentRejected:
		return color.RedString(status)
	default:
		return yellow.Sprint(status)
	}
}

func printDocuments(a *app, docs []client.Document) error {
	if a.emit(docs) {
		return nil
	}
	if len(docs) == 0 {
		yellow.Println("No documents.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tTITLE\tFILE\tSIZE\tSTATUS\tCOLLECTION\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID, orDash(d.Title), d.Filename, humanSize(d.Size), statusColor(d.Status), orDash(d.CollectionID), formatTime(d.CreatedAt))
	}
	return w.Flush()
}

func printDocument(a *app, d *client.Document) {
	if a.emit(d) {
		return
	}
	cyan.Println(orDash(d.Title))
	fmt.Printf("  ID:          %s\n", d.ID)
	fmt.Printf("  File:        %s (%s, %s)\n", d.Filename, d.ContentType, humanSize(d.Size))
	fmt.Printf("  Status:      %s\n", statusColor(d.Status))
	if d.RejectionReason != "" {
		fmt.Printf("  Reason:      %s\n", d.RejectionReason)
	}
	fmt.Printf("  Collection:  %s\n", orDash(d.CollectionID))
	fmt.Printf("  Uploaded by: %s\n", orDash(d.UploadedBy))
	fmt.Printf("  Created:     %s\n", formatTime(d.CreatedAt))
	fmt.Printf("  Updated:     %s\n", formatTime(d.UpdatedAt))
}

func docsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Manage RAG documents",
	}

	var filter client.DocumentFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.client().ListDocuments(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printDocuments(a, docs)
		},
	}
	list.Flags().StringVar(&filter.Status, "status", "", "filter by status (pending, approved, rejected)")
	list.Flags().StringVar(&filter.CollectionID, "collection", "", "filter by collection id")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "pending",
		Short: "List documents awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, err := a.client().PendingDocuments(cmd.Context())
			if err != nil {
				return err
			}
			return printDocuments(a, docs)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.client().GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printDocument(a, d)
			return nil
		},
	})

	var up client.Upload
	upload := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document for approval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening file: %w", err)
			}
			defer f.Close()

			up.Filename = args[0]
			up.Content = f
			d, err := a.client().UploadDocument(cmd.Context(), up)
			if err != nil {
				return err
			}
			if a.emit(d) {
				return nil
			}
			green.Print("✓ ")
			fmt.Printf("Uploaded %s as %s (%s)\n", d.Filename, d.ID, statusColor(d.Status))
			return nil
		},
	}
	upload.Flags().StringVar(&up.Title, "title", "", "document title")
	upload.Flags().StringVar(&up.CollectionID, "collection", "", "collection id")
	cmd.AddCommand(upload)

	var title, collection string
	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a document's title or collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var upd client.DocumentUpdate
			if cmd.Flags().Changed("title") {
				upd.Title = &title
			}
			if cmd.Flags().Changed("collection") {
				upd.CollectionID = &collection
			}
			if upd.Title == nil && upd.CollectionID == nil {
				return fmt.Errorf("nothing to update: pass --title or --collection")
			}
			d, err := a.client().UpdateDocument(cmd.Context(), args[0], upd)
			if err != nil {
				return err
			}
			printDocument(a, d)
			return nil
		},
	}
	update.Flags().StringVar(&title, "title", "", "new title")
	update.Flags().StringVar(&collection, "collection", "", "new collection id (empty to clear)")
	cmd.AddCommand(update)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			green.Println("✓ Document deleted")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.client().ApproveDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.emit(d) {
				return nil
			}
			green.Print("✓ ")
			fmt.Printf("Approved %s\n", d.ID)
			return nil
		},
	})

	var reason string
	reject := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.client().RejectDocument(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			if a.emit(d) {
				return nil
			}
			green.Print("✓ ")
			fmt.Printf("Rejected %s\n", d.ID)
			return nil
		},
	}
	reject.Flags().StringVar(&reason, "reason", "", "why the document was rejected")
	_ = reject.MarkFlagRequired("reason")
	cmd.AddCommand(reject)

	return cmd
}
