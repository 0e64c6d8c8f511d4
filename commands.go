package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"naskahlokal/internal/document/catalog"
	"naskahlokal/internal/document/gateway"
	"naskahlokal/internal/document/service"
	"naskahlokal/pkg/logger"
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List stored documents, most recently modified first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		docs, err := catalog.New(store).Listing(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No documents yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SLUG\tTITLE\tTYPE\tMODIFIED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Slug, d.Title, d.Type, d.Relative)
		}
		return w.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <slug>",
	Short: "Write a stored document to a portable JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, store, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		f, err := gateway.Export(rec)
		if err != nil {
			return err
		}

		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = f.Name
		}
		if err := os.WriteFile(out, f.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", rec.Slug, out)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store the first document of an exported JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		_, store, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		defer logger.Sync()

		// No page is attached, so a headless widget holds the content.
		svc := service.NewSessionService(store, catalog.New(store), service.NewMemoryWidget(),
			service.WithAutosaveInterval(0))
		defer svc.Shutdown()

		rec, err := svc.Import(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %q as %s\n", rec.Title, rec.Slug)
		return nil
	},
}
