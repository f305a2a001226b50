package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"digital-twin-search/services"
)

var (
	tenantID     string
	fileName     string
	listQuery    string
	listMetadata bool
	exportPath   string
	exportFormat string
)

var createIndexCmd = &cobra.Command{
	Use:   "create-index",
	Short: "Create or update the chapter index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := svc.Schema.CreateOrUpdateIndex(cmd.Context())
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return resultError(res.Success, "create index failed: %s", res.Error)
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <file>...",
	Short: "Index chapter extractions from YAML or JSON files",
	Long: `Index chapter extractions from YAML or JSON files.

Each file holds an "extractions" list, a "slices" list, or both. Re-indexing
the same chapter overwrites it in place.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := indexFiles(cmd.Context(), svc.Indexer, args)
		if err != nil {
			return err
		}
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return resultError(res.Success, "%d slices failed to index", res.FailedCount)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the indexed chapters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		return writeJSON(cmd.OutOrStdout(), svc.Search.AnswerQuestion(cmd.Context(), question, tenantID, fileName))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	Long: `List indexed documents grouped by file.

--metadata prints the per-file metadata view. --export writes the listing to a
file as json, excel or both (zip).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listMetadata {
			return writeJSON(cmd.OutOrStdout(), svc.Search.ListDocumentMetadata(cmd.Context(), tenantID, fileName))
		}
		docs := svc.Search.ListDocuments(cmd.Context(), tenantID, fileName, listQuery)
		if exportPath == "" {
			return writeJSON(cmd.OutOrStdout(), docs)
		}
		return exportDocuments(exportPath, exportFormat, services.NewDocumentExport(tenantID, docs))
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete every indexed chapter of a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res := svc.Deleter.DeleteByFile(cmd.Context(), fileName, tenantID)
		if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		return resultError(res.Success, "deleted %d of %d documents", res.DeletedCount, res.FoundCount)
	},
}

func init() {
	rootCmd.AddCommand(createIndexCmd, indexCmd, askCmd, listCmd, deleteCmd)

	for _, c := range []*cobra.Command{askCmd, listCmd, deleteCmd} {
		c.Flags().StringVarP(&tenantID, "tenant", "t", "", "Tenant (digital twin) id")
		c.Flags().StringVarP(&fileName, "file", "f", "", "Restrict to one file name")
		c.MarkFlagRequired("tenant")
	}
	deleteCmd.MarkFlagRequired("file")

	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "Rank documents by a search query")
	listCmd.Flags().BoolVar(&listMetadata, "metadata", false, "Print per-file metadata instead of chapter summaries")
	listCmd.Flags().StringVarP(&exportPath, "export", "o", "", "Write the listing to a file")
	listCmd.Flags().StringVar(&exportFormat, "format", services.ExportJSON, "Export format: json, excel or both")
}

func exportDocuments(path, format string, data *services.DocumentExport) error {
	if filepath.Ext(path) == "" {
		path += services.ExportExtension(format)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := services.WriteExport(f, data, format); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Exported", len(data.Documents), "documents to", path)
	return nil
}
