package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/d-sanghavi/library-management/core"
	"github.com/d-sanghavi/library-management/lending"
)

const flagFile = "file"

//go:embed sample_books.json
var sampleBooks []byte

var errEmptyCatalog = errors.New("catalog file contains no books")

func newSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load books into the catalog",
		Long: `Load the built-in sample catalog, or the books of a JSON file, into the configured store.
Books that already exist are skipped.`,
		Args: cobra.NoArgs,
		RunE: runSeed,
	}

	cmd.Flags().StringP(flagFile, "f", "", "JSON file with an array of books")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString(flagFile)

	books, err := loadCatalog(path)
	if err != nil {
		return err
	}

	a, err := buildApp(cmd.Context(), cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.close()

	added, err := seedCatalog(cmd.Context(), a.engine, books)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d of %d books\n", added, len(books))

	return err
}

func sampleCatalog() ([]core.Book, error) {
	return parseCatalog(sampleBooks)
}

// loadCatalog reads the books in the JSON file at path, or the sample catalog if path is empty.
func loadCatalog(path string) ([]core.Book, error) {
	if path == "" {
		return sampleCatalog()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]core.Book, error) {
	var books []core.Book
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	if len(books) == 0 {
		return nil, errEmptyCatalog
	}

	return books, nil
}

// seedCatalog adds every book that does not exist yet and reports how many were added.
func seedCatalog(ctx context.Context, engine *lending.Engine, books []core.Book) (int, error) {
	added := 0

	for _, book := range books {
		_, err := engine.AddBook(ctx, book)

		switch {
		case err == nil:
			added++
		case errors.Is(err, core.ErrBookExists):
		default:
			return added, fmt.Errorf("adding book %q: %w", book.ID, err)
		}
	}

	return added, nil
}
