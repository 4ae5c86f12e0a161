package main

import (
	"encoding/json"
	"fmt"
	"os"

	"intentd/internal/catalog"
	"intentd/internal/config"

	"github.com/spf13/cobra"
)

// catalogCmd groups catalog inspection commands
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect the intent catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog intents in definition order",
	RunE:  runCatalogList,
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the catalog file without starting the pipeline",
	RunE:  runCatalogValidate,
}

func init() {
	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
}

func loadCatalogOnly() (*catalog.Catalog, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cat, err := catalog.Load(catalog.FileLoader{Path: cfg.Catalog.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", cfg.Catalog.Path, err)
	}
	return cat, nil
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalogOnly()
	if err != nil {
		return err
	}

	if jsonOutput {
		type entry struct {
			ID       string   `json:"id"`
			Meaning  string   `json:"meaning"`
			Type     string   `json:"type"`
			Examples []string `json:"examples,omitempty"`
		}
		var out []entry
		for _, in := range cat.All() {
			out = append(out, entry{
				ID:       in.ID.String(),
				Meaning:  in.Meaning,
				Type:     string(in.Req.Type),
				Examples: in.Examples,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, in := range cat.All() {
		fmt.Printf("%-28s [%s] %s\n", in.ID, in.Req.Type, in.Meaning)
	}
	fmt.Printf("%d intents.\n", cat.Len())
	return nil
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalogOnly()
	if err != nil {
		return err
	}
	fmt.Printf("Catalog OK: %d intents.\n", cat.Len())
	return nil
}
