package main

import (
	"fmt"
	"io"

	"github.com/Sternrassler/county-property-scraper/pkg/catalog"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewCatalogCmd creates the catalog command.
func NewCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List or validate the query catalog",
		Long: `List the entries of the built-in catalog, or of a catalog file given with
--catalog. A file that fails validation makes the command exit non-zero,
so it doubles as a check before a run.

Examples:
  property-scraper catalog
  property-scraper catalog --group include
  property-scraper catalog --catalog my-catalog.yaml`,
		RunE: runCatalogCmd,
	}

	addCatalogFlags(cmd)
	return cmd
}

func addCatalogFlags(cmd *cobra.Command) {
	cmd.Flags().String("catalog", getEnv("SCRAPER_CATALOG", ""),
		"Catalog YAML file replacing the built-in catalog (env SCRAPER_CATALOG)")
	cmd.Flags().String("group", "", "Only entries of this group")
	cmd.Flags().String("label", "", "Only the entry with this label")
}

// loadCatalog reads the catalog selected by the command's flags.
func loadCatalog(cmd *cobra.Command) (*catalog.Catalog, error) {
	path, err := cmd.Flags().GetString("catalog")
	if err != nil {
		return nil, err
	}
	group, err := cmd.Flags().GetString("group")
	if err != nil {
		return nil, err
	}
	label, err := cmd.Flags().GetString("label")
	if err != nil {
		return nil, err
	}

	c := catalog.Default()
	if path != "" {
		if c, err = catalog.Load(path); err != nil {
			return nil, err
		}
	}

	if group == "" && label == "" {
		return c, nil
	}
	return c.Select(group, label)
}

func runCatalogCmd(cmd *cobra.Command, _ []string) error {
	c, err := loadCatalog(cmd)
	if err != nil {
		return err
	}

	printCatalog(cmd.OutOrStdout(), c)
	return nil
}

func printCatalog(w io.Writer, c *catalog.Catalog) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"#", "Group", "Label", "Filters"})
	for i, e := range c.Entries() {
		t.AppendRow(table.Row{i + 1, e.Group, e.Label, e.Filters.String()})
	}
	t.AppendFooter(table.Row{"", "", "Entries", fmt.Sprint(c.Len())})
	t.SetStyle(table.StyleRounded)
	t.Render()
}
