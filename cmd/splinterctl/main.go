// Command splinterctl inspects and migrates a node's admin store: importing
// legacy circuits.yaml/circuit_proposals.yaml files and listing committed
// circuits, without needing a running splinterd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/splinter-rs/splinter-go/store/adminstore"
	"github.com/splinter-rs/splinter-go/store/yamlimport"
)

var rootCmd = &cobra.Command{
	Use:   "splinterctl",
	Short: "Inspect and migrate a splinter node's admin store",
}

func main() {
	rootCmd.AddCommand(importCmd(), listCircuitsCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-yaml",
		Short: "Import legacy circuits.yaml/circuit_proposals.yaml into the admin store",
		RunE:  runImport,
	}
	cmd.Flags().String("data-dir", ".", "directory containing circuits.yaml/circuit_proposals.yaml")
	cmd.Flags().String("store-dir", "./admin-store", "admin store directory to import into")
	return cmd
}

func runImport(cmd *cobra.Command, _ []string) error {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return err
	}
	storeDir, err := cmd.Flags().GetString("store-dir")
	if err != nil {
		return err
	}

	store, err := adminstore.OpenBadger(storeDir)
	if err != nil {
		return fmt.Errorf("opening admin store: %w", err)
	}
	defer func() { _ = store.Close() }()

	result, err := yamlimport.Import(dataDir, store)
	if err != nil {
		return fmt.Errorf("importing yaml: %w", err)
	}
	if result.NoOp {
		fmt.Println("no circuits.yaml or circuit_proposals.yaml found; nothing to import")
		return nil
	}
	fmt.Printf("imported %d circuits, %d proposals\n", result.CircuitsImported, result.ProposalsImported)
	return nil
}

func listCircuitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list-circuits",
		Short: "List circuits committed to the admin store",
		RunE:  runListCircuits,
	}
	cmd.Flags().String("store-dir", "./admin-store", "admin store directory to read")
	cmd.Flags().String("management-type", "", "filter by management_type")
	return cmd
}

func runListCircuits(cmd *cobra.Command, _ []string) error {
	storeDir, err := cmd.Flags().GetString("store-dir")
	if err != nil {
		return err
	}
	managementType, err := cmd.Flags().GetString("management-type")
	if err != nil {
		return err
	}

	store, err := adminstore.OpenBadger(storeDir)
	if err != nil {
		return fmt.Errorf("opening admin store: %w", err)
	}
	defer func() { _ = store.Close() }()

	circuits, err := store.ListCircuits(adminstore.CircuitFilter{ManagementType: managementType})
	if err != nil {
		return fmt.Errorf("listing circuits: %w", err)
	}
	for _, c := range circuits {
		fmt.Printf("%s\tmanagement_type=%s\tmembers=%d\n", c.CircuitID, c.ManagementType, len(c.Members))
	}
	return nil
}
