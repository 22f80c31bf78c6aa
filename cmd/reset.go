package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	resetDB     bool
	resetFiles  bool
	resetOutput string
	resetYes    bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset system state (catalog tables, saved faces)",
	Long:  "Clears all data. By default, it resets everything. Use flags to clear specific components.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// If no flags are set, default to clearing EVERYTHING
		if !resetDB && !resetFiles {
			resetDB = true
			resetFiles = true
		}

		reader := bufio.NewReader(os.Stdin)

		if resetDB && (resetYes || confirm(reader, "⚠️  Are you sure you want to DROP all catalog tables?")) {
			if err := openCatalog(cmd.Context(), true); err != nil {
				return err
			}
			fmt.Println("🗑️  Clearing Database...")
			if err := DB.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset database: %w", err)
			}
		}

		if resetFiles {
			dir := outputDir(resetOutput)
			if resetYes || confirm(reader, fmt.Sprintf("⚠️  Are you sure you want to delete every saved face under %s?", dir)) {
				fmt.Println("🗑️  Clearing Output Files...")
				removeDir(dir)
			}
		}

		fmt.Println("✨ System Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Clear PostgreSQL catalog")
	resetCmd.Flags().BoolVar(&resetFiles, "files", false, "Clear saved faces")
	resetCmd.Flags().StringVarP(&resetOutput, "output", "o", "", "Output directory to clear (default: FACETRAIL_OUTPUT or ./faces)")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
