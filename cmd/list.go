package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	listCamera string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged sightings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := openCatalog(cmd.Context(), true); err != nil {
			return err
		}
		sightings, err := DB.ListSightings(cmd.Context(), listCamera, listLimit)
		if err != nil {
			return fmt.Errorf("failed to list sightings: %w", err)
		}

		if len(sightings) == 0 {
			fmt.Println("No sightings found in database.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CAMERA\tTRACK\tSCORE\tFRAMES\tFACE\tRETIRED")
		fmt.Fprintln(w, "------\t-----\t-----\t------\t----\t-------")
		for _, s := range sightings {
			face := s.AlignedPath
			if face == "" {
				face = s.CropPath
			}
			fmt.Fprintf(w, "%s\t%d\t%.1f\t%d-%d\t%s\t%s\n",
				s.Camera, s.TrackID, s.Score, s.FirstFrame, s.LastFrame, face, s.RetiredAt.Local().Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().StringVar(&listCamera, "camera", "", "Only list sightings of this camera")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 50, "Maximum number of sightings")
	rootCmd.AddCommand(listCmd)
}
