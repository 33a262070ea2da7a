package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/pkg/preset"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the photo presets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		printPresets(cmd.OutOrStdout())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "passport-photo %s\n", passportphoto.GetVersion())
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(versionCmd)
}

func printPresets(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPHOTO (mm)\tPHOTO (px)\tSHEET (px)\tFACE RATIO")
	for _, p := range preset.All() {
		ratio := "-"
		if p.FaceRatio != nil {
			ratio = fmt.Sprintf("%.2f", *p.FaceRatio)
		}
		fmt.Fprintf(w, "%s\t%gx%g\t%dx%d\t%dx%d\t%s\n",
			p.Name, p.WidthMM, p.HeightMM, p.PhotoW, p.PhotoH, p.CanvasW, p.CanvasH, ratio)
	}
	w.Flush()
}
