package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	passportphoto "github.com/menta2k/passport-photo"
	"github.com/menta2k/passport-photo/internal/config"
	"github.com/menta2k/passport-photo/internal/utils"
	"github.com/menta2k/passport-photo/pkg/detection"
	"github.com/menta2k/passport-photo/pkg/matting"
)

var composeCmd = &cobra.Command{
	Use:   "compose <image>",
	Short: "Build a print sheet from one photo",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)
	addSheetFlags(composeCmd)
	composeCmd.Flags().StringP("output", "o", "", "output file; <name>_<preset>_sheet.jpg next to the input when empty")
	composeCmd.Flags().Duration("timeout", 5*time.Minute, "timeout for background removal and face detection")
}

func runCompose(cmd *cobra.Command, args []string) error {
	input := args[0]
	if !utils.FileExists(input) {
		return fmt.Errorf("input file does not exist: %s", input)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	maker, err := newSheetMaker(cmd, cfg)
	if err != nil {
		return err
	}

	output := mustGetString(cmd, "output")
	if output == "" {
		output = utils.SheetFilename(input, filepath.Dir(input), maker.opts.Preset)
	}

	timeout := mustGetDuration(cmd, "timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	faces, err := maker.makeSheet(ctx, input, output)
	if err != nil {
		return fmt.Errorf("failed to build sheet: %w", err)
	}

	log.Printf("Sheet saved to %s (%s, %d copies of %s, %d face(s) found, %v)",
		output, describeSheet(output), maker.opts.Copies, maker.opts.Preset, faces, time.Since(start).Round(time.Millisecond))
	return nil
}

// newSheetMaker resolves the sheet flags against the config defaults and builds the
// collaborators the flags leave enabled
func newSheetMaker(cmd *cobra.Command, cfg *config.Config) (*sheetMaker, error) {
	opts := passportphoto.Options{
		Preset:  cfg.Defaults.Preset,
		BGColor: cfg.Defaults.BGColor,
		Copies:  cfg.Defaults.Copies,
	}
	// Explicit flags win even when empty or zero
	if cmd.Flags().Changed("preset") {
		opts.Preset = mustGetString(cmd, "preset")
	}
	if cmd.Flags().Changed("bg") {
		opts.BGColor = mustGetString(cmd, "bg")
	}
	if cmd.Flags().Changed("copies") {
		opts.Copies = mustGetInt(cmd, "copies")
	}
	if err := checkOptions(opts); err != nil {
		return nil, err
	}

	maker := &sheetMaker{
		loader:    newLoader(cfg.Upload),
		extractor: matting.Passthrough{},
		detector:  detection.None{},
		opts:      opts,
	}

	if !mustGetBool(cmd, "keep-background") {
		extractor, err := newExtractor(cfg.Matting)
		if err != nil {
			return nil, fmt.Errorf("failed to create matting client: %w", err)
		}
		maker.extractor = extractor
	}
	if !mustGetBool(cmd, "no-faces") {
		detector, err := newDetector(cfg.Vision)
		if err != nil {
			return nil, fmt.Errorf("failed to create face detector: %w", err)
		}
		maker.detector = detector
	}
	return maker, nil
}
