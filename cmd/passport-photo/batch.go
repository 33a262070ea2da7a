package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/passport-photo/internal/utils"
)

var batchCmd = &cobra.Command{
	Use:   "batch <directory>",
	Short: "Build a print sheet for every photo in a directory",
	Long: `Build a print sheet for every image file directly inside a directory.
Sheets are written as <name>_<preset>_sheet.jpg into the output directory and
existing sheets in the input directory are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addSheetFlags(batchCmd)
	batchCmd.Flags().StringP("output", "o", "", "output directory; the input directory when empty")
	batchCmd.Flags().IntP("workers", "w", 4, "photos processed in parallel")
	batchCmd.Flags().Bool("fail-fast", false, "stop at the first photo that fails")
	batchCmd.Flags().Duration("timeout", 30*time.Minute, "timeout for the whole batch")
}

// batchSummary counts the outcome of a batch run
type batchSummary struct {
	Processed int
	Failed    int
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputDir := args[0]
	if !utils.DirExists(inputDir) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	maker, err := newSheetMaker(cmd, cfg)
	if err != nil {
		return err
	}

	outputDir := mustGetString(cmd, "output")
	if outputDir == "" {
		outputDir = inputDir
	}
	if err := utils.EnsureDir(outputDir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	files, err := utils.ListImageFiles(inputDir)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(files) == 0 {
		log.Printf("No images found in %s", inputDir)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), mustGetDuration(cmd, "timeout"))
	defer cancel()

	log.Printf("Processing %d image(s) from %s", len(files), inputDir)
	start := time.Now()
	summary, err := processBatch(ctx, maker, files, outputDir, mustGetInt(cmd, "workers"), mustGetBool(cmd, "fail-fast"))
	log.Printf("Batch finished in %v: %d processed, %d failed",
		time.Since(start).Round(time.Millisecond), summary.Processed, summary.Failed)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", summary.Failed, len(files))
	}
	return nil
}

// processBatch builds sheets for files with at most workers running at once. Failures
// are logged and counted; with failFast the first one cancels the rest.
func processBatch(ctx context.Context, maker *sheetMaker, files []string, outputDir string, workers int, failFast bool) (batchSummary, error) {
	if workers < 1 {
		workers = 1
	}

	var processed, failed atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for _, file := range files {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			output := utils.SheetFilename(file, outputDir, maker.opts.Preset)
			faces, err := maker.makeSheet(egCtx, file, output)
			if err != nil {
				failed.Add(1)
				log.Printf("Failed %s: %v", filepath.Base(file), err)
				if failFast {
					return fmt.Errorf("%s: %w", filepath.Base(file), err)
				}
				return nil
			}

			processed.Add(1)
			log.Printf("Saved %s (%s, %d face(s))", filepath.Base(output), describeSheet(output), faces)
			return nil
		})
	}

	err := eg.Wait()
	return batchSummary{Processed: int(processed.Load()), Failed: int(failed.Load())}, err
}
