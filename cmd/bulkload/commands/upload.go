package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ruslano69/bulkload/pkg/bulk"
	"github.com/ruslano69/bulkload/pkg/frame"
)

var uploadFlags struct {
	table   string
	input   string
	sheet   string
	ignore  bool
	chunk   int
	workers int
}

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Load a CSV or Excel file with a header into a table",
	Long: `Load a CSV file or an Excel sheet (.xlsx) with a header row into a table
through the bulk loader. For .xlsx input the first sheet is read unless
--sheet is given.

Empty cells are loaded as NULL. Rows with an existing key replace the stored
row unless --ignore is set. With --workers > 1 the file is split into chunks
that are staged in parallel and loaded together.`,
	Example: `  bulkload upload --table stock --input stock.csv
  bulkload upload --table stock --input stock.csv --workers 4 --chunk 100000
  bulkload upload --table stock --input prices.xlsx --sheet stock`,
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadFlags.table, "table", "t", "", "target table")
	uploadCmd.Flags().StringVarP(&uploadFlags.input, "input", "i", "", "CSV or .xlsx file with a header row")
	uploadCmd.Flags().StringVar(&uploadFlags.sheet, "sheet", "", "sheet of an .xlsx input (default: first sheet)")
	uploadCmd.Flags().BoolVar(&uploadFlags.ignore, "ignore", false, "skip rows with duplicate keys instead of replacing them")
	uploadCmd.Flags().IntVar(&uploadFlags.chunk, "chunk", 0, "rows per staged chunk in worker mode (default: rows / workers)")
	uploadCmd.Flags().IntVar(&uploadFlags.workers, "workers", 1, "number of staging workers")
	_ = uploadCmd.MarkFlagRequired("table")
	_ = uploadCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := readInput(uploadFlags.input, uploadFlags.sheet)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to close connections")
		}
	}()

	var opts []bulk.CallOption
	if uploadFlags.ignore {
		opts = append(opts, bulk.WithIgnore())
	}

	if uploadFlags.workers > 1 {
		chunk := uploadFlags.chunk
		if chunk <= 0 {
			chunk = (data.Len() + uploadFlags.workers - 1) / uploadFlags.workers
		}
		err = bulk.FanOut(ctx, e.db, e.opts, data, uploadFlags.table, chunk, uploadFlags.workers, opts...)
	} else {
		var loader *bulk.Loader
		loader, err = bulk.NewLoader(e.db, e.opts)
		if err == nil {
			err = loader.LoadTo(ctx, data, uploadFlags.table, opts...)
		}
	}
	if err != nil {
		return err
	}

	log.Info().
		Str("table", uploadFlags.table).
		Int("rows", data.Len()).
		Int("workers", uploadFlags.workers).
		Msg("upload completed")
	return nil
}

func readInput(path, sheet string) (*frame.Frame, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		data, err := frame.ReadXLSX(path, sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		return data, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	data, err := frame.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
