package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtm0/cdsstore/internal/dataset"
	"github.com/rtm0/cdsstore/internal/store"
	"github.com/rtm0/cdsstore/internal/vm"
)

var (
	saveRequest string
	saveFile    string
	saveZarr    string

	concurrency   int
	recsPerInsert int
	vmInsertURL   string
	metricPrefix  string
)

var openCmd = &cobra.Command{
	Use:   "open <data-id>",
	Short: "Open a dataset and print its summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, map[string]any{
			"dims":      ds.Dims(),
			"coords":    ds.CoordNames(),
			"data_vars": ds.DataVarNames(),
			"attrs":     ds.Attrs,
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <data-id>",
	Short: "Open a dataset and insert its values into Victoria Metrics",
	Long: `Opens a dataset and inserts every (time, lat, lon) record of its data
variables into Victoria Metrics. The insert URL selects the protocol:
/write and /api/v2/write use the InfluxDB line protocol, /api/v1/import/csv
uses CSV import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := openDataset(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return export(cmd.Context(), ds)
	},
}

func openDataset(ctx context.Context, dataID string) (*dataset.Dataset, error) {
	params, err := readParams()
	if err != nil {
		return nil, err
	}
	var opts []store.OpenOption
	if saveRequest != "" {
		opts = append(opts, store.WithSaveRequestTo(saveRequest))
	}
	if saveFile != "" {
		opts = append(opts, store.WithSaveFileTo(saveFile))
	}
	if saveZarr != "" {
		opts = append(opts, store.WithSaveZarrTo(saveZarr))
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return newStore().Open(ctx, dataID, params, opts...)
}

func export(ctx context.Context, ds *dataset.Dataset) error {
	if concurrency < 1 || recsPerInsert < 1 {
		return fmt.Errorf("--concurrency and --recsPerInsert must be positive")
	}
	s, err := dataset.NewScanner(ds)
	if err != nil {
		return fmt.Errorf("could not create a dataset scanner: %w", err)
	}
	logger.Info("Dataset summary", s.Summary()...)

	vmCli, err := vm.NewClient(logger, vmInsertURL, concurrency, metricPrefix, s.Metrics())
	if err != nil {
		return fmt.Errorf("could not create new VM client: %w", err)
	}

	recsCh := make(chan []dataset.Record)
	progressCh := make(chan int)
	var wg sync.WaitGroup
	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for recs := range recsCh {
				n := len(recs)
				for begin := 0; begin < n; begin += recsPerInsert {
					limit := min(begin+recsPerInsert, n)
					if err := vmCli.Insert(ctx, recs[begin:limit]); err != nil {
						logger.Error("Could not insert records", "err", err)
					}
				}
				progressCh <- n
			}
		}()
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		var inserted, total float64
		total = float64(s.TotalRecCount())
		start := time.Now()
		for n := range progressCh {
			inserted += float64(n)
			percent := fmt.Sprintf("%.2f%%", 100*inserted/total)
			duration := time.Since(start).Round(1 * time.Second)
			logger.Info("progress", "inserted", percent, "in", duration)
		}
	}()
	for s.Scan() {
		recsCh <- s.Records()
	}
	close(recsCh)
	wg.Wait()
	close(progressCh)
	<-done
	return ctx.Err()
}

func init() {
	for _, cmd := range []*cobra.Command{openCmd, exportCmd} {
		cmd.Flags().StringVar(&saveRequest, "save-request", "", "write the CDS request as JSON to this file")
		cmd.Flags().StringVar(&saveFile, "save-file", "", "keep the downloaded file at this path")
		cmd.Flags().StringVar(&saveZarr, "zarr", "", "write the dataset as a Zarr store to this directory")
	}
	exportCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent requests to Victoria Metrics")
	exportCmd.Flags().IntVar(&recsPerInsert, "recsPerInsert", 500, "number of records sent to VM in one batch")
	exportCmd.Flags().StringVar(&vmInsertURL, "vmInsertUrl", "http://localhost:8428/write", "Victoria Metrics insert API URL. Default: InfluxDB line protocol v2")
	exportCmd.Flags().StringVar(&metricPrefix, "metricPrefix", "cds", "prefix of the inserted metric names")
}
