// Command gonzb downloads and post-processes one NZB file, following the
// teacher's cobra rootCmd wiring adapted to the new package set.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datallboy/gonzb/internal/config"
	"github.com/datallboy/gonzb/internal/downloader"
	"github.com/datallboy/gonzb/internal/history"
	"github.com/datallboy/gonzb/internal/logging"
	"github.com/datallboy/gonzb/internal/nntp"
	"github.com/datallboy/gonzb/internal/nzbmodel"
	"github.com/datallboy/gonzb/internal/nzbsched"
	"github.com/datallboy/gonzb/internal/par2"
	"github.com/datallboy/gonzb/internal/postprocess"
	"github.com/datallboy/gonzb/internal/progress"
)

var (
	nzbFile      string
	configPath   string
	connOverride int
	outOverride  string
)

var rootCmd = &cobra.Command{
	Use:   "gonzb",
	Short: "GONZB is a single-server Usenet NZB downloader",
	Long:  "A lightweight, concurrent, pipelined NNTP downloader written in Go.",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&nzbFile, "file", "f", "", "path to the .nzb file (required)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")
	rootCmd.Flags().IntVar(&connOverride, "connections", 0, "override usenet.connections")
	rootCmd.Flags().StringVar(&outOverride, "out", "", "override download.dir")
	rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if connOverride > 0 {
		cfg.Usenet.Connections = connOverride
	}
	if outOverride != "" {
		cfg.Download.Dir = outOverride
	}

	log := logging.New(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Warn("interrupt received, shutting down gracefully")
		cancel()
	}()
	defer cancel()

	f, err := os.Open(nzbFile)
	if err != nil {
		return fmt.Errorf("opening nzb file: %w", err)
	}
	files, err := nzbmodel.Parse(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("parsing nzb file: %w", err)
	}
	if len(files) == 0 {
		return nzbmodel.ErrInsufficientSegments
	}

	nntpCfg := nntp.Config{
		Host:          cfg.Usenet.Server,
		Port:          cfg.Usenet.Port,
		SSL:           cfg.Usenet.SSL,
		VerifySSLCert: cfg.Usenet.VerifySSLCerts,
		Username:      cfg.Usenet.Username,
		Password:      cfg.Usenet.Password,
	}
	connPool := nntp.NewPool(nntpCfg, nntp.PoolConfig{
		MaxConnections: cfg.Usenet.Connections,
		AcquireTimeout: time.Duration(cfg.Tuning.ConnectionWaitTimeout) * time.Second,
	}, log)
	defer connPool.Close()

	meter := progress.NewMeter()
	renderer := progress.NewCLIRenderer(meter)
	renderer.Start()

	dl := downloader.New(connPool, cfg, meter, log)
	sched := nzbsched.New(dl, meter, log)

	results, err := sched.Run(ctx, files, cfg.Download.Dir, cfg.Usenet.Connections)
	renderer.Stop()
	if err != nil {
		return fmt.Errorf("running scheduler: %w", err)
	}

	perFile := make(map[string]nzbmodel.DownloadResult, len(results))
	var totalSize int64
	success := true
	for _, r := range results {
		if r.Err != nil {
			success = false
			continue
		}
		perFile[r.Result.Path] = r.Result
		totalSize += r.Result.BytesWritten
		if r.Result.SegmentsFailed > 0 {
			success = false
		}
	}

	par2Driver := par2.New("par2")
	summary, err := postprocess.Run(ctx, cfg, cfg.Download.Dir, perFile, par2Driver, log)
	if err != nil {
		log.Error("post-processing failed", "error", err)
	}

	if histPath := historyPath(cfg.Download.Dir); histPath != "" {
		if store, err := history.Open(histPath); err == nil {
			defer store.Close()
			store.Save(history.Record{
				ID:           nzbFile,
				Nzb:          nzbFile,
				OutputDir:    cfg.Download.Dir,
				Success:      success,
				TotalSize:    totalSize,
				Par2Repaired: summary.Par2Repaired,
				RarExtracted: summary.RarExtracted,
				FilesRenamed: summary.FilesRenamed,
				CreatedAt:    time.Now(),
			})
		}
	}

	log.Info("download complete",
		"success", success,
		"total_size", totalSize,
		"par2_repaired", summary.Par2Repaired,
		"rar_extracted", summary.RarExtracted,
		"files_renamed", summary.FilesRenamed,
	)
	if !success {
		os.Exit(1)
	}
	return nil
}

func historyPath(outDir string) string {
	if outDir == "" {
		return ""
	}
	return outDir + "/.gonzb-history.db"
}
