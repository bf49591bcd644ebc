package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
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
	"github.com/datallboy/gonzb/internal/queue"
	"github.com/datallboy/gonzb/internal/statusapi"
)

var (
	servePort        string
	serveHistoryPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a sequential job queue with an HTTP status surface",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config.yaml")
	serveCmd.Flags().StringVar(&servePort, "port", "8090", "HTTP listen port")
	serveCmd.Flags().StringVar(&serveHistoryPath, "history", "gonzb-history.db", "path to the history sqlite database")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log)

	hist, err := history.Open(serveHistoryPath)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer hist.Close()

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

	par2Driver := par2.New("par2")

	qm := queue.New(func(ctx context.Context, item *queue.Item) error {
		f, err := os.Open(item.NzbPath)
		if err != nil {
			return err
		}
		files, err := nzbmodel.Parse(f)
		f.Close()
		if err != nil {
			return err
		}

		meter := progress.NewMeter()
		dl := downloader.New(connPool, cfg, meter, log)
		sched := nzbsched.New(dl, meter, log)

		start := time.Now()
		results, err := sched.Run(ctx, files, item.OutDir, cfg.Usenet.Connections)
		if err != nil {
			return err
		}
		downloadTime := time.Since(start).Seconds()

		perFile := make(map[string]nzbmodel.DownloadResult, len(results))
		var totalSize int64
		for _, r := range results {
			if r.Err == nil {
				perFile[r.Result.Path] = r.Result
				totalSize += r.Result.BytesWritten
			}
		}

		summary, err := postprocess.Run(ctx, cfg, item.OutDir, perFile, par2Driver, log)
		if err != nil {
			log.Error("post-processing failed", "job", item.ID, "error", err)
		}

		return hist.Save(history.Record{
			ID:                  item.ID,
			Nzb:                 item.NzbPath,
			OutputDir:           item.OutDir,
			Success:             err == nil,
			TotalSize:           totalSize,
			DownloadTimeSeconds: downloadTime,
			Par2Repaired:        summary.Par2Repaired,
			RarExtracted:        summary.RarExtracted,
			FilesRenamed:        summary.FilesRenamed,
			CreatedAt:           time.Now(),
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Warn("shutting down queue runner")
		cancel()
	}()

	go qm.Run(ctx)

	e := echo.New()
	statusapi.RegisterRoutes(e, &statusapi.App{Queue: qm, History: hist, Log: log})
	e.POST("/jobs", func(c echo.Context) error {
		var req struct {
			NzbPath string `json:"nzb_path"`
			OutDir  string `json:"out_dir"`
		}
		if err := c.Bind(&req); err != nil {
			return c.JSON(400, statusapi.ErrorOutput{Error: "invalid request", Details: err.Error()})
		}
		id := qm.Enqueue(req.NzbPath, req.OutDir)
		return c.JSON(202, map[string]string{"id": id})
	})

	log.Info("status api listening", "port", servePort)
	return e.Start(":" + servePort)
}
