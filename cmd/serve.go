package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/askcsv/internal/pipeline"
	"github.com/KaramelBytes/askcsv/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /upload and /query over HTTP",
	Example: `  askcsv serve
  askcsv serve --addr 127.0.0.1:8080 --providers ollama`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		addr := c.ListenAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if addr == "" {
			return fmt.Errorf("listen address is empty")
		}
		if !debug {
			gin.SetMode(gin.ReleaseMode)
		}

		log := appLogger()
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		defer startMetrics(ctx, c, log)()

		chain := buildChain(c, log)
		if len(chain.Backends()) == 0 {
			log.Warn("no generator backends available; only requests with sql will succeed")
		}
		pipe := pipeline.New(chain, log,
			pipeline.WithSampleRows(c.SampleRows),
			pipeline.WithQueryTimeout(c.QueryTimeout()),
		)
		// One request may try every backend before executing.
		perRequest := c.QueryTimeout() + time.Duration(len(chain.Backends()))*c.GenerationTimeout()
		srv := server.New(pipe, log, server.Options{
			UploadTTL:    c.UploadTTL(),
			MaxUploadMB:  c.MaxUploadMB,
			QueryTimeout: perRequest,
		}, chain.Backends())

		log.Info("listening", zap.String("addr", addr), zap.Strings("backends", chain.Backends()))
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides listen_addr)")
}
