// Package cli implements rfidctl, the offline administration tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rfidattend/internal/attendance"
	"rfidattend/internal/config"
	"rfidattend/internal/logging"
	"rfidattend/internal/store"
)

type options struct {
	jsonOutput bool
	envFile    string
	backend    string
	dataDir    string
	verbose    bool
	now        func() time.Time
}

// NewRootCmd builds the rfidctl command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{now: time.Now})
}

func newRootCmd(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:   "rfidctl",
		Short: "Administer the RFID attendance store",
		Long: `rfidctl reads and edits the attendance store directly: register tags,
list ledger records and compute reports in the Solar Hijri calendar.

Backend selection follows the service configuration (STORE_BACKEND and
friends, optionally from a .env file) unless overridden by flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output in JSON format")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	root.PersistentFlags().StringVar(&opts.backend, "store", "", "store backend (json, postgres, sqlite, redis)")
	root.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "data directory of the json backend")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log store activity")

	root.AddCommand(newNowCmd(opts), newTagCmd(opts), newReportCmd(opts), newLedgerCmd(opts), newRecipientsCmd(opts))
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// session is an opened store with the service built on top of it.
type session struct {
	backend store.Backend
	svc     *attendance.Service
	logger  *zap.Logger
}

func (o *options) open(ctx context.Context) (*session, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, err
	}
	cfg := config.Load()
	if o.backend != "" {
		cfg.StoreBackend = o.backend
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	level := "warn"
	if o.verbose {
		level = "debug"
	}
	logger := logging.Must(false, level)

	backend, err := store.Open(ctx, store.Config{
		Kind:        cfg.StoreBackend,
		DataDir:     cfg.DataDir,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
		RedisAddr:   cfg.RedisAddr,
		RedisPrefix: cfg.RedisPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	svc := attendance.NewService(
		attendance.OpenRegistry(ctx, backend, logger),
		attendance.OpenLedger(ctx, backend, logger),
		logger,
		attendance.WithClock(o.now),
	)
	return &session{backend: backend, svc: svc, logger: logger}, nil
}

func (s *session) Close() {
	_ = s.backend.Close()
	_ = s.logger.Sync()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
