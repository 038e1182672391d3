package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/config"
	"github.com/xxxsen/notesync/internal/pkg/jwt"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "notesync",
		Short: "toolbox usernotes to mod notes transfer service",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the transfer server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "print transfer progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			status, err := app.transfer.Status(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "write progress milestones to the mirror page",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			return app.tracker.FlushToDurableStorage(cmd.Context())
		},
	}

	var (
		tokenUser string
		tokenTTL  time.Duration
	)
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint a moderator token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if tokenUser == "" {
				return fmt.Errorf("--user is required")
			}
			tok, err := jwt.GenerateToken(tokenUser, cfg.Community, []byte(cfg.JWTSecret), tokenTTL)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "moderator username")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(runCmd, statusCmd, flushCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}
