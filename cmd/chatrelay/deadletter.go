package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AyeshaKanwal90/ChatAI/internal/adapter/deadletter"
	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
)

func newDeadLetterCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect background writes that failed",
	}

	var limit int64
	list := &cobra.Command{
		Use:   "list",
		Short: "Print the most recent dead-lettered writes as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if cfg.RedisAddr == "" {
				return fmt.Errorf("REDIS_ADDR is not set; failed writes were only logged")
			}
			log, err := logger.New(cfg.LogMode, cfg.LogLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			sink, err := deadletter.New(cmd.Context(), cfg.RedisAddr, cfg.DeadLetterKey, log)
			if err != nil {
				return err
			}
			defer sink.Close()

			entries, err := sink.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			for _, e := range entries {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	list.Flags().Int64Var(&limit, "limit", 50, "maximum number of entries")

	cmd.AddCommand(list)
	return cmd
}
