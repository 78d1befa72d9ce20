package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oggyb/muzz-matchmaker/internal/broker"
	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/service/refill"
)

var refillCmd = &cobra.Command{
	Use:   "refill",
	Short: "Publish a refill request for one user",
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID, err := cmd.Flags().GetInt64("user")
		if err != nil {
			return err
		}
		if userID <= 0 {
			return fmt.Errorf("--user is required")
		}

		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger.InitFromConfig(cfg)

		b, err := broker.Dial(cfg, logger.L())
		if err != nil {
			return err
		}
		defer b.Close()

		msg := message.RefillRequest{
			UserID:      userID,
			Action:      message.ActionUpdateProfileKV,
			RequestType: refill.ReasonInitial.RequestType(),
			Reason:      "manual",
		}
		if err := b.Publish(cmd.Context(), cfg.Broker.RefillKey, msg); err != nil {
			return err
		}
		logger.L().Info("refill request published", "user_id", userID)
		return nil
	},
}

func init() {
	refillCmd.Flags().Int64("user", 0, "user id to refill")
	rootCmd.AddCommand(refillCmd)
}
