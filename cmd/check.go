package cmd

import (
	"context"
	"fmt"
	"log"

	"ticketing-sync/core/config"
	"ticketing-sync/core/logger"
	"ticketing-sync/feature/ticketing"
	"ticketing-sync/feature/ticketing/providers"
	"ticketing-sync/feature/ticketing/store"
	"ticketing-sync/feature/ticketing/sync"

	"github.com/spf13/cobra"
)

var checkFlags struct {
	organization string
	provider     string
	accessKey    string
	secretKey    string
}

// checkCmd validates provider credentials without pulling real data.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate ticketing provider credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()

		req := ticketing.SyncRequest{
			OrganizationID: checkFlags.organization,
			Provider:       checkFlags.provider,
			Credentials: providers.Credentials{
				AccessKey: checkFlags.accessKey,
				SecretKey: checkFlags.secretKey,
			},
		}

		service := ticketing.NewService(sync.NewSyncer(store.NewMemoryStore(), logg), logg)

		ok, err := service.Check(context.Background(), req)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("connection check failed for provider %s", checkFlags.provider)
		}

		fmt.Println("connection OK")
		return nil
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFlags.organization, "organization", "", "organization identifier")
	checkCmd.Flags().StringVar(&checkFlags.provider, "provider", "", "ticketing provider (billetweb, dice, shotgun, supersoniks, yurplan)")
	checkCmd.Flags().StringVar(&checkFlags.accessKey, "access-key", "", "provider access key (user, token or tenant domain)")
	checkCmd.Flags().StringVar(&checkFlags.secretKey, "secret-key", "", "provider secret key, if the provider uses one")
	_ = checkCmd.MarkFlagRequired("organization")
	_ = checkCmd.MarkFlagRequired("provider")
	_ = checkCmd.MarkFlagRequired("access-key")
	RootCmd.AddCommand(checkCmd)
}
