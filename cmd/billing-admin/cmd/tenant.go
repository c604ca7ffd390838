package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meterly/api/internal/app"
	"github.com/meterly/api/internal/config"
	"github.com/meterly/api/internal/infra/postgres"
	"github.com/meterly/api/pkg/logger"
)

var (
	flagTenantName        string
	flagTenantEmailDomain string
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Manage tenants",
}

var tenantCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Bootstrap a new tenant",
	Long: `Create a tenant directly in the database.

Use this during initial deployment, before any API token exists. Once
the first tenant and an admin token are in place, prefer the HTTP API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := postgres.New(&cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		svc := app.NewTenantService(postgres.NewTenantRepository(db), logger.NewNop())

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		t, err := svc.CreateTenant(ctx, app.CreateTenantInput{
			Name:        flagTenantName,
			EmailDomain: flagTenantEmailDomain,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Tenant created\n")
		fmt.Printf("  ID:    %s\n", t.ID())
		fmt.Printf("  Name:  %s\n", t.Name())
		if t.EmailDomain() != "" {
			fmt.Printf("  Email: %s\n", t.EmailDomain())
		}
		fmt.Printf("\nNext: billing-admin token issue --tenant-id %s --role admin\n", t.ID())
		return nil
	},
}

func init() {
	tenantCreateCmd.Flags().StringVar(&flagTenantName, "name", "", "Tenant name (required)")
	tenantCreateCmd.Flags().StringVar(&flagTenantEmailDomain, "email-domain", "", "Tenant email domain")
	_ = tenantCreateCmd.MarkFlagRequired("name")

	tenantCmd.AddCommand(tenantCreateCmd)
}
