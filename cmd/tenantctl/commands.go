package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	var (
		name   string
		schema string
		domain string
		email  string
		noWait bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new tenant with a primary domain",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Printf("Creating tenant: %s (%s)\n", name, schema)
			tenant, err := a.svc.CreateTenant(ctx, schema, name, email)
			if err != nil {
				return err
			}

			if domain != "" {
				fmt.Printf("Creating domain: %s\n", domain)
				if _, err := a.svc.AddDomain(ctx, tenant.ID, domain, true); err != nil {
					return err
				}
			}

			if !noWait {
				fmt.Println("Provisioning schema...")
				if err := a.prov.Provision(ctx, tenant); err != nil {
					return err
				}
			}

			fmt.Printf("Successfully created tenant %q with schema %q\n", name, schema)
			if domain != "" {
				fmt.Printf("Routable at: http://%s/\n", domain)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Tenant display name")
	cmd.Flags().StringVar(&schema, "schema", "", "Schema name (lowercase, no spaces)")
	cmd.Flags().StringVar(&domain, "domain", "", "Primary domain for the tenant")
	cmd.Flags().StringVar(&email, "email", "", "Contact email")
	cmd.Flags().BoolVar(&noWait, "no-provision", false, "Register only, skip provisioning")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("schema")
	return cmd
}

func newListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all tenants and their domains",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tenants, err := a.svc.List(ctx, activeOnly)
			if err != nil {
				return err
			}
			if len(tenants) == 0 {
				fmt.Println("No tenants found")
				return nil
			}

			fmt.Printf("Found %d tenants:\n\n", len(tenants))
			for _, tenant := range tenants {
				marker := "-"
				if tenant.Routable() {
					marker = "*"
				}
				fmt.Printf("%s %s (%s) status=%s provisioned=%t\n",
					marker, tenant.Name, tenant.SchemaName, tenant.Status, tenant.Provisioned)

				domains, err := a.repo.ListDomains(ctx, tenant.ID)
				if err != nil {
					return err
				}
				for _, d := range domains {
					primary := ""
					if d.IsPrimary {
						primary = " (primary)"
					}
					fmt.Printf("    %s%s\n", d.Hostname, primary)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active-only", false, "Show only routable tenants")
	return cmd
}

func newAddDomainCmd() *cobra.Command {
	var (
		schema  string
		domain  string
		primary bool
	)
	cmd := &cobra.Command{
		Use:   "add-domain",
		Short: "Register a hostname for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.tenantBySchema(ctx, schema)
			if err != nil {
				return err
			}
			if _, err := a.svc.AddDomain(ctx, tenant.ID, domain, primary); err != nil {
				return err
			}
			fmt.Printf("Domain %q now routes to tenant %q\n", domain, schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Tenant schema name")
	cmd.Flags().StringVar(&domain, "domain", "", "Hostname to register")
	cmd.Flags().BoolVar(&primary, "primary", false, "Mark as the tenant's primary domain")
	cmd.MarkFlagRequired("schema")
	cmd.MarkFlagRequired("domain")
	return cmd
}

func newRemoveDomainCmd() *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "remove-domain",
		Short: "Unregister a hostname",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.svc.RemoveDomain(ctx, domain); err != nil {
				return err
			}
			fmt.Printf("Domain %q removed\n", domain)
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Hostname to remove")
	cmd.MarkFlagRequired("domain")
	return cmd
}

func newActivateCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Restore routing for a deactivated tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.tenantBySchema(ctx, schema)
			if err != nil {
				return err
			}
			if err := a.svc.Activate(ctx, tenant.ID); err != nil {
				return err
			}
			fmt.Printf("Tenant %q activated\n", schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Tenant schema name")
	cmd.MarkFlagRequired("schema")
	return cmd
}

func newDeactivateCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Exclude a tenant from routing, keeping its data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.tenantBySchema(ctx, schema)
			if err != nil {
				return err
			}
			if err := a.svc.Deactivate(ctx, tenant.ID); err != nil {
				return err
			}
			fmt.Printf("Tenant %q deactivated (data retained)\n", schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Tenant schema name")
	cmd.MarkFlagRequired("schema")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		schema string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a tenant and drop its schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.tenantBySchema(ctx, schema)
			if err != nil {
				return err
			}

			fmt.Printf("Tenant: %s\nSchema: %s\nCreated: %s\n",
				tenant.Name, tenant.SchemaName, tenant.CreatedAt.Format("2006-01-02"))
			domains, err := a.repo.ListDomains(ctx, tenant.ID)
			if err != nil {
				return err
			}
			for _, d := range domains {
				fmt.Printf("  domain: %s\n", d.Hostname)
			}

			if err := a.svc.Delete(ctx, tenant.ID, force); err != nil {
				return err
			}
			fmt.Printf("Tenant %q deleted\n", schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Schema name to delete")
	cmd.Flags().BoolVar(&force, "force", false, "Confirm destructive deletion")
	cmd.MarkFlagRequired("schema")
	return cmd
}

func newProvisionCmd() *cobra.Command {
	var schema string
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Retry provisioning for a tenant in the error state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			tenant, err := a.tenantBySchema(ctx, schema)
			if err != nil {
				return err
			}
			if tenant.Provisioned {
				return fmt.Errorf("tenant %q is already provisioned", schema)
			}

			fmt.Printf("Provisioning schema %q...\n", schema)
			if err := a.prov.Provision(ctx, tenant); err != nil {
				return err
			}
			fmt.Printf("Tenant %q provisioned and routable\n", schema)
			return nil
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Tenant schema name")
	cmd.MarkFlagRequired("schema")
	return cmd
}

func newMigrateAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-all",
		Short: "Apply pending tenant migrations to every active tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.prov.MigrateAll(ctx)
			if err != nil {
				return err
			}
			for _, name := range report.Succeeded {
				fmt.Printf("ok      %s\n", name)
			}
			for _, failure := range report.Failed {
				fmt.Printf("FAILED  %s: %v\n", failure.SchemaName, failure.Err)
			}
			fmt.Printf("\n%d succeeded, %d failed\n", len(report.Succeeded), len(report.Failed))
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d tenant migration(s) failed", len(report.Failed))
			}
			return nil
		},
	}
	return cmd
}
