package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/netlinkisp/ispadmin/internal/domain"
	"github.com/netlinkisp/ispadmin/internal/repository"
	"github.com/netlinkisp/ispadmin/internal/service"
	"github.com/spf13/cobra"
)

func newSeedCommand() *cobra.Command {
	var sample bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the superadmin, the package catalogue and optional sample data",
		Long: "Seeding is idempotent: the superadmin is matched by email, packages by ID,\n" +
			"branches by name and customers by email.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), sample)
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "also create demo branches, admins, customers and subscriptions")
	return cmd
}

func runSeed(ctx context.Context, sample bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := bootstrap(ctx, false)
	if err != nil {
		return err
	}
	defer rt.close()

	log := rt.logger
	cfg := rt.cfg.Seed

	if cfg.SuperAdminPassword == "" {
		return errors.New("SUPERADMIN_PASSWORD is required to seed the superadmin")
	}
	created, err := rt.services.Auth.EnsureSuperAdmin(ctx, cfg.SuperAdminName, cfg.SuperAdminEmail, cfg.SuperAdminPassword)
	if err != nil {
		return err
	}
	log.Info("superadmin ready", "email", cfg.SuperAdminEmail, "created", created)

	n, err := rt.services.Packages.SeedDefaultPackages(ctx, log)
	if err != nil {
		return err
	}
	log.Info("package catalogue ready", "created", n, "total", len(repository.DefaultPackages))

	if !sample {
		return nil
	}

	loc, err := rt.cfg.Reconciler.Location()
	if err != nil {
		return err
	}
	return seedSample(ctx, rt, time.Now().In(loc), log)
}

type sampleCustomer struct {
	info domain.PersonalInfo
	// startOffsetDays positions the subscription end relative to today.
	startOffsetDays int
	packageID       string
}

type sampleBranch struct {
	request    service.CreateBranchRequest
	adminEmail string
	customers  []sampleCustomer
}

var sampleBranches = []sampleBranch{
	{
		request: service.CreateBranchRequest{
			Name:      "Gulberg",
			Location:  domain.Location{Address: "Main Boulevard, Gulberg III", City: "Lahore", Coordinates: []float64{74.3436, 31.5204}},
			Bandwidth: 1000,
		},
		adminEmail: "gulberg.admin@isp.local",
		customers: []sampleCustomer{
			// ends today, picked up by the next reconciliation
			{domain.PersonalInfo{Name: "Ayesha Khan", CNIC: "3520212345671", Phone: "03001230001", Email: "ayesha@example.com", Address: "12-C Gulberg", Landmark: "Liberty Market"}, 0, "pkg_basic_10"},
			// inside the expiring-soon window
			{domain.PersonalInfo{Name: "Bilal Ahmed", CNIC: "3520212345672", Phone: "03001230002", Email: "bilal@example.com", Address: "44-D Gulberg", Landmark: "Hafeez Centre"}, 2, "pkg_home_20"},
		},
	},
	{
		request: service.CreateBranchRequest{
			Name:      "Clifton",
			Location:  domain.Location{Address: "Block 5, Clifton", City: "Karachi", Coordinates: []float64{67.0301, 24.8138}},
			Bandwidth: 2000,
		},
		adminEmail: "clifton.admin@isp.local",
		customers: []sampleCustomer{
			{domain.PersonalInfo{Name: "Sana Raza", CNIC: "4210112345673", Phone: "03211230003", Email: "sana@example.com", Address: "Sea View Apartments", Landmark: "Do Darya"}, 20, "pkg_pro_50"},
		},
	},
}

const samplePassword = "changeme123"

func seedSample(ctx context.Context, rt *runtime, today time.Time, log *slog.Logger) error {
	branchRepo := repository.NewMongoBranchRepository(rt.deps.MongoDB)
	customerRepo := repository.NewMongoCustomerRepository(rt.deps.MongoDB)
	svc := rt.services

	for _, sb := range sampleBranches {
		branch, err := branchRepo.GetByName(ctx, sb.request.Name)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			branch, err = svc.Branches.Create(ctx, sb.request)
			if err != nil {
				return fmt.Errorf("failed to seed branch %s: %w", sb.request.Name, err)
			}
			log.Info("seeded branch", "branch_id", branch.ID, "name", branch.Name)
		case err != nil:
			return fmt.Errorf("failed to look up branch %s: %w", sb.request.Name, err)
		}

		_, err = svc.Auth.CreateBranchAdmin(ctx, service.CreateBranchAdminRequest{
			Name:     sb.request.Name + " Admin",
			Email:    sb.adminEmail,
			Password: samplePassword,
			BranchID: branch.ID,
		})
		if err != nil && !errors.Is(err, domain.ErrAuthEmailExists) {
			return fmt.Errorf("failed to seed admin %s: %w", sb.adminEmail, err)
		}

		for _, sc := range sb.customers {
			if _, err := customerRepo.GetByEmail(ctx, sc.info.Email); err == nil {
				log.Debug("customer already exists, skipping", "email", sc.info.Email)
				continue
			} else if !errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("failed to look up customer %s: %w", sc.info.Email, err)
			}

			customer, err := svc.Customers.Create(ctx, domain.GlobalScope, service.CreateCustomerRequest{
				PersonalInfo: sc.info,
				Password:     samplePassword,
				BranchID:     branch.ID,
			})
			if err != nil {
				return fmt.Errorf("failed to seed customer %s: %w", sc.info.Email, err)
			}

			// A one-month plan started here ends startOffsetDays from today.
			start := today.AddDate(0, -1, sc.startOffsetDays)
			sub, err := svc.Subscriptions.Create(ctx, domain.GlobalScope, service.CreateSubscriptionRequest{
				CustomerID: customer.ID,
				PackageID:  sc.packageID,
				StartDate:  &start,
				Activate:   true,
			})
			if err != nil {
				return fmt.Errorf("failed to seed subscription for %s: %w", sc.info.Email, err)
			}
			log.Info("seeded customer", "customer_id", customer.ID, "subscription_id", sub.ID, "end_date", sub.EndDate)
		}
	}
	return nil
}
