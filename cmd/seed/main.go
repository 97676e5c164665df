package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/config"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/postgres"
	"golang.org/x/crypto/bcrypt"
)

type seedBranch struct {
	name     string
	location string
	staff    []seedStaff
}

type seedStaff struct {
	email    string
	fullName string
}

var branches = []seedBranch{
	{
		name:     "Cardiff",
		location: "12 Mill Lane, Cardiff",
		staff: []seedStaff{
			{email: "cardiff.floor@tableside.test", fullName: "Rhys Morgan"},
			{email: "cardiff.kitchen@tableside.test", fullName: "Ffion Davies"},
		},
	},
	{
		name:     "Wembley",
		location: "4 Olympic Way, Wembley",
		staff: []seedStaff{
			{email: "wembley.floor@tableside.test", fullName: "Priya Shah"},
		},
	},
}

var menu = []model.MenuItem{
	{Name: "Margherita", Description: "Tomato, mozzarella, basil", Price: decimal.RequireFromString("9.50"), Category: "Pizza"},
	{Name: "Diavola", Description: "Spicy salami, chilli", Price: decimal.RequireFromString("11.00"), Category: "Pizza"},
	{Name: "Garlic Bread", Description: "With rosemary oil", Price: decimal.RequireFromString("4.25"), Category: "Starters"},
	{Name: "Burrata", Description: "Cherry tomatoes, pesto", Price: decimal.RequireFromString("7.75"), Category: "Starters"},
	{Name: "Tiramisu", Description: "House recipe", Price: decimal.RequireFromString("5.50"), Category: "Desserts"},
	{Name: "Lemonade", Description: "Freshly squeezed", Price: decimal.RequireFromString("3.00"), Category: "Drinks"},
}

func main() {
	password := flag.String("password", "", "Password for every seeded staff account")
	flag.Parse()

	log := logger.New(logger.Options{ServiceName: "tableside-seed", Format: "console"})
	ctx := context.Background()

	_ = godotenv.Load()
	if *password == "" {
		*password = os.Getenv("SEED_PASSWORD")
	}
	if *password == "" {
		*password = "password123"
		log.Warn(ctx, "using default seed password, change it outside local development")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	if err := seed(ctx, cfg, log, *password); err != nil {
		log.Error(ctx, "seed failed", err)
		os.Exit(1)
	}
	log.Info(ctx, "seed completed")
}

// seed writes branches, staff and menu in one transaction. It is a no-op
// when the first staff account already exists.
func seed(ctx context.Context, cfg *config.Config, log *logger.Logger, password string) error {
	pool, err := postgres.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	q := postgres.New(tx)

	_, err = q.GetStaffByEmail(ctx, branches[0].staff[0].email)
	if err == nil {
		log.Info(ctx, "seed data already present, skipping")
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("check staff: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	for _, sb := range branches {
		branch, err := q.InsertBranch(ctx, sb.name, sb.location)
		if err != nil {
			return fmt.Errorf("insert branch %s: %w", sb.name, err)
		}
		bctx := log.WithBranchID(ctx, branch.ID.String())
		log.Info(bctx, "created branch "+branch.Name)

		for _, ss := range sb.staff {
			staff, err := q.InsertStaff(ctx, model.Staff{
				Email:          ss.email,
				FullName:       ss.fullName,
				HashedPassword: string(hashed),
				BranchID:       branch.ID,
			})
			if err != nil {
				return fmt.Errorf("insert staff %s: %w", ss.email, err)
			}
			log.Info(log.WithUserID(bctx, staff.ID.String()), "created staff "+staff.Email)
		}
	}

	// Unassigned account for exercising the no-branch path.
	if _, err := q.InsertStaff(ctx, model.Staff{
		Email:          "new.starter@tableside.test",
		FullName:       "New Starter",
		HashedPassword: string(hashed),
	}); err != nil {
		return fmt.Errorf("insert unassigned staff: %w", err)
	}

	for _, item := range menu {
		item.Availability = true
		if _, err := q.InsertMenuItem(ctx, item); err != nil {
			return fmt.Errorf("insert menu item %s: %w", item.Name, err)
		}
	}
	log.Info(log.WithField(ctx, "items", len(menu)), "created menu")

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
