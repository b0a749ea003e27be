// Package main 系统初始化入口
// 幂等创建演示租户、管理员、默认计价规则与基础物品目录
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"movecrm-api/internal/app"
	"movecrm-api/internal/config"
	"movecrm-api/internal/domain/entity"
)

func main() {
	_ = godotenv.Load()

	fmt.Println("Starting system bootstrap...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	dl, cleanup, err := app.InitializeDataLayer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize data layer: %v", err)
	}
	defer cleanup()

	// 1. 创建演示租户
	slug := envOrDefault("BOOTSTRAP_TENANT_SLUG", "demo-moving")
	exists, err := dl.TenantRepo.ExistsBySlug(ctx, slug)
	if err != nil {
		log.Fatalf("failed to check tenant existence: %v", err)
	}

	var tenantID string
	if !exists {
		fmt.Printf("Creating tenant: %s...\n", slug)
		tenant := entity.NewTenant(envOrDefault("BOOTSTRAP_TENANT_NAME", "Demo Moving Co"), slug)
		if err := dl.TenantRepo.Create(ctx, tenant); err != nil {
			log.Fatalf("failed to create tenant: %v", err)
		}
		tenantID = tenant.ID
		fmt.Printf("Tenant created with ID: %s\n", tenantID)
	} else {
		tenant, err := dl.TenantRepo.GetBySlug(ctx, slug)
		if err != nil {
			log.Fatalf("failed to get existing tenant: %v", err)
		}
		tenantID = tenant.ID
		fmt.Printf("Tenant already exists with ID: %s\n", tenantID)
	}

	// 2. 创建首个管理员
	adminEmail := envOrDefault("BOOTSTRAP_ADMIN_EMAIL", "admin@example.com")
	adminPassword := os.Getenv("BOOTSTRAP_ADMIN_PASSWORD")
	if adminPassword == "" {
		adminPassword = "admin123" // 生产环境请务必通过环境变量设置
	}

	userExists, err := dl.UserRepo.ExistsByEmail(ctx, tenantID, adminEmail)
	if err != nil {
		log.Fatalf("failed to check admin existence: %v", err)
	}
	if !userExists {
		fmt.Printf("Creating admin user: %s...\n", adminEmail)
		admin := entity.NewUser(tenantID, adminEmail, "System Admin")
		admin.Role = entity.UserRoleAdmin
		if err := admin.SetPassword(adminPassword); err != nil {
			log.Fatalf("failed to hash admin password: %v", err)
		}
		if err := dl.UserRepo.Create(ctx, admin); err != nil {
			log.Fatalf("failed to create admin user: %v", err)
		}
		fmt.Println("Admin user created successfully.")
	} else {
		fmt.Printf("Admin user %s already exists.\n", adminEmail)
	}

	// 3. 创建默认计价规则
	rules, err := dl.RuleRepo.ListActiveDefaults(ctx, tenantID)
	if err != nil {
		log.Fatalf("failed to check pricing rules: %v", err)
	}
	if len(rules) == 0 {
		fmt.Println("Creating default pricing rule...")
		rule := entity.NewPricingRule(tenantID, "Standard Rate")
		rule.RatePerVolumeUnit = decimal.RequireFromString("1.50")
		rule.LaborRatePerHour = decimal.RequireFromString("75.00")
		rule.MinimumCharge = decimal.RequireFromString("150.00")
		rule.TaxRate = decimal.RequireFromString("0.085")
		rule.IsDefault = true
		if err := dl.RuleRepo.Create(ctx, rule); err != nil {
			log.Fatalf("failed to create pricing rule: %v", err)
		}
		fmt.Println("Default pricing rule created.")
	} else {
		fmt.Println("Default pricing rule already exists.")
	}

	// 4. 创建基础物品目录
	existing, err := dl.CatalogRepo.ListActive(ctx, tenantID)
	if err != nil {
		log.Fatalf("failed to check catalog: %v", err)
	}
	if len(existing) == 0 {
		fmt.Println("Creating starter catalog...")
		for _, seed := range starterCatalog() {
			entry := entity.NewItemCatalogEntry(tenantID, seed.name,
				decimal.RequireFromString(seed.volume), decimal.RequireFromString(seed.labor))
			entry.Aliases = seed.aliases
			entry.Category = seed.category
			if err := dl.CatalogRepo.Create(ctx, entry); err != nil {
				log.Fatalf("failed to create catalog entry %s: %v", seed.name, err)
			}
		}
		fmt.Println("Starter catalog created.")
	} else {
		fmt.Printf("Catalog already has %d entries.\n", len(existing))
	}

	fmt.Println("Bootstrap completed successfully.")
}

type catalogSeed struct {
	name     string
	aliases  []string
	category string
	volume   string
	labor    string
}

func starterCatalog() []catalogSeed {
	return []catalogSeed{
		{"Sofa", []string{"couch", "loveseat"}, "furniture", "35", "1.2"},
		{"Armchair", []string{"chair", "recliner"}, "furniture", "15", "1.0"},
		{"Dining Table", []string{"table"}, "furniture", "30", "1.1"},
		{"Bed Frame", []string{"bed"}, "furniture", "40", "1.3"},
		{"Mattress", []string{"queen mattress", "king mattress"}, "furniture", "25", "1.0"},
		{"Dresser", []string{"chest of drawers"}, "furniture", "28", "1.2"},
		{"Refrigerator", []string{"fridge"}, "appliance", "45", "1.5"},
		{"Washing Machine", []string{"washer"}, "appliance", "20", "1.4"},
		{"Television", []string{"tv", "flat screen"}, "electronics", "8", "0.8"},
		{"Moving Box", []string{"box", "carton"}, "packing", "3", "0.2"},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
