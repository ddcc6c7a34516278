package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/batchplant/plant-api/config"
	"github.com/batchplant/plant-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// NewTestDB opens a migrated in-memory sqlite database private to the test.
// The pool holds a single connection so every statement sees the same database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

var seq atomic.Int64

// CreateSite inserts a plant site with a unique code
func CreateSite(t *testing.T, db *gorm.DB, name string) models.Site {
	t.Helper()

	site := models.Site{
		Code:     fmt.Sprintf("S%03d", seq.Add(1)),
		Name:     name,
		IsActive: true,
	}
	if err := db.Create(&site).Error; err != nil {
		t.Fatalf("Failed to create site: %v", err)
	}
	return site
}

// CreateRecipe inserts a mix design for the site
func CreateRecipe(t *testing.T, db *gorm.DB, siteID uint, grade string) models.Recipe {
	t.Helper()

	recipe := models.Recipe{
		SiteID:        siteID,
		Code:          fmt.Sprintf("R%03d", seq.Add(1)),
		Name:          grade + " standard",
		StrengthGrade: grade,
		Slump:         180,
	}
	if err := db.Create(&recipe).Error; err != nil {
		t.Fatalf("Failed to create recipe: %v", err)
	}
	return recipe
}

// CreateTask inserts a delivery task referencing an order
func CreateTask(t *testing.T, db *gorm.DB, order models.Order, status models.TaskStatus) models.Task {
	t.Helper()

	task := models.Task{
		TaskNo:  fmt.Sprintf("T%05d", seq.Add(1)),
		OrderID: order.ID,
		SiteID:  order.SiteID,
		Volume:  8,
		Status:  status,
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("Failed to create task: %v", err)
	}
	return task
}

// InsertOrder stores an order directly, bypassing the service, in the given status
func InsertOrder(t *testing.T, db *gorm.DB, siteID uint, orderNo string, status models.OrderStatus) models.Order {
	t.Helper()

	order := models.Order{
		OrderNo:      orderNo,
		SiteID:       siteID,
		CustomerName: "Test Customer",
		DeliveryTime: time.Now().Add(24 * time.Hour).UTC(),
		Status:       status,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("Failed to insert order: %v", err)
	}
	return order
}
