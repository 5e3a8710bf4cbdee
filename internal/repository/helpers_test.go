package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stwalsh4118/seawatch/internal/config"
	"github.com/stwalsh4118/seawatch/internal/database"
)

// getTestConfig returns database configuration for integration tests.
func getTestConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     getEnvOrDefault("DB_PORT", "5432"),
		Name:     getEnvOrDefault("DB_NAME", "seawatch"),
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", "postgres"),
		SSLMode:  "disable",
		PoolMin:  1,
		PoolMax:  5,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupTestDatabase connects to the integration database and applies the
// bootstrap schema. The test is skipped in short mode or without PostGIS.
func setupTestDatabase(t *testing.T) *database.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := database.NewPostgresPool(ctx, getTestConfig())
	if err != nil {
		t.Skipf("Skipping integration test, database unavailable: %v", err)
	}
	t.Cleanup(db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		t.Fatalf("Failed to apply schema: %v", err)
	}
	return db
}

func insertTestVessel(t *testing.T, db *database.Database, name string, mmsi int64, tracked bool) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO vessels (ship_name, mmsi, tracking_enabled)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, mmsi, tracked).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert vessel: %v", err)
	}

	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM vessel_positions WHERE vessel_id = $1`, id)
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM vessels WHERE id = $1`, id)
	})
	return id
}

func insertTestPort(t *testing.T, db *database.Database, name string, lat, lon float64) int64 {
	t.Helper()
	ctx := context.Background()

	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO ports (name, latitude, longitude)
		VALUES ($1, $2, $3)
		RETURNING id
	`, name, lat, lon).Scan(&id)
	if err != nil {
		t.Fatalf("Failed to insert port: %v", err)
	}

	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM ports WHERE id = $1`, id)
	})
	return id
}

func deletePositionsForMMSI(t *testing.T, db *database.Database, mmsi int64) {
	t.Helper()
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), `DELETE FROM vessel_positions WHERE mmsi = $1`, mmsi)
	})
}
