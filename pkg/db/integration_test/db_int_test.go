package test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/db"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	"liyu1981.xyz/mobilealerts-proxy/pkg/registry"
)

// TestStoreSurvivesRestart writes through a file database and restores a
// fresh registry from it.
func TestStoreSurvivesRestart(t *testing.T) {
	common.SetTestLoggerNop()

	if os.Getenv(common.EnvKeyRunIntegrationTests) != "true" {
		t.Skip("Skipping integration test: RUN_INTEGRATION_TESTS environment variable not set")
	}

	testPath := filepath.Join(t.TempDir(), "test.db")
	t.Setenv(common.EnvKeyMADbPath, testPath)

	instance := db.GetInstance(db.UseSqliteDialector())
	if instance == nil || instance.Conn == nil {
		t.Fatal("Expected non-nil DB connection")
	}
	if _, err := os.Stat(testPath); os.IsNotExist(err) {
		t.Errorf("Expected database file to be created at %s", testPath)
	}

	store := db.NewStore(instance)
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.SaveGateway(models.GatewayInfo{
		ID:              "001D8C0E1A2B",
		Address:         "192.168.1.20",
		SendDataToCloud: false,
		Upstream:        "192.168.1.5:8080",
		LastSeen:        now,
	}); err != nil {
		t.Fatalf("SaveGateway: %v", err)
	}
	if err := store.SaveSensor(models.SensorInfo{
		ID:         "02010203AB01",
		GatewayID:  "001D8C0E1A2B",
		Kind:       models.KindThermo,
		Name:       "cellar",
		LastUpdate: now,
		Values: []models.Measurement{
			{Type: models.MeasurementTemperature, Key: "temperature", Value: 21.5, Unit: models.UnitCelsius, Valid: true},
		},
	}); err != nil {
		t.Fatalf("SaveSensor: %v", err)
	}

	snapshot, err := store.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}

	reg := registry.New(registry.Options{})
	if n := reg.Restore(snapshot); n != 1 {
		t.Errorf("Expected 1 restored sensor, got %d", n)
	}
	if reg.SendDataToCloud("001D8C0E1A2B", true) {
		t.Error("Expected ProxyState to survive the restart")
	}
	sensor, ok := reg.Sensor("02010203AB01")
	if !ok || sensor.Name != "cellar" || len(sensor.Values) != 1 {
		t.Errorf("Unexpected restored sensor: %+v", sensor)
	}
}
