package db

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
	_ "liyu1981.xyz/mobilealerts-proxy/pkg/testing"

	"gorm.io/gorm"
)

func tableExists(db *gorm.DB, tableName string) bool {
	var count int64
	err := db.Raw(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?`, tableName,
	).Scan(&count).Error
	return err == nil && count > 0
}

func TestWithMemorySqlite(t *testing.T) {
	common.SetTestLoggerNop()

	dialector := UseMemorySqliteDialector()

	instance := GetInstance(dialector)
	if instance == nil {
		t.Fatal("Expected non-nil DB instance")
	}

	var tables = []string{"gateways", "sensors", "readings"}
	for _, table := range tables {
		if !tableExists(instance.Conn, table) {
			t.Errorf("Expected table %q to exist after migration", table)
		}
	}
}

func TestSingletonConcurrency(t *testing.T) {
	common.SetTestLoggerNop()

	const goroutineCount = 20

	var wg sync.WaitGroup
	instances := make(chan *DB, goroutineCount)

	for range goroutineCount {
		wg.Add(1)
		go func() {
			defer wg.Done()
			instance := GetInstance(UseMemorySqliteDialector())
			instances <- instance
		}()
	}

	wg.Wait()
	close(instances)

	var first *DB
	for inst := range instances {
		if first == nil {
			first = inst
			continue
		}
		if inst != first {
			t.Error("Expected all instances to be the same (singleton), but found different ones")
		}
	}
}

func TestUseDialector(t *testing.T) {
	if name := UseDialector("memory", "").Name(); name != "sqlite" {
		t.Errorf("expected sqlite dialector, got %q", name)
	}
	if name := UseDialector("file", "other.db").Name(); name != "sqlite" {
		t.Errorf("expected sqlite dialector, got %q", name)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	common.SetTestLoggerNop()

	instance := GetInstance(UseMemorySqliteDialector())

	orphan := models.Sensor{ID: uuid.NewString(), GatewayID: uuid.NewString(), Kind: models.KindThermo}
	if err := instance.Conn.Create(&orphan).Error; err == nil {
		t.Error("Expected sensor without gateway to violate the foreign key")
	}

	gateway := models.Gateway{ID: uuid.NewString(), SendDataToCloud: true}
	if err := instance.Conn.Create(&gateway).Error; err != nil {
		t.Fatalf("Create gateway: %v", err)
	}
	sensor := models.Sensor{ID: uuid.NewString(), GatewayID: gateway.ID, Kind: models.KindThermo}
	if err := instance.Conn.Create(&sensor).Error; err != nil {
		t.Errorf("Expected sensor with known gateway to be stored, got %v", err)
	}
}
