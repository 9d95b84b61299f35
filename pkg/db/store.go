package db

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/models"
)

// Store persists gateways, sensors and their last readings. It is a
// dispatcher subscriber, so every published change is written through.
type Store struct {
	Db *DB
}

func NewStore(db *DB) *Store {
	return &Store{Db: db}
}

func (s *Store) SaveGateway(info models.GatewayInfo) error {
	row := models.Gateway{
		ID:              info.ID,
		Address:         info.Address,
		Name:            info.Name,
		SendDataToCloud: info.SendDataToCloud,
		Upstream:        info.Upstream,
		LastSeen:        info.LastSeen,
	}
	return s.Db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"address", "name", "send_data_to_cloud", "upstream", "last_seen"}),
	}).Create(&row).Error
}

// SaveSensor writes a sensor with its values. Sensors without a gateway
// are not persisted.
func (s *Store) SaveSensor(info models.SensorInfo) error {
	if info.GatewayID == "" {
		return nil
	}
	return s.Db.Conn.Transaction(func(tx *gorm.DB) error {
		if err := ensureGateway(tx, info.GatewayID, info.LastUpdate); err != nil {
			return err
		}
		row := models.Sensor{
			ID:         info.ID,
			GatewayID:  info.GatewayID,
			Kind:       info.Kind,
			Name:       info.Name,
			BatteryLow: info.BatteryLow,
			LastUpdate: info.LastUpdate,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"gateway_id", "kind", "name", "battery_low", "last_update"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		for _, m := range info.Values {
			if err := saveReading(tx, models.ReadingFromMeasurement(info.ID, m, info.LastUpdate)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Deliver writes one update. Sensor names set through SaveSensor are kept.
func (s *Store) Deliver(ctx context.Context, u models.Update) error {
	if u.GatewayID == "" {
		return nil
	}
	err := s.Db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureGateway(tx, u.GatewayID, u.Timestamp); err != nil {
			return err
		}
		row := models.Sensor{
			ID:         u.SensorID,
			GatewayID:  u.GatewayID,
			Kind:       u.Kind,
			BatteryLow: u.BatteryLow,
			LastUpdate: u.Timestamp,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"gateway_id", "kind", "battery_low", "last_update"}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		if u.Type == models.UpdateValue && u.Measurement != nil {
			return saveReading(tx, models.ReadingFromMeasurement(u.SensorID, *u.Measurement, u.Timestamp))
		}
		return nil
	})
	if err != nil {
		common.GetLoggerWith(common.LoggerNameStore,
			zap.String(common.LoggerFieldSensorID, u.SensorID)).
			Error("Failed to persist update", zap.Error(err))
	}
	return err
}

// LoadSnapshot reads everything needed to restore the registry.
func (s *Store) LoadSnapshot() ([]models.Gateway, error) {
	var gateways []models.Gateway
	err := s.Db.Conn.
		Preload("Sensors.Readings").
		Order("id").
		Find(&gateways).Error
	return gateways, err
}

func ensureGateway(tx *gorm.DB, gatewayID string, seen time.Time) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Gateway{ID: gatewayID, SendDataToCloud: true, LastSeen: seen}).Error
}

func saveReading(tx *gorm.DB, reading models.Reading) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sensor_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "prefix", "idx", "value", "text", "unit", "valid", "error", "updated_at"}),
	}).Create(&reading).Error
}
