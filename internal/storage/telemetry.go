package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertTHReading appends a thermo-hygrometer sample. The timestamp is
// assigned by the database, not taken from the sensor.
func (p *PostgresClient) InsertTHReading(ctx context.Context, deviceID uuid.UUID, battery int, temperature, humidity, heatIndex float32) (*THReading, error) {
	var reading THReading
	err := p.pool.QueryRow(ctx, `
		INSERT INTO th_readings (id, device_id, timestamp, battery_percentage, temperature, humidity, heat_index)
		VALUES ($1, $2, NOW(), $3, $4, $5, $6)
		RETURNING id, device_id, timestamp, battery_percentage, temperature, humidity, heat_index
	`, uuid.New(), deviceID, battery, temperature, humidity, heatIndex).Scan(
		&reading.ID, &reading.DeviceID, &reading.Timestamp,
		&reading.BatteryPercentage, &reading.Temperature, &reading.Humidity, &reading.HeatIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert reading: %w", err)
	}
	return &reading, nil
}

func (p *PostgresClient) GetTHReading(ctx context.Context, readingID uuid.UUID) (*THReading, error) {
	var reading THReading
	err := p.pool.QueryRow(ctx, `
		SELECT id, device_id, timestamp, battery_percentage, temperature, humidity, heat_index
		FROM th_readings
		WHERE id = $1
	`, readingID).Scan(
		&reading.ID, &reading.DeviceID, &reading.Timestamp,
		&reading.BatteryPercentage, &reading.Temperature, &reading.Humidity, &reading.HeatIndex,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("reading not found")
		}
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return &reading, nil
}

func (p *PostgresClient) ListTHReadingsByDevice(ctx context.Context, deviceID uuid.UUID) ([]*THReading, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, device_id, timestamp, battery_percentage, temperature, humidity, heat_index
		FROM th_readings
		WHERE device_id = $1
		ORDER BY timestamp DESC
	`, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	readings := make([]*THReading, 0)
	for rows.Next() {
		var reading THReading
		err := rows.Scan(
			&reading.ID, &reading.DeviceID, &reading.Timestamp,
			&reading.BatteryPercentage, &reading.Temperature, &reading.Humidity, &reading.HeatIndex,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, &reading)
	}
	return readings, nil
}
