package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const deviceColumns = `id, type, owner_id, house_id, host_id, update_frequency, assoc_state, enabled, created_at`

func scanDevice(row pgx.Row) (*Device, error) {
	var device Device
	err := row.Scan(
		&device.ID, &device.Type, &device.OwnerID, &device.HouseID, &device.HostID,
		&device.UpdateFrequency, &device.AssocState, &device.Enabled, &device.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// GetDevice returns an enabled device. Disabled devices are reported as
// missing, matching the enable/disable soft-delete semantics.
func (p *PostgresClient) GetDevice(ctx context.Context, deviceID uuid.UUID) (*Device, error) {
	device, err := scanDevice(p.pool.QueryRow(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE id = $1 AND enabled = true
	`, deviceID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("device not found")
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return device, nil
}

// DeviceAssocState reads the current association state of an enabled device.
func (p *PostgresClient) DeviceAssocState(ctx context.Context, deviceID uuid.UUID) (AssociationState, error) {
	var state AssociationState
	err := p.pool.QueryRow(ctx, `
		SELECT assoc_state FROM devices
		WHERE id = $1 AND enabled = true
	`, deviceID).Scan(&state)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("device not found")
		}
		return "", fmt.Errorf("failed to get device state: %w", err)
	}
	return state, nil
}

func (p *PostgresClient) listDevices(ctx context.Context, where string, arg any) ([]*Device, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+deviceColumns+` FROM devices
		WHERE `+where+` AND enabled = true
		ORDER BY created_at DESC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	devices := make([]*Device, 0)
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, device)
	}
	return devices, nil
}

func (p *PostgresClient) ListDevicesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Device, error) {
	return p.listDevices(ctx, "owner_id = $1", ownerID)
}

func (p *PostgresClient) ListDevicesByHouse(ctx context.Context, houseID uuid.UUID) ([]*Device, error) {
	return p.listDevices(ctx, "house_id = $1", houseID)
}

func (p *PostgresClient) ListDevicesByHost(ctx context.Context, hostID uuid.UUID) ([]*Device, error) {
	return p.listDevices(ctx, "host_id = $1", hostID)
}

// RegisterDevice creates a fresh unassociated device record.
func (p *PostgresClient) RegisterDevice(ctx context.Context, deviceType DeviceType) (*Device, error) {
	device, err := scanDevice(p.pool.QueryRow(ctx, `
		INSERT INTO devices (id, type)
		VALUES ($1, $2)
		RETURNING `+deviceColumns+`
	`, uuid.New(), deviceType))
	if err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}
	return device, nil
}

func (p *PostgresClient) UpdateDeviceFrequency(ctx context.Context, deviceID uuid.UUID, frequency int) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET update_frequency = $1
		WHERE id = $2 AND enabled = true
	`, frequency, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to update frequency: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// BeginDeviceAssoc flips UNASSOCIATED -> PENDING and records the requesting
// owner. The state predicate makes the update a per-row compare-and-swap:
// of two concurrent begins exactly one matches.
func (p *PostgresClient) BeginDeviceAssoc(ctx context.Context, deviceID, ownerID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET assoc_state = $1, owner_id = $2
		WHERE id = $3 AND assoc_state = $4 AND enabled = true
	`, StatePending, ownerID, deviceID, StateUnassociated)
	if err != nil {
		return false, fmt.Errorf("failed to begin association: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ConfirmDeviceAssoc flips PENDING -> ASSOCIATED and binds the confirming
// host in the same statement.
func (p *PostgresClient) ConfirmDeviceAssoc(ctx context.Context, deviceID, hostID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET assoc_state = $1, host_id = $2
		WHERE id = $3 AND assoc_state = $4 AND enabled = true
	`, StateAssociated, hostID, deviceID, StatePending)
	if err != nil {
		return false, fmt.Errorf("failed to confirm association: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) DeviceHouseAssoc(ctx context.Context, deviceID, houseID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET house_id = $1
		WHERE id = $2 AND enabled = true
	`, houseID, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to assign house: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ResetDeviceAssoc returns the device to UNASSOCIATED, clearing owner,
// house and host in the same write. State precondition is the caller's
// responsibility; the reset itself is unconditional.
func (p *PostgresClient) ResetDeviceAssoc(ctx context.Context, deviceID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET assoc_state = $1, owner_id = NULL, house_id = NULL, host_id = NULL
		WHERE id = $2 AND enabled = true
	`, StateUnassociated, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to reset association: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) SetDeviceEnabled(ctx context.Context, deviceID uuid.UUID, enabled bool) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE devices SET enabled = $1 WHERE id = $2
	`, enabled, deviceID)
	if err != nil {
		return false, fmt.Errorf("failed to set device enabled: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
