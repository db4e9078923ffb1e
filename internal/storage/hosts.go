package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const hostColumns = `id, api_key_hash, owner_id, house_id, assoc_state, enabled, created_at`

func scanHost(row pgx.Row) (*Host, error) {
	var host Host
	err := row.Scan(
		&host.ID, &host.APIKeyHash, &host.OwnerID, &host.HouseID,
		&host.AssocState, &host.Enabled, &host.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (p *PostgresClient) GetHost(ctx context.Context, hostID uuid.UUID) (*Host, error) {
	host, err := scanHost(p.pool.QueryRow(ctx, `
		SELECT `+hostColumns+` FROM hosts
		WHERE id = $1 AND enabled = true
	`, hostID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("host not found")
		}
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return host, nil
}

// GetHostByAPIKeyHash resolves a gateway credential to its host record.
// Disabled hosts cannot authenticate.
func (p *PostgresClient) GetHostByAPIKeyHash(ctx context.Context, apiKeyHash string) (*Host, error) {
	host, err := scanHost(p.pool.QueryRow(ctx, `
		SELECT `+hostColumns+` FROM hosts
		WHERE api_key_hash = $1 AND enabled = true
	`, apiKeyHash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("host not found")
		}
		return nil, fmt.Errorf("failed to get host: %w", err)
	}
	return host, nil
}

func (p *PostgresClient) HostAssocState(ctx context.Context, hostID uuid.UUID) (AssociationState, error) {
	var state AssociationState
	err := p.pool.QueryRow(ctx, `
		SELECT assoc_state FROM hosts
		WHERE id = $1 AND enabled = true
	`, hostID).Scan(&state)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("host not found")
		}
		return "", fmt.Errorf("failed to get host state: %w", err)
	}
	return state, nil
}

func (p *PostgresClient) listHosts(ctx context.Context, where string, arg any) ([]*Host, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+hostColumns+` FROM hosts
		WHERE `+where+` AND enabled = true
		ORDER BY created_at DESC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts: %w", err)
	}
	defer rows.Close()

	hosts := make([]*Host, 0)
	for rows.Next() {
		host, err := scanHost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

func (p *PostgresClient) ListHostsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Host, error) {
	return p.listHosts(ctx, "owner_id = $1", ownerID)
}

func (p *PostgresClient) ListHostsByHouse(ctx context.Context, houseID uuid.UUID) ([]*Host, error) {
	return p.listHosts(ctx, "house_id = $1", houseID)
}

// RegisterHost creates a fresh unassociated host. The caller generates the
// api key and passes only its hash; the plaintext is returned to the admin
// exactly once and never stored.
func (p *PostgresClient) RegisterHost(ctx context.Context, apiKeyHash string) (*Host, error) {
	host, err := scanHost(p.pool.QueryRow(ctx, `
		INSERT INTO hosts (id, api_key_hash)
		VALUES ($1, $2)
		RETURNING `+hostColumns+`
	`, uuid.New(), apiKeyHash))
	if err != nil {
		return nil, fmt.Errorf("failed to register host: %w", err)
	}
	return host, nil
}

// BeginHostAssoc flips UNASSOCIATED -> PENDING, compare-and-swap on the
// state column exactly like the device variant.
func (p *PostgresClient) BeginHostAssoc(ctx context.Context, hostID, ownerID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE hosts SET assoc_state = $1, owner_id = $2
		WHERE id = $3 AND assoc_state = $4 AND enabled = true
	`, StatePending, ownerID, hostID, StateUnassociated)
	if err != nil {
		return false, fmt.Errorf("failed to begin association: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// ConfirmHostAssoc flips PENDING -> ASSOCIATED. Hosts confirm themselves,
// so no extra id is bound.
func (p *PostgresClient) ConfirmHostAssoc(ctx context.Context, hostID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE hosts SET assoc_state = $1
		WHERE id = $2 AND assoc_state = $3 AND enabled = true
	`, StateAssociated, hostID, StatePending)
	if err != nil {
		return false, fmt.Errorf("failed to confirm association: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) HostHouseAssoc(ctx context.Context, hostID, houseID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE hosts SET house_id = $1
		WHERE id = $2 AND enabled = true
	`, houseID, hostID)
	if err != nil {
		return false, fmt.Errorf("failed to assign house: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) ResetHostAssoc(ctx context.Context, hostID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE hosts SET assoc_state = $1, owner_id = NULL, house_id = NULL
		WHERE id = $2 AND enabled = true
	`, StateUnassociated, hostID)
	if err != nil {
		return false, fmt.Errorf("failed to reset association: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) SetHostEnabled(ctx context.Context, hostID uuid.UUID, enabled bool) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE hosts SET enabled = $1 WHERE id = $2
	`, enabled, hostID)
	if err != nil {
		return false, fmt.Errorf("failed to set host enabled: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
