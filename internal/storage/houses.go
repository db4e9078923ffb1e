package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (p *PostgresClient) GetHouse(ctx context.Context, houseID uuid.UUID) (*House, error) {
	var house House
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at
		FROM houses
		WHERE id = $1
	`, houseID).Scan(&house.ID, &house.Name, &house.OwnerID, &house.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("house not found")
		}
		return nil, fmt.Errorf("failed to get house: %w", err)
	}
	return &house, nil
}

func (p *PostgresClient) CreateHouse(ctx context.Context, name string, ownerID uuid.UUID) (*House, error) {
	var house House
	err := p.pool.QueryRow(ctx, `
		INSERT INTO houses (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, owner_id, created_at
	`, uuid.New(), name, ownerID).Scan(&house.ID, &house.Name, &house.OwnerID, &house.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create house: %w", err)
	}
	return &house, nil
}

func (p *PostgresClient) RenameHouse(ctx context.Context, houseID uuid.UUID, name string) (bool, error) {
	result, err := p.pool.Exec(ctx, `
		UPDATE houses SET name = $1 WHERE id = $2
	`, name, houseID)
	if err != nil {
		return false, fmt.Errorf("failed to rename house: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (p *PostgresClient) ListHousesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*House, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, owner_id, created_at
		FROM houses
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list houses: %w", err)
	}
	defer rows.Close()

	houses := make([]*House, 0)
	for rows.Next() {
		var house House
		if err := rows.Scan(&house.ID, &house.Name, &house.OwnerID, &house.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan house: %w", err)
		}
		houses = append(houses, &house)
	}
	return houses, nil
}

func (p *PostgresClient) DeleteHouse(ctx context.Context, houseID uuid.UUID) (bool, error) {
	result, err := p.pool.Exec(ctx, `DELETE FROM houses WHERE id = $1`, houseID)
	if err != nil {
		return false, fmt.Errorf("failed to delete house: %w", err)
	}
	return result.RowsAffected() > 0, nil
}
