package db

import (
	"context"
	"time"

	"apigateway/internal/models"
)

// GetActiveReferer returns the active referer record for the given key and
// referer identity, bumping its usage counter in the same statement. A
// missing or non-active pair yields pgx.ErrNoRows.
func (db *DB) GetActiveReferer(ctx context.Context, apiKey, referer string) (*models.Referer, error) {
	query := `
        UPDATE referers
        SET call_count = call_count + 1, updated_at = NOW()
        WHERE key = $1 AND referer = $2 AND status = $3
        RETURNING id, key, referer, status, monthly_limit, call_count, created_at, updated_at
    `

	var rec models.Referer
	err := db.Pool.QueryRow(ctx, query, apiKey, referer, models.RefererActive).Scan(
		&rec.ID,
		&rec.Key,
		&rec.Referer,
		&rec.Status,
		&rec.MonthlyLimit,
		&rec.CallCount,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// ResolveService looks up a service by routing name and atomically bumps
// its call counter. With routeUnhealthy false, services last seen
// unhealthy are excluded from the match.
func (db *DB) ResolveService(ctx context.Context, name string, routeUnhealthy bool) (*models.Service, error) {
	query := `
        UPDATE services
        SET call_count = call_count + 1, updated_at = NOW()
        WHERE name = $1 AND ($2 OR status <> $3)
        RETURNING id, name, base_url, api_key, status, last_checked, call_count, created_at, updated_at
    `

	var svc models.Service
	err := db.Pool.QueryRow(ctx, query, name, routeUnhealthy, models.ServiceUnhealthy).Scan(
		&svc.ID,
		&svc.Name,
		&svc.BaseURL,
		&svc.APIKey,
		&svc.Status,
		&svc.LastChecked,
		&svc.CallCount,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return &svc, nil
}

// ListServices returns every registered service, for the health sweep.
func (db *DB) ListServices(ctx context.Context) ([]models.Service, error) {
	query := `
        SELECT id, name, base_url, api_key, status, last_checked, call_count, created_at, updated_at
        FROM services
        ORDER BY id
    `

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []models.Service
	for rows.Next() {
		var svc models.Service
		if err := rows.Scan(
			&svc.ID,
			&svc.Name,
			&svc.BaseURL,
			&svc.APIKey,
			&svc.Status,
			&svc.LastChecked,
			&svc.CallCount,
			&svc.CreatedAt,
			&svc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		services = append(services, svc)
	}

	return services, rows.Err()
}

// UpdateServiceStatus records a health transition. Last writer wins;
// status flips are idempotent with respect to the probed outcome.
func (db *DB) UpdateServiceStatus(ctx context.Context, id int, status models.ServiceStatus, checkedAt time.Time) error {
	query := `
        UPDATE services
        SET status = $2, last_checked = $3, updated_at = NOW()
        WHERE id = $1
    `

	_, err := db.Pool.Exec(ctx, query, id, status, checkedAt)
	return err
}

// InsertCallLog appends one forwarded-call record.
func (db *DB) InsertCallLog(ctx context.Context, log *models.CallLog) error {
	query := `
        INSERT INTO call_logs (service_id, method, path, status_code, request_time, response_time, execution_time)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := db.Pool.Exec(ctx, query,
		log.ServiceID,
		log.Method,
		log.Path,
		log.StatusCode,
		log.RequestTime,
		log.ResponseTime,
		log.ExecutionTime,
	)

	return err
}
