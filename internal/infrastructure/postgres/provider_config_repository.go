package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/cartaporte-api/internal/domain/entity"
	"github.com/jhoicas/cartaporte-api/internal/domain/repository"
)

var _ repository.ProviderConfigLoader = (*ProviderConfigRepo)(nil)

// ProviderConfigRepo Configuration Loader respaldado por la tabla pac_providers.
type ProviderConfigRepo struct {
	pool *pgxpool.Pool
}

// NewProviderConfigRepository construye el adaptador.
func NewProviderConfigRepository(pool *pgxpool.Pool) *ProviderConfigRepo {
	return &ProviderConfigRepo{pool: pool}
}

// LoadProviders devuelve todos los PACs; el registro filtra activos y ordena.
func (r *ProviderConfigRepo) LoadProviders(ctx context.Context) ([]entity.ProviderConfig, error) {
	query := `
		SELECT id, name, type, COALESCE(sandbox_url, ''), COALESCE(production_url, ''),
			COALESCE(token, ''), COALESCE(username, ''), COALESCE(password, ''), active, priority
		FROM pac_providers ORDER BY priority, name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pac providers: %w", err)
	}
	defer rows.Close()

	var list []entity.ProviderConfig
	for rows.Next() {
		var (
			p   entity.ProviderConfig
			typ string
		)
		if err := rows.Scan(&p.ID, &p.Name, &typ, &p.SandboxURL, &p.ProductionURL,
			&p.Credentials.Token, &p.Credentials.User, &p.Credentials.Password, &p.Active, &p.Priority); err != nil {
			return nil, fmt.Errorf("scan pac provider: %w", err)
		}
		t, err := entity.ParseProviderType(typ)
		if err != nil {
			return nil, fmt.Errorf("pac %s: %w", p.Name, err)
		}
		p.Type = t
		list = append(list, p)
	}
	return list, rows.Err()
}

// Upsert sincroniza la tabla con la lista dada, por nombre. Los PACs que no vienen en
// la lista quedan inactivos; nunca se borran porque documentos timbrados los referencian.
// Devuelve cuántos PACs se desactivaron.
func (r *ProviderConfigRepo) Upsert(ctx context.Context, providers []entity.ProviderConfig) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		names = append(names, p.Name)
		batch.Queue(`
			INSERT INTO pac_providers (id, name, type, sandbox_url, production_url, token, username, password, active, priority)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (name) DO UPDATE SET
				type = EXCLUDED.type, sandbox_url = EXCLUDED.sandbox_url, production_url = EXCLUDED.production_url,
				token = EXCLUDED.token, username = EXCLUDED.username, password = EXCLUDED.password,
				active = EXCLUDED.active, priority = EXCLUDED.priority`,
			id, p.Name, string(p.Type), nullable(p.SandboxURL), nullable(p.ProductionURL),
			nullable(p.Credentials.Token), nullable(p.Credentials.User), nullable(p.Credentials.Password),
			p.Active, p.Priority)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("upsert pac providers: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE pac_providers SET active = FALSE WHERE active AND NOT (name = ANY($1))`, names)
	if err != nil {
		return 0, fmt.Errorf("deactivate pac providers: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
