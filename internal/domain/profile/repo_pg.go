package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vitalia/portal/internal/platform/db"
)

type repoPG struct{ pool db.Beginner }

func NewRepoPG(pool db.Beginner) Repository {
	return &repoPG{pool: pool}
}

const profileCols = `id, role, full_name, age, gender, avatar_url, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Role, &p.FullName, &p.Age, &p.Gender, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

// likePattern escapes LIKE metacharacters in a user-supplied fragment.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(q)) + "%"
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		return q.QueryRow(ctx, `
			INSERT INTO profiles (id, role, full_name, age, gender, avatar_url)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING created_at, updated_at`,
			p.ID, p.Role, p.FullName, p.Age, p.Gender, p.AvatarURL).Scan(&p.CreatedAt, &p.UpdatedAt)
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	var out *Profile
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		var err error
		out, err = scanProfile(q.QueryRow(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = $1`, id))
		return err
	})
	return out, err
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		err := q.QueryRow(ctx, `
			UPDATE profiles SET full_name=$2, age=$3, gender=$4, updated_at=NOW()
			WHERE id = $1
			RETURNING updated_at`,
			p.ID, p.FullName, p.Age, p.Gender).Scan(&p.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	})
}

func (r *repoPG) UpdateAvatar(ctx context.Context, id uuid.UUID, url string) error {
	return db.Run(ctx, r.pool, func(q db.Querier) error {
		tag, err := q.Exec(ctx, `UPDATE profiles SET avatar_url=$2, updated_at=NOW() WHERE id = $1`, id, url)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *repoPG) ListPatients(ctx context.Context, query string, limit, offset int) ([]*Profile, int, error) {
	where := `role = 'patient'`
	args := []any{}
	if strings.TrimSpace(query) != "" {
		where += ` AND full_name ILIKE $1`
		args = append(args, likePattern(query))
	}

	var items []*Profile
	var total int
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE `+where, args...).Scan(&total); err != nil {
			return err
		}
		n := len(args)
		rows, err := q.Query(ctx, fmt.Sprintf(`SELECT %s FROM profiles WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			profileCols, where, n+1, n+2), append(args, limit, offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanProfile(rows)
			if err != nil {
				return err
			}
			items = append(items, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repoPG) Registry(ctx context.Context, query string) ([]*RegistryEntry, error) {
	sql := `
		SELECT p.id, p.role, p.full_name, p.age, p.gender, p.avatar_url, p.created_at, p.updated_at,
		       b.category
		FROM profiles p
		LEFT JOIN LATERAL (
			SELECT category FROM bmi_records
			WHERE patient_id = p.id
			ORDER BY created_at DESC LIMIT 1
		) b ON true
		WHERE p.role = 'patient'`
	args := []any{}
	if strings.TrimSpace(query) != "" {
		sql += ` AND p.full_name ILIKE $1`
		args = append(args, likePattern(query))
	}
	sql += ` ORDER BY p.created_at DESC`

	var out []*RegistryEntry
	err := db.Run(ctx, r.pool, func(q db.Querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var e RegistryEntry
			if err := rows.Scan(&e.ID, &e.Role, &e.FullName, &e.Age, &e.Gender, &e.AvatarURL,
				&e.CreatedAt, &e.UpdatedAt, &e.LatestBMICategory); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return rows.Err()
	})
	return out, err
}
