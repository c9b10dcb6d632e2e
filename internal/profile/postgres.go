package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-auth/internal/auth"
	"storefront-auth/internal/db"
)

type PostgresDirectory struct {
	db *db.DB
}

func NewPostgresDirectory(db *db.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var (
		p    Profile
		role string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT id, email, name, phone, role, company_name, gst_number
		FROM profiles
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Email, &p.Name, &p.Phone, &role, &p.CompanyName, &p.GSTNumber)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("profile: get %s: %w", id, err)
	}

	p.Role, err = auth.ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("profile: %s: %w", id, err)
	}

	return &p, nil
}

func (d *PostgresDirectory) CreateProfile(ctx context.Context, p Profile) (*Profile, error) {
	if p.ID == "" {
		return nil, errors.New("profile: missing id")
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("profile: invalid role %q", p.Role)
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, name, phone, role, company_name, gst_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.Email, p.Name, p.Phone, string(p.Role), p.CompanyName, p.GSTNumber)

	if db.IsUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("profile: create %s: %w", p.ID, err)
	}

	return &p, nil
}
