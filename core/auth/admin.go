package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type AdminUser struct {
	ID           string    `json:"id" db:"admin_id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

var ErrAdminNotFound = errors.New("admin not found")

func CreateAdmin(ctx context.Context, db sqlx.ExtContext, admin AdminUser) error {
	const q = `
	INSERT INTO admins (admin_id, username, email, password_hash, created_at, updated_at)
	VALUES (:admin_id, :username, :email, :password_hash, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, admin); err != nil {
		return fmt.Errorf("inserting admin: %w", err)
	}
	return nil
}

func FetchAdminByUsername(ctx context.Context, db sqlx.ExtContext, username string) (AdminUser, error) {
	const q = `SELECT * FROM admins WHERE username = $1`

	var admin AdminUser
	if err := sqlx.GetContext(ctx, db, &admin, q, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUser{}, ErrAdminNotFound
		}
		return AdminUser{}, fmt.Errorf("selecting admin[%s]: %w", username, err)
	}
	return admin, nil
}

func FetchAdminByID(ctx context.Context, db sqlx.ExtContext, id string) (AdminUser, error) {
	const q = `SELECT * FROM admins WHERE admin_id = $1`

	var admin AdminUser
	if err := sqlx.GetContext(ctx, db, &admin, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUser{}, ErrAdminNotFound
		}
		return AdminUser{}, fmt.Errorf("selecting admin[%s]: %w", id, err)
	}
	return admin, nil
}

func FetchAdminByEmail(ctx context.Context, db sqlx.ExtContext, email string) (AdminUser, error) {
	const q = `SELECT * FROM admins WHERE lower(email) = lower($1)`

	var admin AdminUser
	if err := sqlx.GetContext(ctx, db, &admin, q, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AdminUser{}, ErrAdminNotFound
		}
		return AdminUser{}, fmt.Errorf("selecting admin by email: %w", err)
	}
	return admin, nil
}
