package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/presina-online/presina-server/internal/auth"
)

// User is an account row. Password carries the plaintext only between the
// request decoder and CreateUser, which replaces it with the argon2id hash.
type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"-"`
	Username string    `json:"username"`
}

// CreateUser hashes the password and inserts the account.
func CreateUser(ctx context.Context, u *User) error {
	hash, err := auth.HashPassword(u.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.Password = hash
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO users (id, email, password, username) VALUES ($1, $2, $3, $4)`,
			u.ID, u.Email, u.Password, u.Username)
		return err
	})
}

func GetUserByEmail(ctx context.Context, email string) (*User, error) {
	u := &User{}
	err := DB.QueryRow(ctx,
		`SELECT id, email, password, username FROM users WHERE email = $1`, email).
		Scan(&u.ID, &u.Email, &u.Password, &u.Username)
	if err != nil {
		return nil, fmt.Errorf("fetching user by email: %w", err)
	}
	return u, nil
}

func GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u := &User{}
	err := DB.QueryRow(ctx,
		`SELECT id, email, password, username FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Password, &u.Username)
	if err != nil {
		return nil, fmt.Errorf("fetching user by id: %w", err)
	}
	return u, nil
}

// AuthenticateUser verifies credentials and returns a signed session token.
func AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	u, err := GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("invalid credentials")
	}
	ok, err := auth.VerifyPassword(password, u.Password)
	if err != nil || !ok {
		return "", fmt.Errorf("invalid credentials")
	}
	token, err := auth.CreateJWT(u.ID.String())
	if err != nil {
		return "", fmt.Errorf("creating session token: %w", err)
	}
	return token, nil
}
