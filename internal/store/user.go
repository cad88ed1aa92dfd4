package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Roles a user can hold.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the locally stored profile for an authenticated identity.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStore persists user profiles.
type UserStore interface {
	// Ensure creates the user if it does not exist and returns the stored row.
	Ensure(ctx context.Context, u *User) (*User, error)

	Get(ctx context.Context, id string) (*User, error)

	// List returns users newest first, and the total count.
	List(ctx context.Context, offset, limit int) ([]*User, int, error)

	// Update overwrites email, name and role.
	Update(ctx context.Context, u *User) error

	// Delete removes the user together with their sessions and predictions.
	Delete(ctx context.Context, id string) error

	Count(ctx context.Context) (int, error)
}

// UserRepository is the SQLite UserStore.
type UserRepository struct {
	db *sql.DB
}

const userColumns = `id, email, name, role, created_at, updated_at`

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &created, &updated); err != nil {
		return nil, err
	}
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return u, nil
}

// Ensure inserts the user unless the id is already present.
func (r *UserRepository) Ensure(ctx context.Context, u *User) (*User, error) {
	if u.Role == "" {
		u.Role = RoleUser
	}
	now := toNanos(time.Now())

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		u.ID, u.Email, u.Name, u.Role, now, now,
	)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, u.ID)
}

// Get retrieves a user by ID.
func (r *UserRepository) Get(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// List returns a page of users.
func (r *UserRepository) List(ctx context.Context, offset, limit int) ([]*User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Update modifies an existing user.
func (r *UserRepository) Update(ctx context.Context, u *User) error {
	u.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, name = ?, role = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.Name, u.Role, toNanos(u.UpdatedAt), u.ID,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// Delete removes a user and everything they own in one transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete predictions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
