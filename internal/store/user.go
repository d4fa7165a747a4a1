package store

import (
	"database/sql"
	"fmt"

	"github.com/mwalsh/linkhub/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var displayName, bio, picture sql.NullString
	err := scanner.Scan(
		&u.ID, &u.Username, &u.PasswordHash,
		&displayName, &bio, &picture,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if displayName.Valid {
		u.DisplayName = &displayName.String
	}
	if bio.Valid {
		u.Bio = &bio.String
	}
	if picture.Valid {
		u.ProfilePicture = &picture.String
	}
	return &u, nil
}

const userCols = `id, username, password_hash, display_name, bio, profile_picture, created_at, updated_at`

func (s *UserStore) Create(username, passwordHash string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername matches the username exactly (case-sensitive).
func (s *UserStore) GetByUsername(username string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE username = ?`, username)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
// SetPicture distinguishes "leave the picture alone" from "set it to
// Picture" (which may itself be nil, clearing the column).
type ProfilePatch struct {
	Username    *string
	DisplayName *string
	Bio         *string
	Picture     *string
	SetPicture  bool
}

func (s *UserStore) UpdateProfile(id int64, patch ProfilePatch) (*model.User, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	username := existing.Username
	if patch.Username != nil {
		username = *patch.Username
	}
	displayName := existing.DisplayName
	if patch.DisplayName != nil {
		displayName = patch.DisplayName
	}
	bio := existing.Bio
	if patch.Bio != nil {
		bio = patch.Bio
	}
	picture := existing.ProfilePicture
	if patch.SetPicture {
		picture = patch.Picture
	}

	_, err = s.db.Exec(
		`UPDATE users SET username = ?, display_name = ?, bio = ?, profile_picture = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		username, displayName, bio, picture, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(id)
}

// UsernameExists reports whether another user already holds the username.
func (s *UserStore) UsernameExists(username string, excludeID int64) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE username = ? AND id != ?`,
		username, excludeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return count > 0, nil
}
