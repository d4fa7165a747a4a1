package store

import (
	"database/sql"
	"fmt"

	"github.com/mwalsh/linkhub/internal/model"
)

type LinkStore struct {
	db *sql.DB
}

func NewLinkStore(db *sql.DB) *LinkStore {
	return &LinkStore{db: db}
}

func scanLink(scanner interface{ Scan(...any) error }) (*model.Link, error) {
	var l model.Link
	var title sql.NullString
	err := scanner.Scan(
		&l.ID, &l.UserID, &l.Platform, &l.URL, &title,
		&l.Active, &l.SortOrder, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		l.Title = &title.String
	}
	return &l, nil
}

const linkCols = `id, user_id, platform, url, title, active, sort_order, created_at, updated_at`

// Create appends a link to the end of the owner's list: sort_order becomes
// one past the owner's current maximum (0 for the first link). The max
// read and the insert are two statements, so concurrent creates for the
// same user can race and assign duplicate orders; List stays well-defined
// regardless because order is only used for relative sorting.
func (s *LinkStore) Create(userID int64, platform, url string, title *string, active bool) (*model.Link, error) {
	var maxOrder int
	err := s.db.QueryRow(
		`SELECT COALESCE(MAX(sort_order), -1) FROM links WHERE user_id = ?`,
		userID,
	).Scan(&maxOrder)
	if err != nil {
		return nil, fmt.Errorf("query max sort_order: %w", err)
	}

	result, err := s.db.Exec(
		`INSERT INTO links (user_id, platform, url, title, active, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, platform, url, title, active, maxOrder+1,
	)
	if err != nil {
		return nil, fmt.Errorf("insert link: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *LinkStore) GetByID(id int64) (*model.Link, error) {
	row := s.db.QueryRow(`SELECT `+linkCols+` FROM links WHERE id = ?`, id)
	l, err := scanLink(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return l, nil
}

// ListByUserID returns all of the user's links, active or not, ascending
// by sort_order. The id tie-break keeps output stable if duplicate orders
// ever occur; relative order within a tie is unspecified.
func (s *LinkStore) ListByUserID(userID int64) ([]model.Link, error) {
	rows, err := s.db.Query(
		`SELECT `+linkCols+` FROM links WHERE user_id = ? ORDER BY sort_order, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []model.Link
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// Update applies the patch to url/title/active. Sort order and owner are
// not touched here; ownership is the caller's check.
func (s *LinkStore) Update(id int64, patch model.LinkPatch) (*model.Link, error) {
	existing, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	url := existing.URL
	if patch.URL != nil {
		url = *patch.URL
	}
	title := existing.Title
	if patch.Title != nil {
		title = patch.Title
	}
	active := existing.Active
	if patch.Active != nil {
		active = *patch.Active
	}

	_, err = s.db.Exec(
		`UPDATE links SET url = ?, title = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		url, title, active, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the link. Sibling sort_order values are not renumbered;
// gaps are fine since order is only relative.
func (s *LinkStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// Reorder renumbers the user's links 0..n-1 in the order given. Every id
// must belong to the user or the whole transaction rolls back.
func (s *LinkStore) Reorder(userID int64, ids []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE links SET sort_order = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare stmt: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		result, err := stmt.Exec(i, id, userID)
		if err != nil {
			return fmt.Errorf("update sort order for id %d: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("link %d not found for user %d", id, userID)
		}
	}

	return tx.Commit()
}
