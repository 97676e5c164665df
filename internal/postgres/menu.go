package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside-pos/api/internal/model"
)

const menuColumns = `id, name, description, price, category, availability, image_url, created_at, updated_at`

const listAvailableMenuItems = `SELECT ` + menuColumns + `
FROM menu_items
WHERE availability = true
ORDER BY category, name`

// ListAvailableMenuItems returns the orderable menu, by category then name.
func (q *Queries) ListAvailableMenuItems(ctx context.Context) ([]model.MenuItem, error) {
	rows, err := q.db.Query(ctx, listAvailableMenuItems)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanMenuItem)
}

const insertMenuItem = `INSERT INTO menu_items (name, description, price, category, availability, image_url)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + menuColumns

// InsertMenuItem adds an item to the menu.
func (q *Queries) InsertMenuItem(ctx context.Context, item model.MenuItem) (model.MenuItem, error) {
	rows, err := q.db.Query(ctx, insertMenuItem,
		item.Name,
		item.Description,
		decimalToNumeric(item.Price),
		item.Category,
		item.Availability,
		textOrNull(item.ImageURL),
	)
	if err != nil {
		return model.MenuItem{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanMenuItem)
}

func scanMenuItem(row pgx.CollectableRow) (model.MenuItem, error) {
	var (
		m     model.MenuItem
		price pgtype.Numeric
		image pgtype.Text
	)
	err := row.Scan(&m.ID, &m.Name, &m.Description, &price, &m.Category, &m.Availability, &image, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.MenuItem{}, err
	}
	m.Price = numericToDecimal(price)
	m.ImageURL = image.String
	return m, nil
}
