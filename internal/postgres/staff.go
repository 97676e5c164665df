package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tableside-pos/api/internal/model"
)

const staffColumns = `id, email, full_name, hashed_password, branch_id, created_at`

const getStaffByEmail = `SELECT ` + staffColumns + ` FROM staff WHERE email = $1`

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (model.Staff, error) {
	rows, err := q.db.Query(ctx, getStaffByEmail, strings.ToLower(email))
	if err != nil {
		return model.Staff{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanStaff)
}

const getStaff = `SELECT ` + staffColumns + ` FROM staff WHERE id = $1`

func (q *Queries) GetStaff(ctx context.Context, id uuid.UUID) (model.Staff, error) {
	rows, err := q.db.Query(ctx, getStaff, id)
	if err != nil {
		return model.Staff{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanStaff)
}

const insertStaff = `INSERT INTO staff (email, full_name, hashed_password, branch_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + staffColumns

// InsertStaff creates a staff account. BranchID may be uuid.Nil.
func (q *Queries) InsertStaff(ctx context.Context, s model.Staff) (model.Staff, error) {
	rows, err := q.db.Query(ctx, insertStaff, strings.ToLower(s.Email), s.FullName, s.HashedPassword, uuidOrNull(s.BranchID))
	if err != nil {
		return model.Staff{}, err
	}
	return pgx.CollectExactlyOneRow(rows, scanStaff)
}

const getBranch = `SELECT id, name, location, created_at FROM branches WHERE id = $1`

func (q *Queries) GetBranch(ctx context.Context, id uuid.UUID) (model.Branch, error) {
	var b model.Branch
	err := q.db.QueryRow(ctx, getBranch, id).Scan(&b.ID, &b.Name, &b.Location, &b.CreatedAt)
	return b, err
}

const insertBranch = `INSERT INTO branches (name, location) VALUES ($1, $2)
RETURNING id, name, location, created_at`

func (q *Queries) InsertBranch(ctx context.Context, name, location string) (model.Branch, error) {
	var b model.Branch
	err := q.db.QueryRow(ctx, insertBranch, name, location).Scan(&b.ID, &b.Name, &b.Location, &b.CreatedAt)
	return b, err
}

func scanStaff(row pgx.CollectableRow) (model.Staff, error) {
	var (
		s      model.Staff
		branch pgtype.UUID
	)
	if err := row.Scan(&s.ID, &s.Email, &s.FullName, &s.HashedPassword, &branch, &s.CreatedAt); err != nil {
		return model.Staff{}, err
	}
	s.BranchID = uuidFromNull(branch)
	return s, nil
}
