package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/user"
)

const userColumns = `id, name, username, email, bio, major, interests, is_active, roles, password_hash, created_at, updated_at, last_login`

type userRow struct {
	ID           int            `db:"id"`
	Name         null.String    `db:"name"`
	Username     string         `db:"username"`
	Email        string         `db:"email"`
	Bio          string         `db:"bio"`
	Major        string         `db:"major"`
	Interests    string         `db:"interests"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func (r userRow) unpack() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username,
		Email:        r.Email,
		Bio:          r.Bio,
		Major:        r.Major,
		Interests:    r.Interests,
		IsActive:     null.BoolFrom(r.IsActive).Ptr(),
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		LastLogin:    r.LastLogin.Time,
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo *userRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	ids := make([]int, 0, len(excludedUsers))
	for _, u := range excludedUsers {
		ids = append(ids, u.ID)
	}

	query := `SELECT EXISTS (
		SELECT 1 FROM "user"
		WHERE (lower(username) = lower($1) OR lower(email) = lower($2)) AND id != ALL($3)
	)`
	var exists bool
	if err := repo.db.GetContext(ctx, &exists, query, username, email, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	if exists {
		return user.ErrUserExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	query := `INSERT INTO "user" (name, username, email, bio, major, interests, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	isActive := true
	if usr.IsActive != nil {
		isActive = *usr.IsActive
	}
	err := repo.db.GetContext(
		ctx, &usr.ID, query,
		usr.Name, usr.Username, usr.Email, usr.Bio, usr.Major, usr.Interests,
		isActive, pq.Array(usr.Roles), usr.PasswordHash, usr.CreatedAt, usr.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getBy(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var r userRow
	query := fmt.Sprintf(`SELECT %s FROM "user" WHERE %s`, userColumns, where)
	if err := repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "getting user")
	}
	return r.unpack(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getBy(ctx, "id = $1", id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, "lower(username) = lower($1)", username)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getBy(ctx, "lower(email) = lower($1)", email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getBy(ctx, "lower(username) = lower($1) OR lower(email) = lower($1)", username)
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if search := core.CleanString(filter.Search, true); search != "" {
			p := arg("%" + search + "%")
			conds = append(conds, fmt.Sprintf("(lower(name) LIKE %[1]s OR lower(username) LIKE %[1]s OR lower(email) LIKE %[1]s)", p))
		}
		if len(filter.Roles) > 0 {
			conds = append(conds, "roles && "+arg(pq.Array(filter.Roles)))
		}
		if filter.IsActive != nil {
			conds = append(conds, "is_active = "+arg(*filter.IsActive))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "created_at >= "+arg(filter.CreatedFrom))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "created_at <= "+arg(filter.CreatedTo))
		}
	}

	query := fmt.Sprintf(`SELECT %s FROM "user"`, userColumns)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy(ordering, "created_at DESC")

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.unpack())
	}
	return users, nil
}

func (repo *userRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, `SELECT count(*) FROM "user"`); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo *userRepository) UserJoinDates(ctx context.Context) ([]time.Time, error) {
	var dates []time.Time
	if err := repo.db.SelectContext(ctx, &dates, `SELECT created_at FROM "user"`); err != nil {
		return nil, errors.Wrap(err, "querying user join dates")
	}
	return dates, nil
}

// UpdateUser only saves set fields; empty strings and nil slices keep the stored value.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	query := fmt.Sprintf(`UPDATE "user" SET
		name = COALESCE(NULLIF($2, ''), name),
		username = COALESCE(NULLIF($3, ''), username),
		email = COALESCE(NULLIF($4, ''), email),
		bio = $5,
		major = $6,
		interests = $7,
		roles = COALESCE($8, roles),
		password_hash = COALESCE($9, password_hash),
		is_active = COALESCE($10, is_active),
		updated_at = COALESCE($11, updated_at),
		last_login = COALESCE($12, last_login)
		WHERE id = $1
		RETURNING %s`, userColumns)

	var r userRow
	err := repo.db.GetContext(
		ctx, &r, query,
		usr.ID, usr.Name, usr.Username, usr.Email, usr.Bio, usr.Major, usr.Interests,
		pq.Array(usr.Roles), usr.PasswordHash, isActive,
		null.NewTime(usr.UpdatedAt, !usr.UpdatedAt.IsZero()),
		null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return r.unpack(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM "user" WHERE id = ANY($1)`, pq.Array(ids))
	return errors.Wrap(err, "deleting users")
}

func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return fallback
	}
	parts := make([]string, 0, len(ordering))
	for _, o := range ordering {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, ", ")
}
