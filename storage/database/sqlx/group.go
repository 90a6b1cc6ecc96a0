package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
)

const groupColumns = `g.id, g.name, g.description, g.subject_id, g.created_by, g.max_members, g.is_active, g.created_at, g.updated_at,
	(SELECT count(*) FROM membership m WHERE m.group_id = g.id) AS member_count`

type groupRow struct {
	ID          int       `db:"id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	SubjectID   int       `db:"subject_id"`
	CreatedBy   int       `db:"created_by"`
	MaxMembers  int       `db:"max_members"`
	IsActive    bool      `db:"is_active"`
	MemberCount int       `db:"member_count"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r groupRow) unpack() group.Group {
	return group.Group(r)
}

type membershipRow struct {
	ID       int       `db:"id"`
	UserID   int       `db:"user_id"`
	GroupID  int       `db:"group_id"`
	Username string    `db:"username"`
	Role     string    `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
}

func (r membershipRow) unpack() group.Membership {
	return group.Membership(r)
}

type groupRepository struct {
	db *sqlx.DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *sqlx.DB) *groupRepository {
	return &groupRepository{db: db}
}

func (repo *groupRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// ------------------------------------------------------------------ subjects

func (repo *groupRepository) QuerySubjects(ctx context.Context) ([]group.Subject, error) {
	var subjects []group.Subject
	query := `SELECT id, name, description FROM subject ORDER BY name`
	if err := repo.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	return subjects, nil
}

func (repo *groupRepository) GetSubjectByID(ctx context.Context, id int) (group.Subject, error) {
	var subj group.Subject
	query := `SELECT id, name, description FROM subject WHERE id = $1`
	if err := repo.db.GetContext(ctx, &subj, query, id); err != nil {
		return group.Subject{}, repo.trapNoRowsErr(err, group.ErrSubjectNotFound, "getting subject")
	}
	return subj, nil
}

// -------------------------------------------------------------------- groups

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	query := `INSERT INTO "group" (name, description, subject_id, created_by, max_members, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &grp.ID, query,
		grp.Name, grp.Description, grp.SubjectID, grp.CreatedBy, grp.MaxMembers, grp.IsActive, grp.CreatedAt, grp.UpdatedAt,
	)
	if err != nil {
		return group.Group{}, errors.Wrap(err, "inserting group")
	}
	return grp, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id int) (group.Group, error) {
	var r groupRow
	query := fmt.Sprintf(`SELECT %s FROM "group" g WHERE g.id = $1`, groupColumns)
	if err := repo.db.GetContext(ctx, &r, query, id); err != nil {
		return group.Group{}, repo.trapNoRowsErr(err, group.ErrNotFound, "getting group")
	}
	return r.unpack(), nil
}

func (repo *groupRepository) FilterGroups(ctx context.Context, filter *group.QueryFilter, ordering []core.DBOrdering) ([]group.Group, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	query := fmt.Sprintf(`SELECT %s FROM "group" g JOIN subject s ON s.id = g.subject_id`, groupColumns)
	if filter != nil {
		if search := core.CleanString(filter.Search, true); search != "" {
			p := arg("%" + search + "%")
			conds = append(conds, fmt.Sprintf("(lower(g.name) LIKE %[1]s OR lower(g.description) LIKE %[1]s OR lower(s.name) LIKE %[1]s)", p))
		}
		if filter.SubjectID != 0 {
			conds = append(conds, "g.subject_id = "+arg(filter.SubjectID))
		}
		if filter.IsActive != nil {
			conds = append(conds, "g.is_active = "+arg(*filter.IsActive))
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY " + orderBy(ordering, "g.created_at DESC")

	var rows []groupRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "filtering groups")
	}
	groups := make([]group.Group, 0, len(rows))
	for _, r := range rows {
		groups = append(groups, r.unpack())
	}
	return groups, nil
}

// UpdateGroup only saves set fields; empty strings and zero IDs keep the stored value.
func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group, isActive *bool) (group.Group, error) {
	query := `UPDATE "group" SET
		name = COALESCE(NULLIF($2, ''), name),
		description = COALESCE(NULLIF($3, ''), description),
		subject_id = COALESCE(NULLIF($4, 0), subject_id),
		max_members = COALESCE(NULLIF($5, 0), max_members),
		is_active = COALESCE($6, is_active),
		updated_at = $7
		WHERE id = $1
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &grp.ID, query,
		grp.ID, grp.Name, grp.Description, grp.SubjectID, grp.MaxMembers, isActive, grp.UpdatedAt,
	)
	if err != nil {
		return group.Group{}, repo.trapNoRowsErr(err, group.ErrNotFound, "updating group")
	}
	return repo.GetGroupByID(ctx, grp.ID)
}

// --------------------------------------------------------------- memberships

const membershipColumns = `m.id, m.user_id, m.group_id, u.username, m.role, m.joined_at`

func (repo *groupRepository) CreateMembership(ctx context.Context, m group.Membership) (group.Membership, error) {
	query := `INSERT INTO membership (user_id, group_id, role, joined_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	if err := repo.db.GetContext(ctx, &m.ID, query, m.UserID, m.GroupID, m.Role, m.JoinedAt); err != nil {
		return group.Membership{}, errors.Wrap(err, "inserting membership")
	}
	return m, nil
}

func (repo *groupRepository) getMembership(ctx context.Context, where string, args ...interface{}) (group.Membership, error) {
	var r membershipRow
	query := fmt.Sprintf(`SELECT %s FROM membership m JOIN "user" u ON u.id = m.user_id WHERE %s`, membershipColumns, where)
	if err := repo.db.GetContext(ctx, &r, query, args...); err != nil {
		return group.Membership{}, repo.trapNoRowsErr(err, group.ErrMembershipNotFound, "getting membership")
	}
	return r.unpack(), nil
}

func (repo *groupRepository) GetMembership(ctx context.Context, userID, groupID int) (group.Membership, error) {
	return repo.getMembership(ctx, "m.user_id = $1 AND m.group_id = $2", userID, groupID)
}

func (repo *groupRepository) GetMembershipByID(ctx context.Context, id int) (group.Membership, error) {
	return repo.getMembership(ctx, "m.id = $1", id)
}

func (repo *groupRepository) QueryGroupMemberships(ctx context.Context, groupID int) ([]group.Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM membership m JOIN "user" u ON u.id = m.user_id
		WHERE m.group_id = $1 ORDER BY m.joined_at`, membershipColumns)
	var rows []membershipRow
	if err := repo.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	members := make([]group.Membership, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.unpack())
	}
	return members, nil
}

func (repo *groupRepository) QueryUserMemberships(ctx context.Context, userID int) ([]group.Membership, error) {
	query := fmt.Sprintf(`SELECT %s FROM membership m JOIN "user" u ON u.id = m.user_id
		WHERE m.user_id = $1 ORDER BY m.joined_at`, membershipColumns)
	var rows []membershipRow
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying memberships")
	}
	members := make([]group.Membership, 0, len(rows))
	for _, r := range rows {
		members = append(members, r.unpack())
	}
	return members, nil
}

func (repo *groupRepository) CountMemberships(ctx context.Context, groupID int) (int, error) {
	var count int
	query := `SELECT count(*) FROM membership WHERE group_id = $1`
	if err := repo.db.GetContext(ctx, &count, query, groupID); err != nil {
		return 0, errors.Wrap(err, "counting memberships")
	}
	return count, nil
}

func (repo *groupRepository) CountMembershipsByRole(ctx context.Context, groupID int, role string) (int, error) {
	var count int
	query := `SELECT count(*) FROM membership WHERE group_id = $1 AND role = $2`
	if err := repo.db.GetContext(ctx, &count, query, groupID, role); err != nil {
		return 0, errors.Wrap(err, "counting memberships by role")
	}
	return count, nil
}

func (repo *groupRepository) MembershipJoinDates(ctx context.Context, groupID int) ([]time.Time, error) {
	var dates []time.Time
	query := `SELECT joined_at FROM membership WHERE group_id = $1`
	if err := repo.db.SelectContext(ctx, &dates, query, groupID); err != nil {
		return nil, errors.Wrap(err, "querying membership join dates")
	}
	return dates, nil
}

func (repo *groupRepository) UpdateMembershipRole(ctx context.Context, id int, role string) (group.Membership, error) {
	if _, err := repo.db.ExecContext(ctx, `UPDATE membership SET role = $2 WHERE id = $1`, id, role); err != nil {
		return group.Membership{}, errors.Wrap(err, "updating membership role")
	}
	return repo.GetMembershipByID(ctx, id)
}

func (repo *groupRepository) DeleteMembership(ctx context.Context, id int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM membership WHERE id = $1`, id)
	return errors.Wrap(err, "deleting membership")
}

// ----------------------------------------------------------------- materials

const materialColumns = `id, group_id, title, description, file_path, link, uploaded_by, created_at, updated_at`

type materialRow struct {
	ID          int         `db:"id"`
	GroupID     int         `db:"group_id"`
	Title       string      `db:"title"`
	Description string      `db:"description"`
	FilePath    null.String `db:"file_path"`
	Link        null.String `db:"link"`
	UploadedBy  int         `db:"uploaded_by"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

func (repo *groupRepository) CreateMaterial(ctx context.Context, mat group.Material) (group.Material, error) {
	query := `INSERT INTO material (group_id, title, description, file_path, link, uploaded_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &mat.ID, query,
		mat.GroupID, mat.Title, mat.Description, mat.FilePath, mat.Link, mat.UploadedBy, mat.CreatedAt, mat.UpdatedAt,
	)
	if err != nil {
		return group.Material{}, errors.Wrap(err, "inserting material")
	}
	return mat, nil
}

func (repo *groupRepository) GetMaterialByID(ctx context.Context, id int) (group.Material, error) {
	var r materialRow
	query := fmt.Sprintf(`SELECT %s FROM material WHERE id = $1`, materialColumns)
	if err := repo.db.GetContext(ctx, &r, query, id); err != nil {
		return group.Material{}, repo.trapNoRowsErr(err, group.ErrMaterialNotFound, "getting material")
	}
	return group.Material(r), nil
}

func (repo *groupRepository) QueryGroupMaterials(ctx context.Context, groupID int) ([]group.Material, error) {
	query := fmt.Sprintf(`SELECT %s FROM material WHERE group_id = $1 ORDER BY created_at DESC`, materialColumns)
	var rows []materialRow
	if err := repo.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, errors.Wrap(err, "querying materials")
	}
	materials := make([]group.Material, 0, len(rows))
	for _, r := range rows {
		materials = append(materials, group.Material(r))
	}
	return materials, nil
}

func (repo *groupRepository) CountMaterials(ctx context.Context, groupID ...int) (int, error) {
	query := `SELECT count(*) FROM material`
	args := make([]interface{}, 0, 1)
	if len(groupID) > 0 {
		query += ` WHERE group_id = $1`
		args = append(args, groupID[0])
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting materials")
	}
	return count, nil
}

// UpdateMaterial only saves set fields; empty strings keep the stored value.
func (repo *groupRepository) UpdateMaterial(ctx context.Context, mat group.Material) (group.Material, error) {
	query := fmt.Sprintf(`UPDATE material SET
		title = COALESCE(NULLIF($2, ''), title),
		description = COALESCE(NULLIF($3, ''), description),
		link = COALESCE($4, link),
		updated_at = $5
		WHERE id = $1
		RETURNING %s`, materialColumns)

	var r materialRow
	err := repo.db.GetContext(ctx, &r, query, mat.ID, mat.Title, mat.Description, mat.Link, mat.UpdatedAt)
	if err != nil {
		return group.Material{}, repo.trapNoRowsErr(err, group.ErrMaterialNotFound, "updating material")
	}
	return group.Material(r), nil
}

func (repo *groupRepository) DeleteMaterial(ctx context.Context, id int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM material WHERE id = $1`, id)
	return errors.Wrap(err, "deleting material")
}

// ------------------------------------------------------------------ comments

const commentColumns = `id, group_id, author_id, content, parent_id, is_edited, created_at, updated_at`

type commentRow struct {
	ID        int       `db:"id"`
	GroupID   int       `db:"group_id"`
	AuthorID  int       `db:"author_id"`
	Content   string    `db:"content"`
	ParentID  null.Int  `db:"parent_id"`
	IsEdited  bool      `db:"is_edited"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (repo *groupRepository) CreateComment(ctx context.Context, cmt group.Comment) (group.Comment, error) {
	query := `INSERT INTO comment (group_id, author_id, content, parent_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	err := repo.db.GetContext(
		ctx, &cmt.ID, query,
		cmt.GroupID, cmt.AuthorID, cmt.Content, cmt.ParentID, cmt.CreatedAt, cmt.UpdatedAt,
	)
	if err != nil {
		return group.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return cmt, nil
}

func (repo *groupRepository) GetCommentByID(ctx context.Context, id int) (group.Comment, error) {
	var r commentRow
	query := fmt.Sprintf(`SELECT %s FROM comment WHERE id = $1`, commentColumns)
	if err := repo.db.GetContext(ctx, &r, query, id); err != nil {
		return group.Comment{}, repo.trapNoRowsErr(err, group.ErrCommentNotFound, "getting comment")
	}
	return group.Comment(r), nil
}

func (repo *groupRepository) QueryGroupComments(ctx context.Context, groupID int) ([]group.Comment, error) {
	query := fmt.Sprintf(`SELECT %s FROM comment WHERE group_id = $1 ORDER BY created_at`, commentColumns)
	var rows []commentRow
	if err := repo.db.SelectContext(ctx, &rows, query, groupID); err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	comments := make([]group.Comment, 0, len(rows))
	for _, r := range rows {
		comments = append(comments, group.Comment(r))
	}
	return comments, nil
}

func (repo *groupRepository) CountComments(ctx context.Context, groupID ...int) (int, error) {
	query := `SELECT count(*) FROM comment`
	args := make([]interface{}, 0, 1)
	if len(groupID) > 0 {
		query += ` WHERE group_id = $1`
		args = append(args, groupID[0])
	}
	var count int
	if err := repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, errors.Wrap(err, "counting comments")
	}
	return count, nil
}

func (repo *groupRepository) UpdateComment(ctx context.Context, cmt group.Comment) (group.Comment, error) {
	query := fmt.Sprintf(`UPDATE comment SET
		content = $2,
		is_edited = $3,
		updated_at = $4
		WHERE id = $1
		RETURNING %s`, commentColumns)

	var r commentRow
	err := repo.db.GetContext(ctx, &r, query, cmt.ID, cmt.Content, cmt.IsEdited, cmt.UpdatedAt)
	if err != nil {
		return group.Comment{}, repo.trapNoRowsErr(err, group.ErrCommentNotFound, "updating comment")
	}
	return group.Comment(r), nil
}

func (repo *groupRepository) DeleteComment(ctx context.Context, id int) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM comment WHERE id = $1`, id)
	return errors.Wrap(err, "deleting comment")
}
