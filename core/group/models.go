package group

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
)

// Membership roles, scoped to a single group.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

var MembershipRoles = []string{RoleMember, RoleModerator, RoleAdmin}

type Subject struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Group struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SubjectID   int       `json:"subject_id"`
	CreatedBy   int       `json:"created_by"`
	MaxMembers  int       `json:"max_members"`
	IsActive    bool      `json:"is_active"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

type Membership struct {
	ID       int       `json:"id"`
	UserID   int       `json:"user_id"`
	GroupID  int       `json:"group_id"`
	Username string    `json:"username"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"` // UTC
}

func (m Membership) IsAdmin() bool     { return m.Role == RoleAdmin }
func (m Membership) IsModerator() bool { return m.Role == RoleModerator }

type Material struct {
	ID          int         `json:"id"`
	GroupID     int         `json:"group_id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	FilePath    null.String `json:"file_path"`
	Link        null.String `json:"link"`
	UploadedBy  int         `json:"uploaded_by"`
	CreatedAt   time.Time   `json:"created_at"` // UTC
	UpdatedAt   time.Time   `json:"updated_at"` // UTC
}

type Comment struct {
	ID        int       `json:"id"`
	GroupID   int       `json:"group_id"`
	AuthorID  int       `json:"author_id"`
	Content   string    `json:"content"`
	ParentID  null.Int  `json:"parent_id"`
	IsEdited  bool      `json:"is_edited"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewGroup contains information needed to create a new Group.
type NewGroup struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"required"`
	SubjectID   int    `json:"subject_id" validate:"required"`
	MaxMembers  int    `json:"max_members" validate:"omitempty,min=2"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	return validate.Struct(ng)
}

// UpdateGroup defines what information may be provided to modify an existing Group.
type UpdateGroup struct {
	Name        string `json:"name" validate:"omitempty,max=200"`
	Description string `json:"description"`
	SubjectID   *int   `json:"subject_id"`
	MaxMembers  *int   `json:"max_members" validate:"omitempty,min=2"`
	IsActive    *bool  `json:"is_active"`
}

func (ug *UpdateGroup) Validate(validate *validator.Validate) error {
	ug.Name = core.CleanString(ug.Name)
	ug.Description = core.CleanString(ug.Description)
	return validate.Struct(ug)
}

// NewMaterial contains information needed to share a new Material.
// One of FilePath (set by the upload layer) or Link must be present.
type NewMaterial struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	FilePath    string `json:"file_path" validate:"required_without=Link"`
	Link        string `json:"link" validate:"omitempty,url,required_without=FilePath"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Link = core.CleanString(nm.Link)
	return validate.Struct(nm)
}

// UpdateMaterial defines what information may be provided to modify an existing Material.
type UpdateMaterial struct {
	Title       string `json:"title" validate:"omitempty,max=200"`
	Description string `json:"description"`
	Link        string `json:"link" validate:"omitempty,url"`
}

func (um *UpdateMaterial) Validate(validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	um.Link = core.CleanString(um.Link)
	return validate.Struct(um)
}

// NewComment contains information needed to post a Comment; ParentID set for replies.
type NewComment struct {
	Content  string `json:"content" validate:"required"`
	ParentID *int   `json:"parent_id"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search    string `query:"q"`
	SubjectID int    `query:"subject"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
