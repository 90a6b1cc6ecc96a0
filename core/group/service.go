package group

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tmalinga/vikundi/core"
)

var (
	// errors
	ErrNotFound           = errors.New("group not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMaterialNotFound   = errors.New("material not found")
	ErrCommentNotFound    = errors.New("comment not found")
	ErrGroupFull          = errors.New("this group is already full")
	ErrAlreadyMember      = errors.New("already a member of this group")
	ErrLastAdmin          = errors.New("as the only admin, you cannot leave the group; assign another admin first")
)

type (
	Repository interface {
		QuerySubjects(ctx context.Context) ([]Subject, error)
		GetSubjectByID(ctx context.Context, id int) (Subject, error)

		CreateGroup(ctx context.Context, grp Group) (Group, error)
		GetGroupByID(ctx context.Context, id int) (Group, error)
		// FilterGroups applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on Group.Name, Group.Description or the subject name.
		FilterGroups(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Group, error)
		UpdateGroup(ctx context.Context, grp Group, isActive *bool) (Group, error)

		CreateMembership(ctx context.Context, m Membership) (Membership, error)
		GetMembership(ctx context.Context, userID, groupID int) (Membership, error)
		GetMembershipByID(ctx context.Context, id int) (Membership, error)
		QueryGroupMemberships(ctx context.Context, groupID int) ([]Membership, error)
		QueryUserMemberships(ctx context.Context, userID int) ([]Membership, error)
		CountMemberships(ctx context.Context, groupID int) (int, error)
		CountMembershipsByRole(ctx context.Context, groupID int, role string) (int, error)
		MembershipJoinDates(ctx context.Context, groupID int) ([]time.Time, error)
		UpdateMembershipRole(ctx context.Context, id int, role string) (Membership, error)
		DeleteMembership(ctx context.Context, id int) error

		CreateMaterial(ctx context.Context, mat Material) (Material, error)
		GetMaterialByID(ctx context.Context, id int) (Material, error)
		QueryGroupMaterials(ctx context.Context, groupID int) ([]Material, error)
		CountMaterials(ctx context.Context, groupID ...int) (int, error)
		UpdateMaterial(ctx context.Context, mat Material) (Material, error)
		DeleteMaterial(ctx context.Context, id int) error

		CreateComment(ctx context.Context, cmt Comment) (Comment, error)
		GetCommentByID(ctx context.Context, id int) (Comment, error)
		QueryGroupComments(ctx context.Context, groupID int) ([]Comment, error)
		CountComments(ctx context.Context, groupID ...int) (int, error)
		UpdateComment(ctx context.Context, cmt Comment) (Comment, error)
		DeleteComment(ctx context.Context, id int) error
	}

	Service struct {
		ctx  context.Context
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{ctx: context.Background(), repo: repo}
}

func (svc *Service) QuerySubjects() ([]Subject, error) {
	return svc.repo.QuerySubjects(svc.ctx)
}

// Create creates a Group and makes the creator its membership admin.
func (svc *Service) Create(ng NewGroup, createdBy int) (Group, error) {
	if _, err := svc.repo.GetSubjectByID(svc.ctx, ng.SubjectID); err != nil {
		if errors.Cause(err) == ErrSubjectNotFound {
			return Group{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return Group{}, errors.Wrap(err, "finding subject")
	}

	now := time.Now().UTC()
	maxMembers := ng.MaxMembers
	if maxMembers == 0 {
		maxMembers = 10
	}
	grp := Group{
		Name:        ng.Name,
		Description: ng.Description,
		SubjectID:   ng.SubjectID,
		CreatedBy:   createdBy,
		MaxMembers:  maxMembers,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	grp, err := svc.repo.CreateGroup(svc.ctx, grp)
	if err != nil {
		return Group{}, errors.Wrap(err, "creating group")
	}

	if _, err = svc.repo.CreateMembership(svc.ctx, Membership{
		UserID:   createdBy,
		GroupID:  grp.ID,
		Role:     RoleAdmin,
		JoinedAt: now,
	}); err != nil {
		return Group{}, errors.Wrap(err, "creating admin membership")
	}
	grp.MemberCount = 1
	return grp, nil
}

func (svc *Service) GetByID(id int) (Group, error) {
	return svc.repo.GetGroupByID(svc.ctx, id)
}

func (svc *Service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Group, error) {
	return svc.repo.FilterGroups(svc.ctx, filter, ordering)
}

func (svc *Service) Update(id int, ug UpdateGroup) (Group, error) {
	orig, err := svc.repo.GetGroupByID(svc.ctx, id)
	if err != nil {
		return Group{}, err
	}

	grp := orig
	if ug.Name != "" {
		grp.Name = ug.Name
	}
	if ug.Description != "" {
		grp.Description = ug.Description
	}
	if ug.SubjectID != nil {
		if _, err := svc.repo.GetSubjectByID(svc.ctx, *ug.SubjectID); err != nil {
			if errors.Cause(err) == ErrSubjectNotFound {
				return Group{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
			}
			return Group{}, errors.Wrap(err, "finding subject")
		}
		grp.SubjectID = *ug.SubjectID
	}
	if ug.MaxMembers != nil {
		grp.MaxMembers = *ug.MaxMembers
	}
	grp.UpdatedAt = time.Now().UTC()

	grp, err = svc.repo.UpdateGroup(svc.ctx, grp, ug.IsActive)
	return grp, errors.Wrap(err, "updating group")
}

// Join adds a user to a group as a plain member; full groups reject new members.
func (svc *Service) Join(userID, groupID int) (Membership, error) {
	grp, err := svc.repo.GetGroupByID(svc.ctx, groupID)
	if err != nil {
		return Membership{}, err
	}

	if _, err = svc.repo.GetMembership(svc.ctx, userID, groupID); err == nil {
		return Membership{}, ErrAlreadyMember
	} else if errors.Cause(err) != ErrMembershipNotFound {
		return Membership{}, errors.Wrap(err, "checking membership")
	}

	count, err := svc.repo.CountMemberships(svc.ctx, groupID)
	if err != nil {
		return Membership{}, errors.Wrap(err, "counting members")
	}
	if count >= grp.MaxMembers {
		return Membership{}, ErrGroupFull
	}

	m, err := svc.repo.CreateMembership(svc.ctx, Membership{
		UserID:   userID,
		GroupID:  groupID,
		Role:     RoleMember,
		JoinedAt: time.Now().UTC(),
	})
	return m, errors.Wrap(err, "creating membership")
}

// Leave removes a user's membership; the sole admin of a group cannot leave.
func (svc *Service) Leave(userID, groupID int) error {
	m, err := svc.repo.GetMembership(svc.ctx, userID, groupID)
	if err != nil {
		return err
	}
	if m.IsAdmin() {
		admins, err := svc.repo.CountMembershipsByRole(svc.ctx, groupID, RoleAdmin)
		if err != nil {
			return errors.Wrap(err, "counting admins")
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	return errors.Wrap(svc.repo.DeleteMembership(svc.ctx, m.ID), "deleting membership")
}

func (svc *Service) GetMembership(userID, groupID int) (Membership, error) {
	return svc.repo.GetMembership(svc.ctx, userID, groupID)
}

func (svc *Service) GetMembershipByID(id int) (Membership, error) {
	return svc.repo.GetMembershipByID(svc.ctx, id)
}

func (svc *Service) QueryMemberships(groupID int) ([]Membership, error) {
	return svc.repo.QueryGroupMemberships(svc.ctx, groupID)
}

func (svc *Service) QueryUserMemberships(userID int) ([]Membership, error) {
	return svc.repo.QueryUserMemberships(svc.ctx, userID)
}

// ChangeMemberRole sets the role of the given membership within the group.
// Demoting the sole admin is rejected.
func (svc *Service) ChangeMemberRole(groupID, membershipID int, role string) (Membership, error) {
	m, err := svc.repo.GetMembershipByID(svc.ctx, membershipID)
	if err != nil {
		return Membership{}, err
	}
	if m.GroupID != groupID {
		return Membership{}, ErrMembershipNotFound
	}
	if m.IsAdmin() && role != RoleAdmin {
		admins, err := svc.repo.CountMembershipsByRole(svc.ctx, groupID, RoleAdmin)
		if err != nil {
			return Membership{}, errors.Wrap(err, "counting admins")
		}
		if admins <= 1 {
			return Membership{}, ErrLastAdmin
		}
	}
	m, err = svc.repo.UpdateMembershipRole(svc.ctx, membershipID, role)
	return m, errors.Wrap(err, "updating membership role")
}

func (svc *Service) RemoveMember(groupID, membershipID int) error {
	m, err := svc.repo.GetMembershipByID(svc.ctx, membershipID)
	if err != nil {
		return err
	}
	if m.GroupID != groupID {
		return ErrMembershipNotFound
	}
	if m.IsAdmin() {
		admins, err := svc.repo.CountMembershipsByRole(svc.ctx, groupID, RoleAdmin)
		if err != nil {
			return errors.Wrap(err, "counting admins")
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	return errors.Wrap(svc.repo.DeleteMembership(svc.ctx, m.ID), "deleting membership")
}

func (svc *Service) AddMaterial(groupID, uploadedBy int, nm NewMaterial) (Material, error) {
	if _, err := svc.repo.GetGroupByID(svc.ctx, groupID); err != nil {
		return Material{}, err
	}
	now := time.Now().UTC()
	mat := Material{
		GroupID:     groupID,
		Title:       nm.Title,
		Description: nm.Description,
		FilePath:    null.NewString(nm.FilePath, nm.FilePath != ""),
		Link:        null.NewString(nm.Link, nm.Link != ""),
		UploadedBy:  uploadedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	mat, err := svc.repo.CreateMaterial(svc.ctx, mat)
	return mat, errors.Wrap(err, "creating material")
}

func (svc *Service) GetMaterialByID(id int) (Material, error) {
	return svc.repo.GetMaterialByID(svc.ctx, id)
}

func (svc *Service) QueryMaterials(groupID int) ([]Material, error) {
	return svc.repo.QueryGroupMaterials(svc.ctx, groupID)
}

func (svc *Service) UpdateMaterial(id int, um UpdateMaterial) (Material, error) {
	mat, err := svc.repo.GetMaterialByID(svc.ctx, id)
	if err != nil {
		return Material{}, err
	}
	if um.Title != "" {
		mat.Title = um.Title
	}
	if um.Description != "" {
		mat.Description = um.Description
	}
	if um.Link != "" {
		mat.Link = null.StringFrom(um.Link)
	}
	mat.UpdatedAt = time.Now().UTC()
	mat, err = svc.repo.UpdateMaterial(svc.ctx, mat)
	return mat, errors.Wrap(err, "updating material")
}

func (svc *Service) DeleteMaterial(id int) error {
	return errors.Wrap(svc.repo.DeleteMaterial(svc.ctx, id), "deleting material")
}

// AddComment posts a comment on a group; a NewComment with ParentID posts a reply.
// Replies must target a comment of the same group.
func (svc *Service) AddComment(groupID, authorID int, nc NewComment) (Comment, error) {
	if _, err := svc.repo.GetGroupByID(svc.ctx, groupID); err != nil {
		return Comment{}, err
	}
	var parentID null.Int
	if nc.ParentID != nil {
		parent, err := svc.repo.GetCommentByID(svc.ctx, *nc.ParentID)
		if err != nil {
			return Comment{}, err
		}
		if parent.GroupID != groupID {
			return Comment{}, ErrCommentNotFound
		}
		parentID = null.IntFrom(parent.ID)
	}

	now := time.Now().UTC()
	cmt := Comment{
		GroupID:   groupID,
		AuthorID:  authorID,
		Content:   nc.Content,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	cmt, err := svc.repo.CreateComment(svc.ctx, cmt)
	return cmt, errors.Wrap(err, "creating comment")
}

func (svc *Service) GetCommentByID(id int) (Comment, error) {
	return svc.repo.GetCommentByID(svc.ctx, id)
}

func (svc *Service) QueryComments(groupID int) ([]Comment, error) {
	return svc.repo.QueryGroupComments(svc.ctx, groupID)
}

// EditComment updates a comment's content and marks it edited.
func (svc *Service) EditComment(id int, content string) (Comment, error) {
	cmt, err := svc.repo.GetCommentByID(svc.ctx, id)
	if err != nil {
		return Comment{}, err
	}
	cmt.Content = content
	cmt.IsEdited = true
	cmt.UpdatedAt = time.Now().UTC()
	cmt, err = svc.repo.UpdateComment(svc.ctx, cmt)
	return cmt, errors.Wrap(err, "updating comment")
}

func (svc *Service) DeleteComment(id int) error {
	return errors.Wrap(svc.repo.DeleteComment(svc.ctx, id), "deleting comment")
}
