package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
)

type groupRepository struct {
	db *DB
}

var _ group.Repository = (*groupRepository)(nil) // interface compliance check

func NewGroupRepository(db *DB) *groupRepository {
	return &groupRepository{db: db}
}

// ------------------------------------------------------------------ subjects

func (repo *groupRepository) QuerySubjects(ctx context.Context) ([]group.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]group.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		subjects = append(subjects, *s)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Name < subjects[j].Name })
	return subjects, nil
}

func (repo *groupRepository) GetSubjectByID(ctx context.Context, id int) (group.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return *s, nil
	}
	return group.Subject{}, group.ErrSubjectNotFound
}

// -------------------------------------------------------------------- groups

// memberCount computes the live membership count; the caller holds a read lock.
func (repo *groupRepository) memberCount(groupID int) int {
	var n int
	for _, m := range repo.db.memberships {
		if m.GroupID == groupID {
			n++
		}
	}
	return n
}

func (repo *groupRepository) CreateGroup(ctx context.Context, grp group.Group) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	grp.ID = repo.db.nextPK()
	repo.db.groups[grp.ID] = &grp
	return grp, nil
}

func (repo *groupRepository) GetGroupByID(ctx context.Context, id int) (group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grp, ok := repo.db.groups[id]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	out := *grp
	out.MemberCount = repo.memberCount(id)
	return out, nil
}

func (repo *groupRepository) FilterGroups(ctx context.Context, filter *group.QueryFilter, ordering []core.DBOrdering) ([]group.Group, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	groups := make([]group.Group, 0)
	for _, grp := range repo.db.groups {
		if filter != nil && !repo.matchGroup(*grp, filter) {
			continue
		}
		out := *grp
		out.MemberCount = repo.memberCount(grp.ID)
		groups = append(groups, out)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].CreatedAt.After(groups[j].CreatedAt) })
	return groups, nil
}

func (repo *groupRepository) matchGroup(grp group.Group, filter *group.QueryFilter) bool {
	if search := core.CleanString(filter.Search, true); search != "" {
		subjectName := ""
		if subj, ok := repo.db.subjects[grp.SubjectID]; ok {
			subjectName = subj.Name
		}
		if !strings.Contains(strings.ToLower(grp.Name), search) &&
			!strings.Contains(strings.ToLower(grp.Description), search) &&
			!strings.Contains(strings.ToLower(subjectName), search) {
			return false
		}
	}
	if filter.SubjectID != 0 && grp.SubjectID != filter.SubjectID {
		return false
	}
	if filter.IsActive != nil && grp.IsActive != *filter.IsActive {
		return false
	}
	return true
}

func (repo *groupRepository) UpdateGroup(ctx context.Context, grp group.Group, isActive *bool) (group.Group, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	orig, ok := repo.db.groups[grp.ID]
	if !ok {
		return group.Group{}, group.ErrNotFound
	}
	if grp.Name != "" {
		orig.Name = grp.Name
	}
	if grp.Description != "" {
		orig.Description = grp.Description
	}
	if grp.SubjectID != 0 {
		orig.SubjectID = grp.SubjectID
	}
	if grp.MaxMembers != 0 {
		orig.MaxMembers = grp.MaxMembers
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = grp.UpdatedAt

	out := *orig
	out.MemberCount = repo.memberCount(out.ID)
	return out, nil
}

// --------------------------------------------------------------- memberships

// username resolves a member's username; the caller holds a read lock.
func (repo *groupRepository) username(userID int) string {
	if usr, ok := repo.db.users[userID]; ok {
		return usr.Username
	}
	return ""
}

func (repo *groupRepository) CreateMembership(ctx context.Context, m group.Membership) (group.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m.ID = repo.db.nextPK()
	m.Username = repo.username(m.UserID)
	repo.db.memberships[m.ID] = &m
	return m, nil
}

func (repo *groupRepository) GetMembership(ctx context.Context, userID, groupID int) (group.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, m := range repo.db.memberships {
		if m.UserID == userID && m.GroupID == groupID {
			out := *m
			out.Username = repo.username(m.UserID)
			return out, nil
		}
	}
	return group.Membership{}, group.ErrMembershipNotFound
}

func (repo *groupRepository) GetMembershipByID(ctx context.Context, id int) (group.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if m, ok := repo.db.memberships[id]; ok {
		out := *m
		out.Username = repo.username(m.UserID)
		return out, nil
	}
	return group.Membership{}, group.ErrMembershipNotFound
}

func (repo *groupRepository) QueryGroupMemberships(ctx context.Context, groupID int) ([]group.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]group.Membership, 0)
	for _, m := range repo.db.memberships {
		if m.GroupID != groupID {
			continue
		}
		out := *m
		out.Username = repo.username(m.UserID)
		members = append(members, out)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *groupRepository) QueryUserMemberships(ctx context.Context, userID int) ([]group.Membership, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	members := make([]group.Membership, 0)
	for _, m := range repo.db.memberships {
		if m.UserID != userID {
			continue
		}
		out := *m
		out.Username = repo.username(m.UserID)
		members = append(members, out)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].JoinedAt.Before(members[j].JoinedAt) })
	return members, nil
}

func (repo *groupRepository) CountMemberships(ctx context.Context, groupID int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.memberCount(groupID), nil
}

func (repo *groupRepository) CountMembershipsByRole(ctx context.Context, groupID int, role string) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, m := range repo.db.memberships {
		if m.GroupID == groupID && m.Role == role {
			count++
		}
	}
	return count, nil
}

func (repo *groupRepository) MembershipJoinDates(ctx context.Context, groupID int) ([]time.Time, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	dates := make([]time.Time, 0)
	for _, m := range repo.db.memberships {
		if m.GroupID == groupID {
			dates = append(dates, m.JoinedAt)
		}
	}
	return dates, nil
}

func (repo *groupRepository) UpdateMembershipRole(ctx context.Context, id int, role string) (group.Membership, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	m, ok := repo.db.memberships[id]
	if !ok {
		return group.Membership{}, group.ErrMembershipNotFound
	}
	m.Role = role
	out := *m
	out.Username = repo.username(m.UserID)
	return out, nil
}

func (repo *groupRepository) DeleteMembership(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.memberships, id)
	return nil
}

// ----------------------------------------------------------------- materials

func (repo *groupRepository) CreateMaterial(ctx context.Context, mat group.Material) (group.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	mat.ID = repo.db.nextPK()
	repo.db.materials[mat.ID] = &mat
	return mat, nil
}

func (repo *groupRepository) GetMaterialByID(ctx context.Context, id int) (group.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if mat, ok := repo.db.materials[id]; ok {
		return *mat, nil
	}
	return group.Material{}, group.ErrMaterialNotFound
}

func (repo *groupRepository) QueryGroupMaterials(ctx context.Context, groupID int) ([]group.Material, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	materials := make([]group.Material, 0)
	for _, mat := range repo.db.materials {
		if mat.GroupID == groupID {
			materials = append(materials, *mat)
		}
	}
	sort.Slice(materials, func(i, j int) bool { return materials[i].CreatedAt.After(materials[j].CreatedAt) })
	return materials, nil
}

func (repo *groupRepository) CountMaterials(ctx context.Context, groupID ...int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if len(groupID) == 0 {
		return len(repo.db.materials), nil
	}
	var count int
	for _, mat := range repo.db.materials {
		if mat.GroupID == groupID[0] {
			count++
		}
	}
	return count, nil
}

func (repo *groupRepository) UpdateMaterial(ctx context.Context, mat group.Material) (group.Material, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	orig, ok := repo.db.materials[mat.ID]
	if !ok {
		return group.Material{}, group.ErrMaterialNotFound
	}
	if mat.Title != "" {
		orig.Title = mat.Title
	}
	if mat.Description != "" {
		orig.Description = mat.Description
	}
	if mat.Link.Valid {
		orig.Link = mat.Link
	}
	orig.UpdatedAt = mat.UpdatedAt
	return *orig, nil
}

func (repo *groupRepository) DeleteMaterial(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.materials, id)
	return nil
}

// ------------------------------------------------------------------ comments

func (repo *groupRepository) CreateComment(ctx context.Context, cmt group.Comment) (group.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cmt.ID = repo.db.nextPK()
	repo.db.comments[cmt.ID] = &cmt
	return cmt, nil
}

func (repo *groupRepository) GetCommentByID(ctx context.Context, id int) (group.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if cmt, ok := repo.db.comments[id]; ok {
		return *cmt, nil
	}
	return group.Comment{}, group.ErrCommentNotFound
}

func (repo *groupRepository) QueryGroupComments(ctx context.Context, groupID int) ([]group.Comment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	comments := make([]group.Comment, 0)
	for _, cmt := range repo.db.comments {
		if cmt.GroupID == groupID {
			comments = append(comments, *cmt)
		}
	}
	sort.Slice(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })
	return comments, nil
}

func (repo *groupRepository) CountComments(ctx context.Context, groupID ...int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if len(groupID) == 0 {
		return len(repo.db.comments), nil
	}
	var count int
	for _, cmt := range repo.db.comments {
		if cmt.GroupID == groupID[0] {
			count++
		}
	}
	return count, nil
}

func (repo *groupRepository) UpdateComment(ctx context.Context, cmt group.Comment) (group.Comment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.comments[cmt.ID]
	if !ok {
		return group.Comment{}, group.ErrCommentNotFound
	}
	orig.Content = cmt.Content
	orig.IsEdited = cmt.IsEdited
	orig.UpdatedAt = cmt.UpdatedAt
	return *orig, nil
}

func (repo *groupRepository) DeleteComment(ctx context.Context, id int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.comments, id)
	return nil
}
