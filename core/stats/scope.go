package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
)

type (
	// GroupSource provides group-scoped record accessors.
	GroupSource interface {
		GetGroupByID(ctx context.Context, id int) (group.Group, error)
		CountMemberships(ctx context.Context, groupID int) (int, error)
		QueryUserMemberships(ctx context.Context, userID int) ([]group.Membership, error)
		MembershipJoinDates(ctx context.Context, groupID int) ([]time.Time, error)
		CountMaterials(ctx context.Context, groupID ...int) (int, error)
		CountComments(ctx context.Context, groupID ...int) (int, error)
	}

	// SessionSource provides the session records aggregates are computed over.
	SessionSource interface {
		FilterSessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering) ([]session.Session, error)
		CountSessions(ctx context.Context, groupID ...int) (int, error)
	}

	// UserSource provides the site-wide counterparts of membership accessors.
	UserSource interface {
		CountUsers(ctx context.Context) (int, error)
		UserJoinDates(ctx context.Context) ([]time.Time, error)
	}

	// Datastore bundles the record sources the aggregator reads from.
	Datastore struct {
		Groups   GroupSource
		Sessions SessionSource
		Users    UserSource
	}
)

// Scope is the record-filtering context: site-wide, or a single group.
// All aggregates go through its accessors; site-wide and group-scoped
// computations differ only in the filter predicate applied here.
type Scope struct {
	ds    Datastore
	group *group.Group
}

func SiteScope(ds Datastore) Scope {
	return Scope{ds: ds}
}

func GroupScope(ds Datastore, grp group.Group) Scope {
	return Scope{ds: ds, group: &grp}
}

// ResolveScope resolves a raw `group` query parameter into a Scope. An
// absent, unparseable or unknown group id silently degrades to site-wide.
func ResolveScope(ctx context.Context, ds Datastore, rawGroupID string) Scope {
	id, err := strconv.Atoi(rawGroupID)
	if err != nil {
		return SiteScope(ds)
	}
	grp, err := ds.Groups.GetGroupByID(ctx, id)
	if err != nil {
		return SiteScope(ds)
	}
	return GroupScope(ds, grp)
}

// GroupID reports the scoped group id; ok is false for the site-wide scope.
func (s Scope) GroupID() (int, bool) {
	if s.group == nil {
		return 0, false
	}
	return s.group.ID, true
}

// Label names the scope for export filenames: "global" or "group_<id>".
func (s Scope) Label() string {
	if s.group == nil {
		return "global"
	}
	return fmt.Sprintf("group_%d", s.group.ID)
}

// sessions returns the scope's full session snapshot, unfiltered by date.
func (s Scope) sessions(ctx context.Context) ([]session.Session, error) {
	filter := &session.QueryFilter{}
	if s.group != nil {
		filter.GroupID = s.group.ID
	}
	return s.ds.Sessions.FilterSessions(ctx, filter, nil)
}

func (s Scope) sessionCount(ctx context.Context) (int, error) {
	if s.group != nil {
		return s.ds.Sessions.CountSessions(ctx, s.group.ID)
	}
	return s.ds.Sessions.CountSessions(ctx)
}

func (s Scope) materialCount(ctx context.Context) (int, error) {
	if s.group != nil {
		return s.ds.Groups.CountMaterials(ctx, s.group.ID)
	}
	return s.ds.Groups.CountMaterials(ctx)
}

func (s Scope) commentCount(ctx context.Context) (int, error) {
	if s.group != nil {
		return s.ds.Groups.CountComments(ctx, s.group.ID)
	}
	return s.ds.Groups.CountComments(ctx)
}

// memberCount counts group members, or all users for the site-wide scope.
func (s Scope) memberCount(ctx context.Context) (int, error) {
	if s.group != nil {
		return s.ds.Groups.CountMemberships(ctx, s.group.ID)
	}
	return s.ds.Users.CountUsers(ctx)
}

// joinDates returns membership joined-at times, or user join dates for the
// site-wide scope.
func (s Scope) joinDates(ctx context.Context) ([]time.Time, error) {
	if s.group != nil {
		return s.ds.Groups.MembershipJoinDates(ctx, s.group.ID)
	}
	return s.ds.Users.UserJoinDates(ctx)
}
