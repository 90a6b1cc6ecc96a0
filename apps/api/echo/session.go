package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/session"
	"github.com/tmalinga/vikundi/core/user"
)

type sessionApi struct {
	svc      *session.Service
	groupSvc *group.Service
	userSvc  user.ServiceInterface
	validate *validator.Validate
}

func registerSessionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *session.Service,
	groupSvc *group.Service,
	userSvc user.ServiceInterface,
	validate *validator.Validate,
) {
	api := sessionApi{
		svc:      svc,
		groupSvc: groupSvc,
		userSvc:  userSvc,
		validate: validate,
	}

	ag := g.Group("", jwt)

	gg := ag.Group("/groups/:id/sessions", groupContextMiddleware(groupSvc, userSvc))
	gg.GET("", api.query)
	gg.POST("", api.create)

	sg := ag.Group("/sessions/:id")
	sg.GET("", api.retrieve)
	sg.PUT("", api.update)
	sg.DELETE("", api.destroy)
}

// Handlers

func (api *sessionApi) query(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	filter := &session.QueryFilter{GroupID: grp.ID, Status: ctx.QueryParam("status")}
	// malformed dates are ignored rather than rejected
	if from, err := session.ParseDate(ctx.QueryParam("from")); err == nil {
		filter.DateFrom = from
	}
	if to, err := session.ParseDate(ctx.QueryParam("to")); err == nil {
		filter.DateTo = to
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	sessions, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying sessions")
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, sessions)
}

// create schedules a session; group members get a reminder email.
func (api *sessionApi) create(ctx echo.Context) error {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return err
	}
	if err := requireMember(ctx, api.userSvc); err != nil {
		return err
	}

	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	sess, err := api.svc.Create(grp.ID, ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating session")
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	sess, err := api.resolveSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) update(ctx echo.Context) error {
	sess, err := api.resolveSession(ctx)
	if err != nil {
		return err
	}
	if err := api.canManageSession(ctx, sess); err != nil {
		return err
	}

	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sess, err = api.svc.Update(sess.ID, data)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) destroy(ctx echo.Context) error {
	sess, err := api.resolveSession(ctx)
	if err != nil {
		return err
	}
	if err := api.canManageSession(ctx, sess); err != nil {
		return err
	}

	if err := api.svc.Delete(sess.ID); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Helpers

func (api *sessionApi) resolveSession(ctx echo.Context) (session.Session, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return session.Session{}, errHttpNotFound
	}
	sess, err := api.svc.GetByID(id)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return session.Session{}, errHttpNotFound
		}
		return session.Session{}, errors.Wrap(err, "finding session by ID")
	}
	return sess, nil
}

// canManageSession allows the creator, the group's admins/moderators and
// site admins.
func (api *sessionApi) canManageSession(ctx echo.Context, sess session.Session) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if sess.CreatedBy == ctxUsr.ID || ctxUsr.IsAdmin() {
		return nil
	}
	mbr, err := api.groupSvc.GetMembership(ctxUsr.ID, sess.GroupID)
	if err == nil && (mbr.IsAdmin() || mbr.IsModerator()) {
		return nil
	}
	if err != nil && errors.Cause(err) != group.ErrMembershipNotFound {
		return errors.Wrap(err, "finding membership")
	}
	return errHttpForbidden
}
