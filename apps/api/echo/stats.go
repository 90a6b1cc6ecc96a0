package echoapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core"
	"github.com/tmalinga/vikundi/core/group"
	"github.com/tmalinga/vikundi/core/stats"
	"github.com/tmalinga/vikundi/core/user"
)

// nowFunc is swapped out in tests for deterministic windows.
var nowFunc = time.Now

type statsApi struct {
	svc      *stats.Service
	groupSvc *group.Service
	userSvc  user.ServiceInterface
}

func registerStatsAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *stats.Service,
	groupSvc *group.Service,
	userSvc user.ServiceInterface,
) {
	api := statsApi{
		svc:      svc,
		groupSvc: groupSvc,
		userSvc:  userSvc,
	}

	ag := g.Group("", jwt)

	// personal report, any authenticated user
	ag.GET("/my-stats", api.myStats)

	// site-wide reporting, admin only
	sg := ag.Group("/stats", adminMiddleware())
	sg.GET("", api.dashboard)
	sg.GET("/export", api.exportSessions)
	sg.GET("/export-top", api.exportTopContributors)

	// per-group reporting, members only
	gg := ag.Group("/groups/:id/stats", groupContextMiddleware(groupSvc, userSvc), api.memberMiddleware)
	gg.GET("", api.groupDashboard)
	gg.GET("/export", api.groupExportSessions)
	gg.GET("/export-top", api.groupExportTopContributors)
}

// Handlers

// dashboard serves the site-wide report. An optional `group` query param
// narrows the scope; an invalid one silently degrades to site-wide.
func (api *statsApi) dashboard(ctx echo.Context) error {
	scope := api.svc.ResolveScope(ctx.Request().Context(), ctx.QueryParam("group"))
	return api.serveDashboard(ctx, scope)
}

func (api *statsApi) exportSessions(ctx echo.Context) error {
	scope := api.svc.ResolveScope(ctx.Request().Context(), ctx.QueryParam("group"))
	return api.serveSessionsCSV(ctx, scope)
}

// exportTopContributors always ranks a single group; unlike the other
// site-wide reports the `group` param is mandatory here.
func (api *statsApi) exportTopContributors(ctx echo.Context) error {
	id, err := strconv.Atoi(ctx.QueryParam("group"))
	if err != nil {
		return core.NewValidationError(errors.New("a valid group parameter is required"))
	}
	grp, err := api.groupSvc.GetByID(id)
	if err != nil {
		if errors.Cause(err) == group.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "fetching group")
	}
	return api.serveTopContributorsCSV(ctx, api.svc.GroupScope(grp))
}

func (api *statsApi) myStats(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	ms, err := api.svc.MemberStats(ctx.Request().Context(), ctxUsr.ID, resolveWindow(ctx))
	if err != nil {
		return errors.Wrap(err, "computing member stats")
	}
	return ctx.JSON(http.StatusOK, ms)
}

func (api *statsApi) groupDashboard(ctx echo.Context) error {
	scope, err := api.contextScope(ctx)
	if err != nil {
		return err
	}
	return api.serveDashboard(ctx, scope)
}

func (api *statsApi) groupExportSessions(ctx echo.Context) error {
	scope, err := api.contextScope(ctx)
	if err != nil {
		return err
	}
	return api.serveSessionsCSV(ctx, scope)
}

func (api *statsApi) groupExportTopContributors(ctx echo.Context) error {
	scope, err := api.contextScope(ctx)
	if err != nil {
		return err
	}
	return api.serveTopContributorsCSV(ctx, scope)
}

// Helpers

func (api *statsApi) serveDashboard(ctx echo.Context, scope stats.Scope) error {
	dash, err := api.svc.Dashboard(ctx.Request().Context(), scope, resolveWindow(ctx))
	if err != nil {
		return errors.Wrap(err, "computing dashboard")
	}
	return ctx.JSON(http.StatusOK, dash)
}

func (api *statsApi) serveSessionsCSV(ctx echo.Context, scope stats.Scope) error {
	win := resolveWindow(ctx)
	sessions, err := api.svc.Sessions(ctx.Request().Context(), scope, win)
	if err != nil {
		return errors.Wrap(err, "fetching sessions")
	}

	_, scoped := scope.GroupID()
	res := beginCSVAttachment(ctx, stats.SessionsFilename(scope, win))
	return errors.Wrap(stats.WriteSessionsCSV(res, sessions, !scoped), "writing sessions CSV")
}

func (api *statsApi) serveTopContributorsCSV(ctx echo.Context, scope stats.Scope) error {
	win := resolveWindow(ctx)
	rows, err := api.svc.TopContributors(ctx.Request().Context(), scope, win)
	if err != nil {
		return errors.Wrap(err, "ranking contributors")
	}

	res := beginCSVAttachment(ctx, stats.TopContributorsFilename(scope, win))
	return errors.Wrap(stats.WriteTopContributorsCSV(res, rows), "writing contributors CSV")
}

// resolveWindow reads `from`, `to` and `preset` query params; malformed
// values fall back to the default window rather than failing the request.
func resolveWindow(ctx echo.Context) stats.Window {
	today := stats.DateOf(nowFunc().UTC())
	return stats.ResolveWindow(ctx.QueryParam("from"), ctx.QueryParam("to"), ctx.QueryParam("preset"), today)
}

func beginCSVAttachment(ctx echo.Context, filename string) *echo.Response {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return res
}

// contextScope builds a group scope from the group resolved by the
// middleware chain.
func (api *statsApi) contextScope(ctx echo.Context) (stats.Scope, error) {
	grp, err := getContextGroup(ctx)
	if err != nil {
		return stats.Scope{}, err
	}
	return api.svc.GroupScope(grp), nil
}

func (api *statsApi) memberMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := requireMember(ctx, api.userSvc); err != nil {
			return err
		}
		return next(ctx)
	}
}
