package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tmalinga/vikundi/core/notification"
	"github.com/tmalinga/vikundi/core/user"
)

type notificationApi struct {
	svc     *notification.Service
	userSvc user.ServiceInterface
}

func registerNotificationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *notification.Service,
	userSvc user.ServiceInterface,
) {
	api := notificationApi{svc: svc, userSvc: userSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.PUT("/:id/read", api.markRead)
}

// query lists the authenticated user's notifications, newest first.
func (api *notificationApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	notifs, err := api.svc.QueryForUser(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notification.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) markRead(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return err
	}
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return errHttpNotFound
	}
	n, err := api.svc.MarkRead(id, ctxUsr.ID)
	if err != nil {
		if errors.Cause(err) == notification.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "marking notification read")
	}
	return ctx.JSON(http.StatusOK, n)
}
