package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kelasi/core/notif"
)

type notifApi struct {
	svc notif.ServiceInterface
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := notifApi{svc: deps.NotifSvc}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.GET("/unread-count", api.unreadCount)
	ng.POST("/:id/read", api.markRead)
}

// Handlers

// query returns the caller's own notifications, oldest first.
func (api *notifApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	notifs, err := api.svc.QueryByRecipient(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	if notifs == nil {
		notifs = []notif.Notification{}
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notifApi) unreadCount(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	count, err := api.svc.UnreadCount(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "counting unread notifications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"count": count})
}

func (api *notifApi) markRead(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	n, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	// notifications are private to their recipient
	if n.Recipient != claims.Subject && !claims.IsAdmin {
		return errHttpNotFound
	}

	if n, err = api.svc.MarkRead(n.ID); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, n)
}
