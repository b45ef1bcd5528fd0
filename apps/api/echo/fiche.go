package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kelasi/core/fiche"
	"github.com/trezcool/kelasi/core/user"
)

type ficheApi struct {
	svc      fiche.ServiceInterface
	usrSvc   user.ServiceInterface
	validate *validator.Validate
}

func registerFicheAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := ficheApi{
		svc:      deps.FicheSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	fg := g.Group("/fiches", jwt)

	fg.POST("", api.create)
	fg.GET("", api.query)
	fg.GET("/stats", api.stats)
	fg.DELETE("", api.destroyMultiple, adminMiddleware())

	dg := fg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy)
	dg.GET("/evaluation", api.evaluate)
	dg.POST("/comments", api.addComment)

	// workflow transitions
	dg.POST("/submit", api.submit)
	dg.POST("/resubmit", api.resubmit)
	dg.POST("/validate", api.approve, reviewerMiddleware())
	dg.POST("/reject", api.reject, reviewerMiddleware())
}

// Handlers

func (api *ficheApi) create(ctx echo.Context) error {
	var data fiche.NewFiche
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFiche")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	f, err := api.svc.Create(data, claims.Actor())
	if err != nil {
		return errors.Wrap(err, "creating fiche")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *ficheApi) query(ctx echo.Context) error {
	var q FicheQuery
	if err := q.Bind(ctx); err != nil {
		return ctx.JSON(http.StatusOK, []fiche.Fiche{})
	}

	fiches, err := api.svc.Filter(q.QueryFilter)
	if err != nil {
		return errors.Wrap(err, "querying fiches")
	}
	if fiches == nil {
		fiches = []fiche.Fiche{}
	}
	return ctx.JSON(http.StatusOK, fiches)
}

func (api *ficheApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats()
	if err != nil {
		return errors.Wrap(err, "computing fiche stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *ficheApi) retrieve(ctx echo.Context) error {
	f, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *ficheApi) update(ctx echo.Context) error {
	f, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// only the author or an admin may edit the content
	if f.CreatedBy != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	var data fiche.UpdateFiche
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFiche")
	}
	if data.IsEmpty() {
		return ctx.JSON(http.StatusOK, f)
	}
	if err = data.Validate(f, api.validate); err != nil {
		return err
	}

	f, err = api.svc.Update(f.ID, data, claims.Actor())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *ficheApi) destroy(ctx echo.Context) error {
	f, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if f.CreatedBy != claims.Subject && !claims.IsAdmin {
		return errHttpForbidden
	}

	if err = api.svc.Delete(f.ID); err != nil {
		return errors.Wrap(err, "deleting fiche")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *ficheApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting fiches")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *ficheApi) evaluate(ctx echo.Context) error {
	res, err := api.svc.Evaluate(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *ficheApi) addComment(ctx echo.Context) error {
	var data CommentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CommentRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	f, err := api.svc.AddComment(ctx.Param("id"), claims.Actor(), data.Text)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *ficheApi) submit(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Submit)
}

func (api *ficheApi) resubmit(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Resubmit)
}

func (api *ficheApi) approve(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Approve)
}

func (api *ficheApi) reject(ctx echo.Context) error {
	var data CommentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CommentRequest")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	f, err := api.svc.Reject(ctx.Param("id"), claims.Actor(), data.Text)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

func (api *ficheApi) transition(ctx echo.Context, op func(id string, actor fiche.Actor) (fiche.Fiche, error)) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	f, err := op(ctx.Param("id"), claims.Actor())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, f)
}

type CommentRequest struct {
	Text string `json:"text" validate:"required"`
}

func (cr *CommentRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}
