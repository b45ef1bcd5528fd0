package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/kelasi/core/fiche"
)

// FicheQuery binds fiche list filters from query params. The viewer's
// favorite/recent fiche IDs come in explicitly; the server keeps no
// per-viewer state.
type FicheQuery struct {
	fiche.QueryFilter
	FavoriteIDs []string `query:"favorite_id"`
	RecentIDs   []string `query:"recent_id"`
}

func (q *FicheQuery) Bind(ctx echo.Context) error {
	if err := ctx.Bind(q); err != nil {
		return err
	}
	q.Clean()
	q.Prefs = fiche.ViewerPreferences{
		FavoriteIDs: q.FavoriteIDs,
		RecentIDs:   q.RecentIDs,
	}
	return nil
}
