package nubapp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

type Centre struct {
	Slug    string `json:"slug"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// Centres lists every centre on the portal, sorted by slug. No login needed.
func (c *Client) Centres(ctx context.Context) ([]Centre, error) {
	payload := map[string]any{
		"bounds": map[string]any{"bounds": bounds{South: -90, West: -180, North: 90, East: 180}},
	}
	res, err := c.postJSON(ctx, c.site+pathCentres, payload)
	if err != nil {
		return nil, err
	}
	var body struct {
		Applications []Centre `json:"applications"`
	}
	if err := decodeJSON("centres", res, &body); err != nil {
		return nil, err
	}
	sort.Slice(body.Applications, func(i, j int) bool { return body.Applications[i].Slug < body.Applications[j].Slug })
	return body.Applications, nil
}

func (c *Client) checkCentre(ctx context.Context, slug string) error {
	centres, err := c.Centres(ctx)
	if err != nil {
		return err
	}
	for _, ct := range centres {
		if strings.EqualFold(ct.Slug, slug) {
			return nil
		}
	}
	return booking.AuthenticationError{Reason: fmt.Sprintf("unknown centre %q (see `sportsched centres`)", slug)}
}
