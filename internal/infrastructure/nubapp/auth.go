package nubapp

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/example/sport-scheduler/internal/domain/booking"
)

// Authenticate logs in to the social portal, exchanges the portal session for
// Nubapp credentials of the configured centre and opens the Nubapp session.
func (c *Client) Authenticate(ctx context.Context, creds booking.Credentials) error {
	c.idUser, c.appID = "", ""
	if creds.Email == "" || creds.Password == "" {
		return booking.AuthenticationError{Reason: "email and password are required"}
	}
	centre := strings.TrimSpace(creds.Centre)
	if centre == "" {
		return booking.AuthenticationError{Reason: "centre is required"}
	}
	if err := c.checkCentre(ctx, centre); err != nil {
		return err
	}

	token, err := c.csrfToken(ctx)
	if err != nil {
		return err
	}

	res, err := c.postForm(ctx, c.site+pathLoginCheck, url.Values{
		"_username":   {creds.Email},
		"_password":   {creds.Password},
		"_csrf_token": {token},
		"_submit":     {""},
		"_force":      {"true"},
	})
	if err != nil {
		return err
	}
	err = authStatus("login", "invalid credentials", res)
	res.Body.Close()
	if err != nil {
		return err
	}
	c.log.Info("Logged in to the social portal")

	params, err := c.nubappCredentials(ctx, centre)
	if err != nil {
		return err
	}

	res, err = c.get(ctx, c.api+pathNubappLogin, params)
	if err != nil {
		return err
	}
	err = authStatus("nubapp login", "booking API rejected the login", res)
	res.Body.Close()
	if err != nil {
		return err
	}
	c.idUser = params.Get("id_user")
	c.appID = params.Get("id_application")
	c.log.WithField("centre", centre).Info("Logged in to the booking API")
	return nil
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	res, err := c.get(ctx, c.site+pathLoginPopup, nil)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if err := checkStatus("login popup", res); err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return "", booking.TransientError{Op: "login popup", Err: err}
	}
	token, ok := doc.Find(`input[name="_csrf_token"]`).First().Attr("value")
	if !ok || token == "" {
		return "", booking.TransientError{Op: "login popup", Err: fmt.Errorf("csrf token not found")}
	}
	return token, nil
}

func (c *Client) nubappCredentials(ctx context.Context, centre string) (url.Values, error) {
	res, err := c.get(ctx, c.site+fmt.Sprintf(pathCredRequest, url.PathEscape(centre)), nil)
	if err != nil {
		return nil, err
	}
	if res.StatusCode == http.StatusNotFound {
		res.Body.Close()
		return nil, booking.AuthenticationError{Reason: fmt.Sprintf("centre %q has no booking application", centre)}
	}
	var body struct {
		Payload string `json:"payload"`
	}
	if err := decodeJSON("credentials", res, &body); err != nil {
		return nil, err
	}
	params, err := url.ParseQuery(body.Payload)
	if err != nil {
		return nil, booking.TransientError{Op: "credentials", Err: fmt.Errorf("parse payload: %w", err)}
	}
	if params.Get("id_user") == "" {
		return nil, booking.AuthenticationError{Reason: "portal session was not accepted (no user id in payload)"}
	}
	// Keep only the first value of each key.
	out := url.Values{}
	for k, v := range params {
		out.Set(k, v[0])
	}
	out.Set("platform", "resasocial")
	out.Set("network", "resasports")
	return out, nil
}

func authStatus(op, reason string, res *http.Response) error {
	if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
		return booking.AuthenticationError{Reason: reason, Err: fmt.Errorf("%s: status %d", op, res.StatusCode)}
	}
	return checkStatus(op, res)
}
