package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"civicfeed/internal/models"
)

// LoginResult is the body returned by POST /auth/login.
type LoginResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token and stores it in the guard's token
// store. A 401 here means bad credentials, so it bypasses the guard.
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := newRequest(ctx, http.MethodPost, c.baseURL+"/auth/login", loginRequest{Email: email, Password: password})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, models.NewNetworkFailure(models.ErrNetworkFailure.Message, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, models.NewUnauthorizedError("Invalid credentials")
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, models.NewNetworkFailure(models.ErrNetworkFailure.Message, statusError(resp))
	}

	var out LoginResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, models.NewNetworkFailure("invalid login response", err)
	}
	c.guard.Tokens().Set(out.Token, strconv.FormatUint(uint64(out.User.ID), 10), out.User.Role)
	return &out, nil
}
