package backend

import (
	"context"
	"net/http"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login opens an admin session. Rejected credentials come back as an
// ApplicationError carrying the server message even though the backend
// answers them with 401.
func (c *Client) Login(ctx context.Context, username, password string) error {
	const op = "login"
	env, status, err := c.callJSON(ctx, op, http.MethodPost, pathLogin, credentials{Username: username, Password: password})
	if err != nil {
		if status == http.StatusUnauthorized && env.Message != "" {
			return rejected(op, env)
		}
		return err
	}
	if !env.Success {
		return rejected(op, env)
	}
	return nil
}

// Logout ends the session. The body is never inspected.
func (c *Client) Logout(ctx context.Context) error {
	const op = "logout"
	_, _, err := c.call(ctx, op, http.MethodPost, pathLogout, nil, "")
	return err
}
