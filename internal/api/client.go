// Package api implements the request/response half of the chat service
// boundary: bootstrap fetches, room membership actions, message posting and
// the auth endpoints. The push half lives in internal/ws.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatsync/client/internal/models"
	"chatsync/client/internal/session"
)

const requestTimeout = 15 * time.Second

// Client talks to the chat service over HTTP. The bearer token is read from
// the session on every request, so a refresh mid-flight is picked up
// automatically.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Session
}

func New(baseURL string, sess *session.Session) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		session: sess,
	}
}

// AuthResponse is the body returned by login, register and refresh.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login authenticates and installs the returned identity and token into the
// session.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	var resp AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.once(ctx, http.MethodPost, "/login", body, &resp); err != nil {
		return nil, err
	}
	c.session.SetCredentials(resp.User, resp.Token)
	return resp.User, nil
}

// Register creates an account. The caller logs in afterwards.
func (c *Client) Register(ctx context.Context, name, email, password string) error {
	body := map[string]string{"name": name, "email": email, "password": password}
	return c.once(ctx, http.MethodPost, "/register", body, nil)
}

// Refresh rotates the bearer token. A refresh with no token present is a
// no-op.
func (c *Client) Refresh(ctx context.Context) error {
	if c.session.Token() == "" {
		return nil
	}
	var resp AuthResponse
	if err := c.once(ctx, http.MethodPost, "/refresh", nil, &resp); err != nil {
		return err
	}
	if resp.User != nil {
		c.session.SetCredentials(resp.User, resp.Token)
	} else {
		c.session.SetToken(resp.Token)
	}
	return nil
}

// Logout tells the server to invalidate the session and clears local
// credentials regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	err := c.once(ctx, http.MethodPost, "/logout", nil, nil)
	c.session.Clear()
	return err
}

// FetchJoinedRooms returns the rooms the user is a member of.
func (c *Client) FetchJoinedRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.do(ctx, http.MethodGet, "/my-rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// FetchDiscoverableRooms returns the rooms the user could join.
func (c *Client) FetchDiscoverableRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	if err := c.do(ctx, http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// FetchMessages returns the message history of a room. The server has
// shipped both a bare array and a {"messages": [...]} wrapper over time, so
// both shapes are accepted.
func (c *Client) FetchMessages(ctx context.Context, roomID int64) ([]models.Message, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rooms/%d/messages", roomID), nil, &raw); err != nil {
		return nil, err
	}
	var msgs []models.Message
	if err := json.Unmarshal(raw, &msgs); err == nil {
		return msgs, nil
	}
	var wrapped struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &Error{Kind: KindServer, Message: "unexpected messages payload"}
	}
	return wrapped.Messages, nil
}

// PostJoin makes the user a member of the room.
func (c *Client) PostJoin(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/join", roomID), nil, nil)
}

// PostLeave removes the user from the room.
func (c *Client) PostLeave(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/leave", roomID), nil, nil)
}

// PostCreateRoom creates a room owned by the user.
func (c *Client) PostCreateRoom(ctx context.Context, name, description string) (*models.Room, error) {
	var resp struct {
		Room *models.Room `json:"room"`
	}
	body := map[string]string{"name": name, "description": description}
	if err := c.do(ctx, http.MethodPost, "/rooms", body, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// PostDeleteRoom deletes a room the user owns.
func (c *Client) PostDeleteRoom(ctx context.Context, roomID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/rooms/%d", roomID), nil, nil)
}

// PostMessage sends a message to a room and returns the stored message.
func (c *Client) PostMessage(ctx context.Context, roomID int64, draft models.MessageDraft) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rooms/%d/messages", roomID), draft, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// do performs the request and, on a 401, attempts a single token refresh
// followed by one retry. Auth endpoints themselves are exempt so a bad
// password cannot loop.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	err := c.once(ctx, method, path, body, out)
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized {
		return err
	}
	if rerr := c.Refresh(ctx); rerr != nil {
		c.session.Clear()
		return err
	}
	return c.once(ctx, method, path, body, out)
}

func (c *Client) once(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindBadRequest, Message: err.Error()}
		}
		rdr = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return &Error{Kind: KindTransport, Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.session.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Kind: KindTransport, Message: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Kind: KindServer, Message: "decoding response: " + err.Error()}
	}
	return nil
}

func decodeError(resp *http.Response) *Error {
	msg := resp.Status
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
		switch {
		case payload.Error != "":
			msg = payload.Error
		case payload.Message != "":
			msg = payload.Message
		}
	}
	return &Error{Status: resp.StatusCode, Kind: kindForStatus(resp.StatusCode), Message: msg}
}
