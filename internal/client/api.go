package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/npezzotti/go-meet/internal/types"
)

// APIClient calls the room endpoints of the HTTP surface.
type APIClient struct {
	base  string
	token string
	http  *http.Client
}

func NewAPIClient(baseURL, token string) *APIClient {
	return &APIClient{
		base:  strings.TrimSuffix(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

// WebsocketURL derives the realtime endpoint from the HTTP base URL.
func (c *APIClient) WebsocketURL() (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (c *APIClient) do(ctx context.Context, method, path string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return 0, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %s: %w", method, path, resp.Status, err)
	}
	return resp.StatusCode, nil
}

func (c *APIClient) CreateRoom(ctx context.Context) (string, error) {
	var resp struct {
		RoomId string `json:"room_id"`
	}
	code, err := c.do(ctx, http.MethodPost, "/api/room/create", &resp)
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated || resp.RoomId == "" {
		return "", fmt.Errorf("create room: unexpected status %d", code)
	}
	return resp.RoomId, nil
}

// CheckRoom reports a room's liveness. An unknown room is not an error.
func (c *APIClient) CheckRoom(ctx context.Context, roomId string) (types.Room, error) {
	var room types.Room
	code, err := c.do(ctx, http.MethodGet, "/api/room/"+url.PathEscape(roomId), &room)
	if err != nil {
		return types.Room{}, err
	}
	if code != http.StatusOK && code != http.StatusNotFound {
		return types.Room{}, fmt.Errorf("check room: unexpected status %d", code)
	}
	return room, nil
}
