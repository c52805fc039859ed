// Package client is the consuming side of the messaging API: a REST client,
// a reconnecting live channel and the chat session state machine built on them.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vovakirdan/pairchat-server/internal/proto"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// API is a REST client for the messaging endpoints. Set the token before
// sharing the client between goroutines.
type API struct {
	http    *resty.Client
	baseURL string
}

// NewAPI builds a client for the server at baseURL, e.g. "http://localhost:5000".
func NewAPI(baseURL string, timeout time.Duration) *API {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &API{http: c, baseURL: baseURL}
}

// BaseURL returns the server root the client talks to.
func (a *API) BaseURL() string {
	return a.baseURL
}

// SetToken sets the bearer token sent with every request.
func (a *API) SetToken(token string) {
	a.http.SetAuthToken(token)
}

// Signup registers an account and adopts the returned token.
func (a *API) Signup(ctx context.Context, req proto.SignupRequest) (*proto.AuthResponse, error) {
	var out proto.AuthResponse
	if err := a.do(ctx, http.MethodPost, "/api/auth/signup", req, &out); err != nil {
		return nil, err
	}
	a.SetToken(out.Token)
	return &out, nil
}

// Login authenticates and adopts the returned token.
func (a *API) Login(ctx context.Context, username, password string) (*proto.AuthResponse, error) {
	var out proto.AuthResponse
	req := proto.LoginRequest{Username: username, Password: password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", req, &out); err != nil {
		return nil, err
	}
	a.SetToken(out.Token)
	return &out, nil
}

// Peers returns every other user and the unseen count per sender.
func (a *API) Peers(ctx context.Context) ([]proto.User, map[string]int, error) {
	var out proto.UsersResponse
	if err := a.do(ctx, http.MethodGet, "/api/messages/users", nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Users, out.UnseenMessages, nil
}

// History returns the conversation with peerID.
func (a *API) History(ctx context.Context, peerID string) ([]proto.Message, error) {
	var out proto.MessagesResponse
	if err := a.do(ctx, http.MethodGet, "/api/messages/"+peerID, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Send posts a message to peerID and returns it as persisted.
func (a *API) Send(ctx context.Context, peerID string, req proto.SendMessageRequest) (proto.Message, error) {
	var out proto.SendMessageResponse
	if err := a.do(ctx, http.MethodPost, "/api/messages/send/"+peerID, req, &out); err != nil {
		return proto.Message{}, err
	}
	return out.NewMessage, nil
}

// MarkSeen acknowledges a received message.
func (a *API) MarkSeen(ctx context.Context, messageID string) error {
	var out proto.StatusResponse
	return a.do(ctx, http.MethodPut, "/api/messages/mark/"+messageID, nil, &out)
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var failure proto.StatusResponse
	r := a.http.R().
		SetContext(ctx).
		SetResult(out).
		SetError(&failure)
	if body != nil {
		r.SetBody(body)
	}

	resp, err := r.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		return &APIError{Status: resp.StatusCode(), Message: failure.Message}
	}
	return nil
}
