// Package client is the DevChat client SDK: typed REST calls, the realtime
// connection, listener bookkeeping and the unread-count reconciler.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devchat/devchat/models"
)

// APIError is a non-2xx response. Message is the server's error string,
// suitable for showing next to a form.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("devchat: %d %s", e.Status, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Target addresses a public channel or a direct message conversation.
type Target struct {
	ChannelID string
	PeerID    string
}

func ChannelTarget(channelID string) Target { return Target{ChannelID: channelID} }
func DMTarget(peerID string) Target         { return Target{PeerID: peerID} }

func (t Target) base() string {
	if t.PeerID != "" {
		return "/api/dm/" + url.PathEscape(t.PeerID)
	}
	return "/api/channels/" + url.PathEscape(t.ChannelID)
}

// API talks to the REST surface. It keeps the current token pair and
// refreshes it once when a request comes back 401.
type API struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	tokens *models.AuthTokens
}

func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &API{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// CurrentUser is the signed-in user, or nil.
func (a *API) CurrentUser() *models.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tokens == nil {
		return nil
	}
	u := a.tokens.User
	return &u
}

func (a *API) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.tokens == nil {
		return ""
	}
	return a.tokens.AccessToken
}

// SocketURL is the realtime endpoint with the access token attached.
func (a *API) SocketURL() string {
	u := a.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws?token=" + url.QueryEscape(a.AccessToken())
}

func (a *API) setTokens(tokens *models.AuthTokens) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = tokens
}

// ─── Auth ───

func (a *API) Register(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	var tokens models.AuthTokens
	if err := a.call(ctx, http.MethodPost, "/api/auth/register", jsonBody(req), &tokens, false); err != nil {
		return nil, err
	}
	a.setTokens(&tokens)
	return &tokens.User, nil
}

func (a *API) Login(ctx context.Context, email, password string) (*models.User, error) {
	var tokens models.AuthTokens
	req := models.LoginRequest{Email: email, Password: password}
	if err := a.call(ctx, http.MethodPost, "/api/auth/login", jsonBody(req), &tokens, false); err != nil {
		return nil, err
	}
	a.setTokens(&tokens)
	return &tokens.User, nil
}

// Logout ends the session on the server and forgets the tokens locally,
// even when the server call fails.
func (a *API) Logout(ctx context.Context) error {
	a.mu.RLock()
	var refresh string
	if a.tokens != nil {
		refresh = a.tokens.RefreshToken
	}
	a.mu.RUnlock()

	err := a.call(ctx, http.MethodPost, "/api/auth/logout", jsonBody(models.RefreshRequest{RefreshToken: refresh}), nil, false)
	a.setTokens(nil)
	return err
}

func (a *API) ForgotPassword(ctx context.Context, email string) error {
	return a.call(ctx, http.MethodPost, "/api/auth/forgot-password", jsonBody(models.ForgotPasswordRequest{Email: email}), nil, false)
}

func (a *API) ResetPassword(ctx context.Context, token, newPassword string) error {
	req := models.ResetPasswordRequest{Token: token, NewPassword: newPassword}
	return a.call(ctx, http.MethodPost, "/api/auth/reset-password", jsonBody(req), nil, false)
}

func (a *API) refresh(ctx context.Context) error {
	a.mu.RLock()
	if a.tokens == nil {
		a.mu.RUnlock()
		return &APIError{Status: http.StatusUnauthorized, Message: "not signed in"}
	}
	refresh := a.tokens.RefreshToken
	a.mu.RUnlock()

	var tokens models.AuthTokens
	if err := a.call(ctx, http.MethodPost, "/api/auth/refresh", jsonBody(models.RefreshRequest{RefreshToken: refresh}), &tokens, false); err != nil {
		return err
	}
	a.setTokens(&tokens)
	return nil
}

// ─── Users ───

func (a *API) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	return &user, a.call(ctx, http.MethodGet, "/api/users/me", nil, &user, true)
}

func (a *API) Users(ctx context.Context) ([]models.User, error) {
	var users []models.User
	return users, a.call(ctx, http.MethodGet, "/api/users", nil, &users, true)
}

func (a *API) UploadAvatar(ctx context.Context, filename string, r io.Reader) (*models.User, error) {
	body, err := multipartBody(filename, r)
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := a.call(ctx, http.MethodPost, "/api/users/me/avatar", body, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// ─── Channels ───

func (a *API) Channels(ctx context.Context) ([]models.Channel, error) {
	var channels []models.Channel
	return channels, a.call(ctx, http.MethodGet, "/api/channels", nil, &channels, true)
}

func (a *API) CreateChannel(ctx context.Context, name, detail string) (*models.Channel, error) {
	var channel models.Channel
	req := models.CreateChannelRequest{Name: name, Detail: detail}
	if err := a.call(ctx, http.MethodPost, "/api/channels", jsonBody(req), &channel, true); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (a *API) Channel(ctx context.Context, id string) (*models.Channel, error) {
	var channel models.Channel
	if err := a.call(ctx, http.MethodGet, "/api/channels/"+url.PathEscape(id), nil, &channel, true); err != nil {
		return nil, err
	}
	return &channel, nil
}

// ─── Messages ───

// Messages pages backwards: pass the oldest id seen as before.
func (a *API) Messages(ctx context.Context, t Target, before string, limit int) ([]models.Message, error) {
	q := url.Values{}
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := t.base() + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var messages []models.Message
	return messages, a.call(ctx, http.MethodGet, path, nil, &messages, true)
}

func (a *API) SendMessage(ctx context.Context, t Target, content string) (*models.Message, error) {
	var msg models.Message
	if err := a.call(ctx, http.MethodPost, t.base()+"/messages", jsonBody(models.CreateMessageRequest{Content: content}), &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendImage uploads a JPEG or PNG and posts it as an image message.
func (a *API) SendImage(ctx context.Context, t Target, filename string, r io.Reader) (*models.Message, error) {
	body, err := multipartBody(filename, r)
	if err != nil {
		return nil, err
	}
	var msg models.Message
	if err := a.call(ctx, http.MethodPost, t.base()+"/images", body, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (a *API) Search(ctx context.Context, t Target, term string) ([]models.Message, error) {
	var messages []models.Message
	return messages, a.call(ctx, http.MethodGet, t.base()+"/search?q="+url.QueryEscape(term), nil, &messages, true)
}

func (a *API) Stats(ctx context.Context, t Target) (*models.ChannelStats, error) {
	var stats models.ChannelStats
	if err := a.call(ctx, http.MethodGet, t.base()+"/stats", nil, &stats, true); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (a *API) DMPeers(ctx context.Context) ([]models.DMPeer, error) {
	var peers []models.DMPeer
	return peers, a.call(ctx, http.MethodGet, "/api/dm", nil, &peers, true)
}

// ─── Starred, colors, typing ───

func (a *API) Starred(ctx context.Context) ([]models.StarredChannel, error) {
	var starred []models.StarredChannel
	return starred, a.call(ctx, http.MethodGet, "/api/starred", nil, &starred, true)
}

func (a *API) Star(ctx context.Context, channelID string) error {
	return a.call(ctx, http.MethodPut, "/api/starred/"+url.PathEscape(channelID), nil, nil, true)
}

func (a *API) Unstar(ctx context.Context, channelID string) error {
	return a.call(ctx, http.MethodDelete, "/api/starred/"+url.PathEscape(channelID), nil, nil, true)
}

func (a *API) Colors(ctx context.Context) ([]models.ColorTheme, error) {
	var colors []models.ColorTheme
	return colors, a.call(ctx, http.MethodGet, "/api/colors", nil, &colors, true)
}

func (a *API) SaveColor(ctx context.Context, primary, secondary string) (*models.ColorTheme, error) {
	var theme models.ColorTheme
	req := models.SaveColorRequest{Primary: primary, Secondary: secondary}
	if err := a.call(ctx, http.MethodPost, "/api/colors", jsonBody(req), &theme, true); err != nil {
		return nil, err
	}
	return &theme, nil
}

func (a *API) StartTyping(ctx context.Context, channelKey string) error {
	return a.call(ctx, http.MethodPost, "/api/typing", jsonBody(models.TypingRequest{ChannelKey: channelKey}), nil, true)
}

func (a *API) StopTyping(ctx context.Context, channelKey string) error {
	return a.call(ctx, http.MethodDelete, "/api/typing", jsonBody(models.TypingRequest{ChannelKey: channelKey}), nil, true)
}

// ─── Transport ───

// requestBody is buffered so a request can be replayed after a refresh.
type requestBody struct {
	contentType string
	data        []byte
	err         error
}

func jsonBody(v any) *requestBody {
	data, err := json.Marshal(v)
	return &requestBody{contentType: "application/json", data: data, err: err}
}

func multipartBody(filename string, r io.Reader) (*requestBody, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	if err := form.Close(); err != nil {
		return nil, err
	}
	return &requestBody{contentType: form.FormDataContentType(), data: buf.Bytes()}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (a *API) call(ctx context.Context, method, path string, body *requestBody, out any, auth bool) error {
	err := a.do(ctx, method, path, body, out, auth)
	if auth && IsStatus(err, http.StatusUnauthorized) {
		if refreshErr := a.refresh(ctx); refreshErr != nil {
			return err
		}
		return a.do(ctx, method, path, body, out, auth)
	}
	return err
}

func (a *API) do(ctx context.Context, method, path string, body *requestBody, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		if body.err != nil {
			return body.err
		}
		reader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	if auth {
		if token := a.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		msg := env.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}
