package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

// HTTPTransport implements ChannelsTransport over the REST and websocket API.
type HTTPTransport struct {
	base   func() string
	client *http.Client
}

// NewHTTPTransport constructs a transport against the base URL returned by base.
func NewHTTPTransport(base func() string, client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{base: base, client: client}
}

type request struct {
	method  string
	path    string
	query   url.Values
	account int64
	bearer  string
	ctype   string
	body    []byte
}

func (t *HTTPTransport) do(ctx context.Context, r request, out any) (*http.Response, error) {
	u := strings.TrimRight(t.base(), "/") + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, u, bytes.NewReader(r.body))
	if err != nil {
		return nil, err
	}
	if r.account != 0 {
		req.Header.Set("X-Account-Id", strconv.FormatInt(r.account, 10))
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	if r.ctype != "" {
		req.Header.Set("Content-Type", r.ctype)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return resp, &StatusError{Code: resp.StatusCode, Message: body.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp, nil
}

func jsonBody(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func accountPath(account int64, rest string) string {
	return "/api/v1/account/" + strconv.FormatInt(account, 10) + "/channel" + rest
}

func channelPath(channel string, rest string) string {
	return "/api/v1/channel/" + url.PathEscape(channel) + rest
}

func (t *HTTPTransport) CreateChannel(ctx context.Context, account int64, req ChannelCreate) (Channel, error) {
	var ch Channel
	_, err := t.do(ctx, request{method: http.MethodPost, path: accountPath(account, ""), account: account, ctype: "application/json", body: jsonBody(req)}, &ch)
	return ch, err
}

func (t *HTTPTransport) ListChannels(ctx context.Context, account int64) ([]Channel, error) {
	var out struct {
		Channels []Channel `json:"channels"`
	}
	_, err := t.do(ctx, request{method: http.MethodGet, path: accountPath(account, "/list"), account: account}, &out)
	return out.Channels, err
}

func (t *HTTPTransport) GetChannel(ctx context.Context, account int64, channel string) (Channel, error) {
	var ch Channel
	_, err := t.do(ctx, request{method: http.MethodGet, path: accountPath(account, "/"+url.PathEscape(channel)), account: account}, &ch)
	return ch, err
}

func (t *HTTPTransport) AmendChannel(ctx context.Context, account int64, channel string, req ChannelAmend) (Channel, error) {
	var ch Channel
	_, err := t.do(ctx, request{method: http.MethodPost, path: accountPath(account, "/"+url.PathEscape(channel)), account: account, ctype: "application/json", body: jsonBody(req)}, &ch)
	return ch, err
}

func (t *HTTPTransport) DeleteChannel(ctx context.Context, account int64, channel string) error {
	_, err := t.do(ctx, request{method: http.MethodDelete, path: accountPath(account, "/"+url.PathEscape(channel)), account: account}, nil)
	return err
}

func (t *HTTPTransport) CreateToken(ctx context.Context, account int64, channel string, req TokenCreate) (Token, error) {
	var tok Token
	_, err := t.do(ctx, request{method: http.MethodPost, path: accountPath(account, "/"+url.PathEscape(channel)+"/api-token"), account: account, ctype: "application/json", body: jsonBody(req)}, &tok)
	return tok, err
}

func (t *HTTPTransport) ListTokens(ctx context.Context, account int64, channel, token string) ([]Token, error) {
	var q url.Values
	if token != "" {
		q = url.Values{"token": {token}}
	}
	var toks []Token
	_, err := t.do(ctx, request{method: http.MethodGet, path: accountPath(account, "/"+url.PathEscape(channel)+"/api-token"), query: q, account: account}, &toks)
	return toks, err
}

func (t *HTTPTransport) RevokeToken(ctx context.Context, account int64, channel string, tokenID uint64) error {
	path := accountPath(account, "/"+url.PathEscape(channel)+"/api-token/"+strconv.FormatUint(tokenID, 10))
	_, err := t.do(ctx, request{method: http.MethodDelete, path: path, account: account}, nil)
	return err
}

func (t *HTTPTransport) WriteMessage(ctx context.Context, channel, bearer, contentType string, payload []byte) (Message, error) {
	var m Message
	_, err := t.do(ctx, request{method: http.MethodPost, path: channelPath(channel, ""), bearer: bearer, ctype: contentType, body: payload}, &m)
	return m, err
}

func (t *HTTPTransport) ReadMessages(ctx context.Context, channel, bearer string, unread bool) ([]Message, error) {
	var q url.Values
	if unread {
		q = url.Values{"unread": {"true"}}
	}
	var msgs []Message
	_, err := t.do(ctx, request{method: http.MethodGet, path: channelPath(channel, ""), query: q, bearer: bearer}, &msgs)
	return msgs, err
}

func (t *HTTPTransport) MaxSequence(ctx context.Context, channel, bearer string) (uint64, error) {
	resp, err := t.do(ctx, request{method: http.MethodHead, path: channelPath(channel, ""), bearer: bearer}, nil)
	if err != nil {
		return 0, err
	}
	tag, err := strconv.Unquote(resp.Header.Get("ETag"))
	if err != nil {
		return 0, fmt.Errorf("bad etag %q", resp.Header.Get("ETag"))
	}
	return strconv.ParseUint(tag, 10, 64)
}

func (t *HTTPTransport) MarkMessages(ctx context.Context, channel, bearer string, seq uint64, older, read bool) error {
	var q url.Values
	if older {
		q = url.Values{"older": {"true"}}
	}
	body := jsonBody(map[string]bool{"read": read})
	_, err := t.do(ctx, request{method: http.MethodPost, path: channelPath(channel, "/"+strconv.FormatUint(seq, 10)), query: q, bearer: bearer, ctype: "application/json", body: body}, nil)
	return err
}

func (t *HTTPTransport) DeleteMessage(ctx context.Context, channel, bearer string, seq uint64) error {
	_, err := t.do(ctx, request{method: http.MethodDelete, path: channelPath(channel, "/"+strconv.FormatUint(seq, 10)), bearer: bearer}, nil)
	return err
}

// Notify dials the notify websocket and calls onFrame for each frame until
// ctx is done, the server closes, or onFrame returns an error. A server
// close reason frame is delivered before returning.
func (t *HTTPTransport) Notify(ctx context.Context, channel, bearer, filter string, onFrame func(Notification) error) error {
	u, err := url.Parse(strings.TrimRight(t.base(), "/") + channelPath(channel, "/notify"))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if filter != "" {
		u.RawQuery = url.Values{"filter": {filter}}.Encode()
	}
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+bearer)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), hdr)
	if err != nil {
		if resp != nil {
			return &StatusError{Code: resp.StatusCode, Message: "websocket handshake failed"}
		}
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var n Notification
		if err := conn.ReadJSON(&n); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return nil
			}
			return err
		}
		if err := onFrame(n); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// ErrStop ends a Notify loop without error.
var ErrStop = errors.New("stop")
