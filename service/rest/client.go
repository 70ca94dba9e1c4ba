package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"GProject/global"
	"GProject/tools/errs"
	"GProject/tools/security"

	pkgerr "github.com/pkg/errors"
)

// Envelope 服务端统一响应结构，code==200 才算成功。
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client 所有 REST 调用的唯一入口。
// 各 reconciler 不自己拼 http 请求，也不各自判断 code 字段。
type Client struct {
	base     string
	hc       *http.Client
	identity security.Provider
}

func NewClient(cfg global.Config, id security.Provider) *Client {
	cfg.Norm()
	return &Client{
		base:     cfg.BaseURL,
		hc:       &http.Client{Timeout: cfg.RequestTimeout},
		identity: id,
	}
}

func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPost, path, query, body, out)
}

func (c *Client) Put(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodPut, path, query, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.do(ctx, http.MethodDelete, path, query, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerr.Wrapf(err, "marshal body for %s %s", method, path)
		}
		rd = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return pkgerr.Wrapf(err, "build request %s %s", method, path)
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")
	if id, ok := c.identity.Current(); ok {
		req.Header.Set("Authorization", id.Token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return pkgerr.Wrapf(errs.ErrTransport, "%s %s: %v", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerr.Wrapf(errs.ErrTransport, "read body %s %s: %v", method, path, err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return pkgerr.Wrapf(err, "bad envelope from %s %s", method, path)
	}
	if env.Code != http.StatusOK {
		return errs.NewCodeError(env.Code, env.Message)
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return pkgerr.Wrapf(err, "decode data from %s %s", method, path)
		}
	}
	return nil
}
