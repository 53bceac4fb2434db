// Copyright 2023 The pulse-core Authors
// This file is part of the pulse-core library.
//
// The pulse-core library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The pulse-core library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the pulse-core library. If not, see <http://www.gnu.org/licenses/>.

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultRateLimit = 10 // requests per second per endpoint
	maxResponseSize  = 64 * 1024 * 1024
)

// Client is a JSON-RPC 2.0 client shared by the built-in providers. One
// Client exists per upstream endpoint; requests are rate limited and
// bounded by a per-call timeout.
type Client struct {
	url     string
	auth    string
	http    *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	reqID   atomic.Uint64
}

// ClientConfig holds the endpoint options for a Client.
type ClientConfig struct {
	URL       string
	AuthToken string        // sent as a bearer token when set
	RateLimit float64       // maximum upstream requests / second (default 10)
	Timeout   time.Duration // per-call timeout (default 15s)
}

func (cfg ClientConfig) withDefaults() ClientConfig {
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// NewClient creates a Client for the given endpoint.
func NewClient(cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		url:     cfg.URL,
		auth:    cfg.AuthToken,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 2*int(cfg.RateLimit)),
		timeout: cfg.Timeout,
	}
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string { return c.url }

type rpcRequest struct {
	Version string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Call performs a single JSON-RPC call and decodes the result into result.
// A JSON-RPC error object is returned as *UpstreamError; transport and
// status failures keep their transport types so IsRetriable can classify
// them.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{
		Version: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.auth != "" {
		req.Header.Set("Authorization", "Bearer "+c.auth)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return &StatusError{URL: c.url, Code: resp.StatusCode}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("invalid rpc response: %w", err)
	}
	if rr.Error != nil {
		return &UpstreamError{Method: method, Code: rr.Error.Code, Msg: rr.Error.Message}
	}
	if result == nil {
		return nil
	}
	if len(rr.Result) == 0 || bytes.Equal(rr.Result, []byte("null")) {
		return ErrNotYetAvailable
	}
	return json.Unmarshal(rr.Result, result)
}
