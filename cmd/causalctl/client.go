package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sentinelgraph/sentinel/pkg/agent"
	"github.com/sentinelgraph/sentinel/pkg/ipc"
)

// localClient talks the length-prefixed JSON framing of a single agent's
// local control socket (spec §5).
type localClient struct {
	conn net.Conn
}

func dialLocal(socketPath string) (*localClient, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("dial agent socket %s: %w", socketPath, err)
	}
	return &localClient{conn: conn}, nil
}

func (c *localClient) Close() error {
	return c.conn.Close()
}

func (c *localClient) call(req agent.Request) (agent.Response, error) {
	if err := ipc.WriteFrame(c.conn, req); err != nil {
		return agent.Response{}, fmt.Errorf("send request: %w", err)
	}
	var resp agent.Response
	if err := ipc.ReadFrame(bufio.NewReader(c.conn), ipc.MaxResponseBytes, &resp); err != nil {
		return agent.Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, fmt.Errorf("agent: %s", resp.Error)
	}
	return resp, nil
}

// hubClient talks the hub's HTTP control plane (spec §6).
type hubClient struct {
	baseURL string
	http    *http.Client
}

func dialHub(baseURL string) *hubClient {
	return &hubClient{baseURL: baseURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *hubClient) getJSON(path string, out interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func (c *hubClient) postJSON(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	return decodeOrError(resp, out)
}

func decodeOrError(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("hub returned %s: %s", resp.Status, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

