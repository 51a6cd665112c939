// Package adminclient is a line-delimited JSON client for the
// gateway's admin control socket, kept separate from the TUI so its
// request/response protocol can be exercised without a terminal.
package adminclient

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Response mirrors adminsock's wire response shape.
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r Response) Err() error {
	if r.Status != "Success" {
		if r.Message != "" {
			return fmt.Errorf("%s", r.Message)
		}
		return fmt.Errorf("admin command failed")
	}
	return nil
}

// Client is a single connection to an admin control socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	enc     *json.Encoder
	Welcome json.RawMessage
}

// Dial connects to addr and reads the welcome banner.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("adminclient: dial %s: %w", addr, err)
	}

	c := &Client{
		conn:    conn,
		scanner: bufio.NewScanner(conn),
		enc:     json.NewEncoder(conn),
	}
	if c.scanner.Scan() {
		c.Welcome = append(json.RawMessage(nil), c.scanner.Bytes()...)
	}
	if err := c.scanner.Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("adminclient: read welcome: %w", err)
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(cmd string, extra map[string]any) (Response, error) {
	payload := map[string]any{"command": cmd}
	for k, v := range extra {
		payload[k] = v
	}
	if err := c.enc.Encode(payload); err != nil {
		return Response{}, fmt.Errorf("adminclient: send %s: %w", cmd, err)
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("adminclient: read reply to %s: %w", cmd, err)
		}
		return Response{}, fmt.Errorf("adminclient: connection closed reading reply to %s", cmd)
	}
	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("adminclient: parse reply to %s: %w", cmd, err)
	}
	return resp, nil
}

func (c *Client) Status() (Response, error) {
	return c.send("Status", nil)
}

func (c *Client) GetProtocols() (Response, error) {
	return c.send("GetProtocols", nil)
}

func (c *Client) ReloadConfig() (Response, error) {
	return c.send("ReloadConfig", nil)
}

func (c *Client) Shutdown() (Response, error) {
	return c.send("Shutdown", nil)
}

func (c *Client) SetLogLevel(level string) (Response, error) {
	return c.send("SetLogLevel", map[string]any{"level": level})
}
