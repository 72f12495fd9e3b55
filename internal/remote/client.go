package remote

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to a running session.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the remote control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Status retrieves the session status.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(ServiceName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reload asks the session to reload, optionally switching to scriptPath.
func (c *Client) Reload(scriptPath string) (*ReloadResponse, error) {
	var resp ReloadResponse
	if err := c.client.Call(ServiceName+".Reload", ReloadRequest{ScriptPath: scriptPath}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
