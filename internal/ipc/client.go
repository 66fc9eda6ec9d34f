package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(serviceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests the daemon to stop and exit.
func (c *Client) Stop() (*StopResponse, error) {
	return call[StopResponse](c, "Stop", StopRequest{})
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// Enqueue appends links to the queue.
func (c *Client) Enqueue(links []string) (*EnqueueResponse, error) {
	return call[EnqueueResponse](c, "Enqueue", EnqueueRequest{Links: links})
}

// Pause pauses processing after the in-flight item.
func (c *Client) Pause() (*PauseResponse, error) {
	return call[PauseResponse](c, "Pause", PauseRequest{})
}

// Resume resumes processing.
func (c *Client) Resume() (*ResumeResponse, error) {
	return call[ResumeResponse](c, "Resume", ResumeRequest{})
}

// Skip discards the next count dequeued links.
func (c *Client) Skip(count int) (*SkipResponse, error) {
	return call[SkipResponse](c, "Skip", SkipRequest{Count: count})
}

// Caption stages text for the next count delivered items.
func (c *Client) Caption(count int, text string) error {
	_, err := call[CaptionResponse](c, "Caption", CaptionRequest{Count: count, Text: text})
	return err
}

// Clear removes every queued link.
func (c *Client) Clear() (*ClearResponse, error) {
	return call[ClearResponse](c, "Clear", ClearRequest{})
}

// Remaining returns a checkpoint of the queued links.
func (c *Client) Remaining() (*RemainingResponse, error) {
	return call[RemainingResponse](c, "Remaining", RemainingRequest{})
}

// History lists recent outcomes, newest first.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return call[HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
