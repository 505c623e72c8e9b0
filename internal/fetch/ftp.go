package fetch

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ListingContentType marks FTP directory listings so the link discovery
// step knows to parse them as listings rather than HTML.
const ListingContentType = "text/x-ftp-listing"

// FTPFetcher fetches ftp locators. A path ending in "/" retrieves a
// directory listing; any other path retrieves the file in binary mode.
//
// Design decision: We speak the control protocol directly over a net.Conn
// rather than pulling in an FTP client library because:
//  1. Only anonymous passive-mode RETR and LIST are needed
//  2. The conversation is a handful of request/reply lines
//  3. Streaming the data connection straight into the body keeps memory flat
type FTPFetcher struct {
	// dialer establishes control and data connections.
	dialer *net.Dialer

	// user and password are the login credentials. Anonymous by default.
	user     string
	password string

	// timeout bounds the whole exchange when the context has no deadline.
	timeout time.Duration
}

// FTPOption configures an FTPFetcher.
type FTPOption func(*FTPFetcher)

// WithFTPCredentials sets the login credentials.
func WithFTPCredentials(user, password string) FTPOption {
	return func(f *FTPFetcher) {
		f.user = user
		f.password = password
	}
}

// WithFTPTimeout sets the fallback per-request deadline.
func WithFTPTimeout(timeout time.Duration) FTPOption {
	return func(f *FTPFetcher) {
		f.timeout = timeout
	}
}

// NewFTPFetcher creates an FTP fetcher.
func NewFTPFetcher(opts ...FTPOption) *FTPFetcher {
	f := &FTPFetcher{
		dialer:   &net.Dialer{Timeout: 30 * time.Second},
		user:     "anonymous",
		password: "anonymous@",
		timeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Schemes returns the schemes this fetcher handles.
func (f *FTPFetcher) Schemes() []string {
	return []string{"ftp"}
}

// Fetch performs one FTP exchange.
func (f *FTPFetcher) Fetch(ctx context.Context, req *Request) *Outcome {
	if _, ok := ctx.Deadline(); !ok && f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	ctrl, err := f.dialer.DialContext(ctx, "tcp", req.DialAddress())
	if err != nil {
		return classifiedOutcome(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = ctrl.SetDeadline(deadline)
	}

	conn := &ftpConn{ctrl: ctrl, reader: bufio.NewReader(ctrl)}

	outcome := f.exchange(ctx, conn, req)
	if outcome.Class != Success {
		_ = ctrl.Close()
	}
	return outcome
}

// exchange runs the control conversation after the connection is up.
func (f *FTPFetcher) exchange(ctx context.Context, conn *ftpConn, req *Request) *Outcome {
	// Greeting, then login.
	if code, msg, err := conn.readReply(); err != nil {
		return classifiedOutcome(err)
	} else if code != 220 {
		return permanentOutcome(KindProtocolViolation, replyError("greeting", code, msg))
	}

	if out := f.login(conn); out != nil {
		return out
	}

	if code, msg, err := conn.command("TYPE I"); err != nil {
		return classifiedOutcome(err)
	} else if code != 200 {
		return permanentOutcome(KindProtocolViolation, replyError("TYPE", code, msg))
	}

	dataAddr, out := f.passive(conn)
	if out != nil {
		return out
	}

	data, err := f.dialer.DialContext(ctx, "tcp", dataAddr)
	if err != nil {
		return classifiedOutcome(err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = data.SetDeadline(deadline)
	}

	path := req.Locator.Path()
	listing := strings.HasSuffix(path, "/")
	var cmd string
	if listing {
		cmd = "LIST " + path
	} else {
		cmd = "RETR " + path
	}

	code, msg, err := conn.command(cmd)
	if err != nil {
		_ = data.Close()
		return classifiedOutcome(err)
	}
	if code != 150 && code != 125 {
		_ = data.Close()
		return classifyReply(cmd, code, msg)
	}

	contentType := "application/octet-stream"
	if listing {
		contentType = ListingContentType
	}

	return successOutcome(&Response{
		StatusCode:    code,
		Status:        fmt.Sprintf("%d %s", code, msg),
		ContentType:   contentType,
		ContentLength: -1,
		Body:          &ftpBody{data: data, conn: conn},
	})
}

// login authenticates on the control connection. Returns nil on success.
func (f *FTPFetcher) login(conn *ftpConn) *Outcome {
	code, msg, err := conn.command("USER " + f.user)
	if err != nil {
		return classifiedOutcome(err)
	}
	if code == 331 {
		code, msg, err = conn.command("PASS " + f.password)
		if err != nil {
			return classifiedOutcome(err)
		}
	}
	if code != 230 {
		return classifyReply("login", code, msg)
	}
	return nil
}

// passive enters passive mode and returns the data connection address.
func (f *FTPFetcher) passive(conn *ftpConn) (string, *Outcome) {
	code, msg, err := conn.command("PASV")
	if err != nil {
		return "", classifiedOutcome(err)
	}
	if code != 227 {
		return "", classifyReply("PASV", code, msg)
	}

	addr, err := parsePasvReply(msg)
	if err != nil {
		return "", permanentOutcome(KindMalformedResponse, err)
	}
	return addr, nil
}

// parsePasvReply extracts host:port from a 227 reply like
// "Entering Passive Mode (127,0,0,1,200,10)".
func parsePasvReply(msg string) (string, error) {
	start := strings.Index(msg, "(")
	end := strings.Index(msg, ")")
	if start < 0 || end < start {
		return "", fmt.Errorf("malformed PASV reply %q", msg)
	}

	parts := strings.Split(msg[start+1:end], ",")
	if len(parts) != 6 {
		return "", fmt.Errorf("malformed PASV reply %q", msg)
	}

	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return "", fmt.Errorf("malformed PASV reply %q", msg)
		}
		nums[i] = n
	}

	host := fmt.Sprintf("%d.%d.%d.%d", nums[0], nums[1], nums[2], nums[3])
	port := nums[4]*256 + nums[5]
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// classifyReply maps an FTP error reply to an outcome. 4yz replies are
// transient by protocol definition, 5yz are permanent.
func classifyReply(cmd string, code int, msg string) *Outcome {
	err := replyError(cmd, code, msg)
	if code >= 400 && code < 500 {
		return transientOutcome(KindConnectionReset, err)
	}
	return permanentOutcome(KindProtocolViolation, err)
}

// replyError formats an unexpected control reply.
func replyError(cmd string, code int, msg string) error {
	return fmt.Errorf("%s failed: %d %s", cmd, code, msg)
}

// ftpConn is a control connection with reply parsing.
type ftpConn struct {
	ctrl   net.Conn
	reader *bufio.Reader
}

// command sends one control command and reads its reply.
func (c *ftpConn) command(cmd string) (int, string, error) {
	if _, err := fmt.Fprintf(c.ctrl, "%s\r\n", cmd); err != nil {
		return 0, "", fmt.Errorf("failed to send %s: %w", strings.Fields(cmd)[0], err)
	}
	return c.readReply()
}

// readReply reads one possibly multi-line control reply.
func (c *ftpConn) readReply() (int, string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return 0, "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 {
		return 0, "", fmt.Errorf("short control reply %q", line)
	}

	code, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", fmt.Errorf("malformed control reply %q", line)
	}
	msg := line[4:]

	// Multi-line replies run until "NNN " repeats the code.
	if line[3] == '-' {
		terminator := line[:3] + " "
		for {
			next, err := c.reader.ReadString('\n')
			if err != nil {
				return 0, "", err
			}
			next = strings.TrimRight(next, "\r\n")
			if strings.HasPrefix(next, terminator) {
				msg += "\n" + next[4:]
				break
			}
			msg += "\n" + next
		}
	}

	return code, msg, nil
}

// ftpBody streams the data connection and finalizes the transfer on Close.
type ftpBody struct {
	data net.Conn
	conn *ftpConn
}

// Read reads transferred bytes from the data connection.
func (b *ftpBody) Read(p []byte) (int, error) {
	return b.data.Read(p)
}

// Close closes the data connection, consumes the transfer-complete reply,
// and shuts down the control connection.
func (b *ftpBody) Close() error {
	err := b.data.Close()

	// 226 expected; a failure here is not worth surfacing since the
	// caller already has the content it managed to read.
	_, _, _ = b.conn.readReply()
	_, _, _ = b.conn.command("QUIT")
	if cerr := b.conn.ctrl.Close(); err == nil {
		err = cerr
	}
	return err
}
