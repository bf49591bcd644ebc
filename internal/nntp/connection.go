// Package nntp implements an authenticated, optionally TLS, NNTP client
// connection with pipelined BODY fetches, and the bounded connection pool
// that multiplexes batches of segment fetches across it (spec.md §4.2,
// §4.3).
package nntp

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/datallboy/gonzb/internal/nzbmodel"
	"github.com/datallboy/gonzb/internal/yenc"
)

// Config describes how to reach and authenticate against one server.
type Config struct {
	Host          string
	Port          int
	SSL           bool
	VerifySSLCert bool
	Username      string
	Password      string
}

const (
	connectTimeout  = 30 * time.Second
	handshakeTimeout = 30 * time.Second
	headerTimeout   = 10 * time.Second
	bodyTimeout     = 30 * time.Second
	quitTimeout     = 2 * time.Second
	healthTimeout   = 5 * time.Second
	readBufferSize  = 256 * 1024
)

// Connection owns one TCP/TLS stream to a single server. It is exclusively
// owned by whichever task holds it from the pool.
type Connection struct {
	cfg         Config
	netConn     net.Conn
	tp          *textproto.Conn
	group       string
	poisoned    bool
	tlsSessions *tls.Config // shared session cache, set by the pool
}

// dial opens and authenticates a new connection. tlsConf, when non-nil, is
// shared across connections from the same pool so TLS sessions can be
// resumed, cutting handshake CPU (spec §4.2).
func dial(cfg Config, tlsConf *tls.Config) (*Connection, error) {
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	dialer := &net.Dialer{Timeout: connectTimeout}
	raw, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("nntp: dial %s: %w", addr, err)
	}
	if tc, ok := raw.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	netConn := raw
	if cfg.SSL {
		conf := tlsConf
		if conf == nil {
			conf = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
		}
		if !cfg.VerifySSLCert {
			clone := conf.Clone()
			clone.InsecureSkipVerify = true
			conf = clone
		}
		tlsConn := tls.Client(raw, conf)
		tlsConn.SetDeadline(time.Now().Add(handshakeTimeout))
		if err := tlsConn.Handshake(); err != nil {
			raw.Close()
			return nil, fmt.Errorf("%w: %v", nzbmodel.ErrTLS, err)
		}
		tlsConn.SetDeadline(time.Time{})
		netConn = tlsConn
	}

	reader := bufio.NewReaderSize(netConn, readBufferSize)
	tp := textproto.NewConn(bufferedConn{reader, netConn})

	c := &Connection{cfg: cfg, netConn: netConn, tp: tp, tlsSessions: tlsConf}

	netConn.SetDeadline(time.Now().Add(handshakeTimeout))
	if code, _, err := tp.ReadCodeLine(200); err != nil && code != 201 {
		tp.Close()
		return nil, fmt.Errorf("%w: greeting: %v", nzbmodel.ErrProtocol, err)
	}
	netConn.SetDeadline(time.Time{})

	if cfg.Username != "" {
		if err := c.authenticate(); err != nil {
			tp.Close()
			return nil, err
		}
	}

	return c, nil
}

// bufferedConn reads through a large bufio.Reader and writes and closes
// through the underlying connection.
type bufferedConn struct {
	*bufio.Reader
	net.Conn
}

func (b bufferedConn) Read(p []byte) (int, error) { return b.Reader.Read(p) }

// authenticate performs AUTHINFO USER/PASS. Any failure is reported with
// the password and username redacted to the bare status code (spec §4.2,
// §7).
func (c *Connection) authenticate() error {
	c.netConn.SetDeadline(time.Now().Add(handshakeTimeout))
	defer c.netConn.SetDeadline(time.Time{})

	id, err := c.tp.Cmd("AUTHINFO USER %s", c.cfg.Username)
	if err != nil {
		return fmt.Errorf("%w: sending AUTHINFO USER", nzbmodel.ErrAuthFailed)
	}
	c.tp.StartResponse(id)
	code, _, err := c.tp.ReadCodeLine(381)
	c.tp.EndResponse(id)
	if err != nil {
		if code == 281 {
			return nil
		}
		return fmt.Errorf("%w: status %d", nzbmodel.ErrAuthFailed, code)
	}

	id, err = c.tp.Cmd("AUTHINFO PASS %s", c.cfg.Password)
	if err != nil {
		return fmt.Errorf("%w: sending AUTHINFO PASS", nzbmodel.ErrAuthFailed)
	}
	c.tp.StartResponse(id)
	code, _, err = c.tp.ReadCodeLine(281)
	c.tp.EndResponse(id)
	if err != nil {
		return fmt.Errorf("%w: status %d", nzbmodel.ErrAuthFailed, code)
	}
	return nil
}

// SelectGroup issues GROUP only when the cached group differs.
func (c *Connection) SelectGroup(name string) error {
	if c.group == name {
		return nil
	}
	c.netConn.SetDeadline(time.Now().Add(headerTimeout))
	defer c.netConn.SetDeadline(time.Time{})

	id, err := c.tp.Cmd("GROUP %s", name)
	if err != nil {
		c.poisoned = true
		return fmt.Errorf("%w: GROUP: %v", nzbmodel.ErrProtocol, err)
	}
	c.tp.StartResponse(id)
	_, _, err = c.tp.ReadCodeLine(211)
	c.tp.EndResponse(id)
	if err != nil {
		return fmt.Errorf("%w: %s", nzbmodel.ErrGroupNotFound, name)
	}
	c.group = name
	return nil
}

// DownloadSegment performs a single, non-pipelined BODY fetch and returns
// the decoded payload.
func (c *Connection) DownloadSegment(messageID, group string) ([]byte, error) {
	if err := c.SelectGroup(group); err != nil {
		return nil, err
	}

	c.netConn.SetDeadline(time.Now().Add(headerTimeout))
	id, err := c.tp.Cmd("BODY %s", formatMessageID(messageID))
	if err != nil {
		c.poisoned = true
		return nil, fmt.Errorf("%w: BODY: %v", nzbmodel.ErrProtocol, err)
	}
	c.tp.StartResponse(id)

	code, _, err := c.tp.ReadCodeLine(222)
	if err != nil {
		c.tp.EndResponse(id)
		if code == 430 || code == 423 {
			return nil, nzbmodel.ErrArticleNotFound
		}
		c.poisoned = true
		return nil, fmt.Errorf("%w: BODY status %d", nzbmodel.ErrProtocol, code)
	}

	c.netConn.SetDeadline(time.Now().Add(bodyTimeout))
	body, err := decodeDotBody(c.tp.DotReader())
	c.tp.EndResponse(id)
	c.netConn.SetDeadline(time.Time{})
	if err != nil {
		c.poisoned = true
		return nil, fmt.Errorf("%w: reading body: %v", nzbmodel.ErrTimeout, err)
	}
	return body, nil
}

// DownloadSegmentsPipelined fetches a batch of requests that all share one
// newsgroup: every BODY command is written before any response is read
// (textproto flushes each command line as it is written), and responses are consumed strictly in request
// order (spec §4.2, §8 invariant 4). On any transport-level failure the
// connection is poisoned and must not be returned to the pool.
func (c *Connection) DownloadSegmentsPipelined(reqs []nzbmodel.SegmentRequest) ([]nzbmodel.SegmentResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if err := c.SelectGroup(reqs[0].Group); err != nil {
		return nil, err
	}

	results := make([]nzbmodel.SegmentResult, len(reqs))
	ids := make([]uint, len(reqs))

	c.netConn.SetDeadline(time.Now().Add(headerTimeout))
	for i, r := range reqs {
		id, err := c.tp.Cmd("BODY %s", formatMessageID(r.MessageID))
		if err != nil {
			c.poisoned = true
			for j := i; j < len(reqs); j++ {
				results[j] = nzbmodel.SegmentResult{Number: reqs[j].Number, MessageID: reqs[j].MessageID}
			}
			return results, fmt.Errorf("%w: pipelined BODY: %v", nzbmodel.ErrProtocol, err)
		}
		ids[i] = id
	}

	for i, r := range reqs {
		results[i].Number = r.Number
		results[i].MessageID = r.MessageID

		c.tp.StartResponse(ids[i])
		code, _, err := c.tp.ReadCodeLine(222)
		if err != nil {
			if code == 430 || code == 423 {
				c.tp.EndResponse(ids[i])
				continue
			}
			// A non-222 status that may still carry a body: attempt to
			// drain it to preserve framing for the next response in the
			// pipeline, then give up on the rest of the batch.
			drainDotBody(&c.tp.Reader)
			c.tp.EndResponse(ids[i])
			c.poisoned = true
			for j := i; j < len(reqs); j++ {
				results[j] = nzbmodel.SegmentResult{Number: reqs[j].Number, MessageID: reqs[j].MessageID}
			}
			return results, nil
		}

		c.netConn.SetDeadline(time.Now().Add(bodyTimeout))
		body, err := decodeDotBody(c.tp.DotReader())
		c.tp.EndResponse(ids[i])
		if err != nil {
			// Read timeout or transport error: stop reading, emit None for
			// the remainder, and mark the connection poisoned.
			c.poisoned = true
			for j := i; j < len(reqs); j++ {
				if j > i {
					results[j] = nzbmodel.SegmentResult{Number: reqs[j].Number, MessageID: reqs[j].MessageID}
				}
			}
			return results, nil
		}
		results[i].Data = body
	}
	c.netConn.SetDeadline(time.Time{})
	return results, nil
}

// IsHealthy sends NOOP and expects 200 within 5s.
func (c *Connection) IsHealthy() bool {
	if c.poisoned {
		return false
	}
	c.netConn.SetDeadline(time.Now().Add(healthTimeout))
	defer c.netConn.SetDeadline(time.Time{})

	id, err := c.tp.Cmd("NOOP")
	if err != nil {
		return false
	}
	c.tp.StartResponse(id)
	defer c.tp.EndResponse(id)
	_, _, err = c.tp.ReadCodeLine(200)
	return err == nil
}

// Poisoned reports whether the connection observed a protocol desync and
// must never be returned to the pool.
func (c *Connection) Poisoned() bool { return c.poisoned }

// Close sends QUIT (best-effort, bounded by a short drain timeout) and
// closes the underlying stream.
func (c *Connection) Close() error {
	if c.netConn != nil {
		c.netConn.SetDeadline(time.Now().Add(quitTimeout))
		id, err := c.tp.Cmd("QUIT")
		if err == nil {
			c.tp.StartResponse(id)
			c.tp.ReadCodeLine(205)
			c.tp.EndResponse(id)
		}
	}
	return c.tp.Close()
}

func formatMessageID(id string) string {
	s := strings.TrimSpace(id)
	if len(s) >= 2 && s[0] == '<' && s[len(s)-1] == '>' {
		return s
	}
	return "<" + s + ">"
}

// decodeDotBody yEnc-decodes a body read through a textproto DotReader,
// which undoes dot-stuffing and stops at the terminating "." line.
func decodeDotBody(r io.Reader) ([]byte, error) {
	dec := yenc.NewDecoder(r)
	if err := dec.DiscardHeader(); err != nil {
		return nil, err
	}
	return readAllFromDecoder(dec)
}

// readAllFromDecoder drains dec, returning an error for anything other than
// a clean =yend completion: a read timeout or transport error surfacing
// mid-body must not be mistaken for a finished decode (spec §4.2).
func readAllFromDecoder(dec *yenc.Decoder) ([]byte, error) {
	buf := make([]byte, 0, 64*1024)
	chunk := make([]byte, 32*1024)
	for {
		n, err := dec.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err != nil {
			if err == io.EOF && dec.Done() {
				return buf, nil
			}
			return buf, err
		}
	}
}

// drainDotBody discards a dot-terminated body without decoding it, used to
// keep framing intact after a non-222 status that still carries a body.
func drainDotBody(r *textproto.Reader) {
	for {
		line, err := r.ReadLine()
		if err != nil || line == "." {
			return
		}
	}
}

// dotLineReader adapts a textproto.Reader's ReadLine into a
// newline-delimited byte stream, re-appending the '\n' each ReadLine
// strips. It neither stops at the "." terminator nor undoes dot-stuffing.
type dotLineReader struct {
	r   *textproto.Reader
	buf []byte
	pos int
}

func (d *dotLineReader) ReadByte() (byte, error) {
	for d.pos >= len(d.buf) {
		line, err := d.r.ReadLine()
		if err != nil {
			return 0, err
		}
		d.buf = append(d.buf[:0], line...)
		d.buf = append(d.buf, '\n')
		d.pos = 0
	}
	b := d.buf[d.pos]
	d.pos++
	return b, nil
}

func (d *dotLineReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := d.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		p[n] = b
		n++
	}
	return n, nil
}
