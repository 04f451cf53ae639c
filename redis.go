package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"convergence_worker/internal/experiment"
)

const redisDialTimeout = 5 * time.Second

type redisTarget struct {
	host     string
	password string
	db       int
}

func parseRedisURL(raw string) (redisTarget, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return redisTarget{}, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if u.Scheme == "unix" {
		return redisTarget{}, errors.New("unix sockets not supported by this worker")
	}
	if u.Host == "" {
		return redisTarget{}, fmt.Errorf("invalid REDIS_URL: missing host in %q", raw)
	}
	t := redisTarget{host: u.Host}
	t.password, _ = u.User.Password()
	if part := strings.TrimPrefix(u.Path, "/"); part != "" {
		db, err := strconv.Atoi(part)
		if err != nil {
			return redisTarget{}, fmt.Errorf("invalid REDIS_URL database %q", part)
		}
		t.db = db
	}
	return t, nil
}

// redisPayload is the JSON document pushed per row.
type redisPayload struct {
	RunID string `json:"run_id"`
	experiment.Row
}

// redisSink appends every row as JSON to a Redis list with RPUSH.
type redisSink struct {
	conn  io.Closer
	rw    *bufio.ReadWriter
	key   string
	runID uuid.UUID
}

func dialRedisSink(rawURL, key string, runID uuid.UUID) (*redisSink, error) {
	target, err := parseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialTimeout("tcp", target.host, redisDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	rw := bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	if target.password != "" {
		if err := writeCommand(rw, "AUTH", target.password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("redis auth failed: %w", err)
		}
		if err := readOK(rw); err != nil {
			conn.Close()
			return nil, fmt.Errorf("redis auth failed: %w", err)
		}
	}
	if target.db != 0 {
		if err := writeCommand(rw, "SELECT", strconv.Itoa(target.db)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("redis select failed: %w", err)
		}
		if err := readOK(rw); err != nil {
			conn.Close()
			return nil, fmt.Errorf("redis select failed: %w", err)
		}
	}
	return &redisSink{conn: conn, rw: rw, key: key, runID: runID}, nil
}

func (s *redisSink) WriteRow(row experiment.Row) error {
	payload, err := json.Marshal(redisPayload{RunID: s.runID.String(), Row: row})
	if err != nil {
		return err
	}
	if err := writeCommand(s.rw, "RPUSH", s.key, string(payload)); err != nil {
		return fmt.Errorf("redis write error: %w", err)
	}
	if _, err := readInteger(s.rw); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}
	return nil
}

func (s *redisSink) Close() error {
	return s.conn.Close()
}

func writeCommand(w *bufio.ReadWriter, cmd string, args ...string) error {
	if _, err := fmt.Fprintf(w, "*%d\r\n", 1+len(args)); err != nil {
		return err
	}
	if err := writeBulk(w, cmd); err != nil {
		return err
	}
	for _, a := range args {
		if err := writeBulk(w, a); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeBulk(w *bufio.ReadWriter, s string) error {
	if _, err := fmt.Fprintf(w, "$%d\r\n%s\r\n", len(s), s); err != nil {
		return err
	}
	return nil
}

func readLine(r *bufio.Reader) (string, error) {
	b, err := r.ReadBytes('\n')
	if err != nil {
		return "", err
	}
	if len(b) >= 2 && b[len(b)-2] == '\r' {
		b = b[:len(b)-2]
	}
	return string(b), nil
}

func readOK(rw *bufio.ReadWriter) error {
	line, err := readLine(rw.Reader)
	if err != nil {
		return err
	}
	if len(line) > 0 && line[0] == '+' {
		return nil
	}
	return fmt.Errorf("redis not OK: %s", line)
}

// readInteger reads an integer reply such as the list length after RPUSH.
func readInteger(rw *bufio.ReadWriter) (int64, error) {
	line, err := readLine(rw.Reader)
	if err != nil {
		return 0, err
	}
	if len(line) == 0 {
		return 0, fmt.Errorf("empty reply")
	}
	switch line[0] {
	case ':':
		return strconv.ParseInt(line[1:], 10, 64)
	case '-':
		return 0, fmt.Errorf("redis error: %s", line[1:])
	default:
		return 0, fmt.Errorf("unexpected reply: %s", line)
	}
}
