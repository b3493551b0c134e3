// Package smtptest provides an in-process SMTP server for tests.
package smtptest

import (
	"bufio"
	"encoding/base64"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Message is a message accepted by the Server.
type Message struct {
	From     string
	To       []string
	Username string
	Data     []byte
}

// Server is a minimal ESMTP server listening on 127.0.0.1.
// It supports EHLO, AUTH PLAIN, MAIL, RCPT, DATA, RSET, NOOP and QUIT.
type Server struct {
	listener net.Listener
	users    map[string]string

	mx       sync.Mutex
	messages []Message
	conns    map[net.Conn]struct{}

	rejectData atomic.Bool
	wg         sync.WaitGroup
}

// NewServer starts a server on a random local port.
// A nil users map accepts any credentials.
func NewServer(users map[string]string) (*Server, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		listener: listener,
		users:    users,
		conns:    make(map[net.Conn]struct{}),
	}

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns host:port of the server.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// RejectData makes the server answer the end of DATA with 554.
func (s *Server) RejectData(reject bool) {
	s.rejectData.Store(reject)
}

// Messages returns a copy of the accepted messages.
func (s *Server) Messages() []Message {
	s.mx.Lock()
	defer s.mx.Unlock()

	return append([]Message(nil), s.messages...)
}

// Close stops the listener, drops open sessions and waits for them to finish.
func (s *Server) Close() error {
	err := s.listener.Close()

	s.mx.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mx.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return // listener closed
		}

		s.mx.Lock()
		s.conns[conn] = struct{}{}
		s.mx.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mx.Lock()
				delete(s.conns, conn)
				s.mx.Unlock()
				_ = conn.Close()
			}()
			s.session(conn)
		}()
	}
}

type session struct {
	r *bufio.Reader
	w *bufio.Writer

	username string
	from     string
	to       []string
}

func (ss *session) reply(lines ...string) bool {
	for _, line := range lines {
		if _, err := ss.w.WriteString(line + "\r\n"); err != nil {
			return false
		}
	}
	return ss.w.Flush() == nil
}

func (s *Server) session(conn net.Conn) {
	ss := &session{r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}

	if !ss.reply("220 localhost ESMTP smtptest") {
		return
	}

	for {
		line, err := ss.r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(line)

		ok := true
		switch {
		case strings.HasPrefix(verb, "EHLO"):
			ok = ss.reply("250-localhost", "250-8BITMIME", "250 AUTH PLAIN")
		case strings.HasPrefix(verb, "HELO"):
			ok = ss.reply("250 localhost")
		case strings.HasPrefix(verb, "AUTH PLAIN"):
			ok = s.auth(ss, strings.TrimSpace(line[len("AUTH PLAIN"):]))
		case strings.HasPrefix(verb, "MAIL FROM:"):
			ss.from = extractPath(line[len("MAIL FROM:"):])
			ss.to = nil
			ok = ss.reply("250 OK")
		case strings.HasPrefix(verb, "RCPT TO:"):
			if ss.from == "" {
				ok = ss.reply("503 need MAIL first")
				break
			}
			ss.to = append(ss.to, extractPath(line[len("RCPT TO:"):]))
			ok = ss.reply("250 OK")
		case verb == "DATA":
			if len(ss.to) == 0 {
				ok = ss.reply("503 need RCPT first")
				break
			}
			ok = s.data(ss)
		case verb == "RSET":
			ss.from, ss.to = "", nil
			ok = ss.reply("250 OK")
		case verb == "NOOP":
			ok = ss.reply("250 OK")
		case verb == "QUIT":
			ss.reply("221 localhost closing connection")
			return
		default:
			ok = ss.reply("500 Syntax error")
		}
		if !ok {
			return
		}
	}
}

func (s *Server) auth(ss *session, initial string) bool {
	if initial == "" {
		if !ss.reply("334 ") {
			return false
		}
		line, err := ss.r.ReadString('\n')
		if err != nil {
			return false
		}
		initial = strings.TrimSpace(line)
	}

	raw, err := base64.StdEncoding.DecodeString(initial)
	if err != nil {
		return ss.reply("501 malformed credentials")
	}
	// authzid \x00 authcid \x00 passwd
	parts := strings.Split(string(raw), "\x00")
	if len(parts) != 3 {
		return ss.reply("501 malformed credentials")
	}
	username, password := parts[1], parts[2]

	if s.users != nil {
		if want, found := s.users[username]; !found || want != password {
			return ss.reply("535 authentication failed")
		}
	}

	ss.username = username
	return ss.reply("235 Authentication successful")
}

func (s *Server) data(ss *session) bool {
	if !ss.reply("354 End data with <CR><LF>.<CR><LF>") {
		return false
	}

	var msg strings.Builder
	for {
		line, err := ss.r.ReadString('\n')
		if err != nil {
			return false
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "." {
			break
		}
		line = strings.TrimPrefix(line, ".")
		msg.WriteString(line)
		msg.WriteString("\r\n")
	}

	if s.rejectData.Load() {
		ss.from, ss.to = "", nil
		return ss.reply("554 Transaction failed")
	}

	s.mx.Lock()
	s.messages = append(s.messages, Message{
		From:     ss.from,
		To:       ss.to,
		Username: ss.username,
		Data:     []byte(msg.String()),
	})
	s.mx.Unlock()

	ss.from, ss.to = "", nil
	return ss.reply("250 OK")
}

func extractPath(arg string) string {
	arg = strings.TrimSpace(arg)
	if i := strings.Index(arg, "<"); i >= 0 {
		if j := strings.Index(arg[i:], ">"); j >= 0 {
			return arg[i+1 : i+j]
		}
	}
	if i := strings.IndexByte(arg, ' '); i >= 0 {
		return arg[:i]
	}
	return arg
}
