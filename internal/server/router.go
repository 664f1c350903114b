package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/ilpi-dev/ilpi-store/pkg/schema"
	"github.com/ilpi-dev/ilpi-store/pkg/sdk"
)

// maxLine bounds a single command. Whole collections travel on one line.
const maxLine = 16 << 20

type Router struct {
	api      sdk.API
	cert     *tls.Certificate
	log      *slog.Logger
	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewRouter(api sdk.API, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{api: api, log: log}
}

// SetCertificate sets the TLS certificate for the router
func (r *Router) SetCertificate(cert tls.Certificate) {
	r.cert = &cert
}

// Listen starts the TCP server. It returns nil once Stop is called.
func (r *Router) Listen(port string) error {
	var listener net.Listener
	var err error

	if r.cert != nil {
		config := &tls.Config{Certificates: []tls.Certificate{*r.cert}}
		listener, err = tls.Listen("tcp", ":"+port, config)
	} else {
		listener, err = net.Listen("tcp", ":"+port)
	}
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.listener = listener
	r.mu.Unlock()
	defer listener.Close()

	semaphore := make(chan struct{}, 100) // Max 100 concurrent connections

	for {
		conn, err := listener.Accept()
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			continue
		}

		// Set aggressive timeouts for light traffic to prevent resource exhaustion
		conn.SetDeadline(time.Now().Add(5 * time.Minute))

		go func(c net.Conn) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				c.Close()
			}()
			r.HandleConnection(c)
		}(conn)
	}
}

// Addr returns the bound address, or nil before Listen has bound.
func (r *Router) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Stop closes the listener. Connections already accepted run to completion.
func (r *Router) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.listener == nil {
		return nil
	}
	return r.listener.Close()
}

// HandleConnection serves one client until QUIT, EOF or an idle timeout.
func (r *Router) HandleConnection(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)

	for {
		// Set a deadline for the next command
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		if !scanner.Scan() {
			return // Connection closed or timeout
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		command, arg, _ := strings.Cut(line, " ")
		command = strings.ToUpper(command)
		arg = strings.TrimSpace(arg)

		if command == "QUIT" {
			return
		}
		r.dispatch(conn, command, arg)
	}
}

func (r *Router) dispatch(conn net.Conn, command, arg string) {
	ctx := context.Background()

	switch command {
	case "PING":
		fmt.Fprintln(conn, "PONG")

	case "LOAD":
		env, err := r.api.FetchAllData(ctx)
		reply(conn, env, err)

	case "SYNC_EMPLOYEES":
		var items []schema.Employee
		if !decodeArg(conn, arg, &items) {
			return
		}
		out, err := r.api.SyncEmployees(ctx, items)
		reply(conn, out, err)

	case "SYNC_SHIFTS":
		var items []schema.ShiftRecord
		if !decodeArg(conn, arg, &items) {
			return
		}
		out, err := r.api.SyncShifts(ctx, items)
		reply(conn, out, err)

	case "SYNC_VACATIONS":
		var items []schema.VacationRequest
		if !decodeArg(conn, arg, &items) {
			return
		}
		out, err := r.api.SyncVacations(ctx, items)
		reply(conn, out, err)

	case "RESET":
		env, err := r.api.ResetSystem(ctx)
		reply(conn, env, err)

	case "IMPORT":
		if arg == "" {
			fmt.Fprintf(conn, "ERR %v: missing json value\n", sdk.ErrMalformedImport)
			return
		}
		env, err := r.api.ImportData(ctx, []byte(arg))
		reply(conn, env, err)

	default:
		r.log.Debug("unknown command", "command", command, "remote", conn.RemoteAddr())
		fmt.Fprintln(conn, "ERR unknown command", command)
	}
}

func decodeArg(conn net.Conn, arg string, out any) bool {
	if arg == "" {
		fmt.Fprintln(conn, "ERR missing json value")
		return false
	}
	if err := json.Unmarshal([]byte(arg), out); err != nil {
		fmt.Fprintln(conn, "ERR invalid json value")
		return false
	}
	return true
}

func reply(conn net.Conn, val any, err error) {
	if err != nil {
		fmt.Fprintln(conn, "ERR", oneLine(err.Error()))
		return
	}
	res, err := json.Marshal(val)
	if err != nil {
		fmt.Fprintln(conn, "ERR internal error")
		return
	}
	fmt.Fprintln(conn, "OK", string(res))
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "; ")
}
