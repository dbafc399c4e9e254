// Package server provides the stream transport: a TCP server that advances
// unencrypted grids with the reference rule, and the matching client.
//
// Messages carry no length field. Both ends derive the exact size from the
// configured grid dimension (life.MessageSize), and the receiver reassembles
// a message from as many reads as the stream needs.
package server

import (
	"context"
	"io"
	"log"
	"net"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/fhegol/life"
)

// ErrConnectionClosed is returned when the peer closes the stream before a
// whole message arrived.
var ErrConnectionClosed = errors.New("server: connection closed before full message")

// DefaultReadBufferSize is the most bytes a single read asks for.
const DefaultReadBufferSize = 4096

// Config holds server configuration
type Config struct {
	Address        string
	Dim            int
	ReadBufferSize int
	// IOTimeout bounds each connection; zero disables deadlines.
	IOTimeout time.Duration
	Logger    *log.Logger
}

// Server is the stream transport server
type Server struct {
	cfg Config
}

// New creates a new stream server
func New(cfg Config) (*Server, error) {
	if cfg.Dim < 1 {
		return nil, errors.Newf("server: invalid grid dimension %d", cfg.Dim)
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Server{cfg: cfg}, nil
}

// ListenAndServe listens on the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Address)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.cfg.Address)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln, one goroutine per connection, until ctx
// ends. It closes ln and waits for open handlers before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.cfg.Logger.Printf("Stream server listening on %s (dim %d, %d-byte messages)",
		ln.Addr(), s.cfg.Dim, life.MessageSize(s.cfg.Dim))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			cancel()
			g.Wait()
			return errors.Wrap(err, "accept")
		}
		g.Go(func() error {
			s.handle(ctx, conn)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	remote := conn.RemoteAddr().String()
	s.cfg.Logger.Printf("Accepting connection from %s", remote)

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.SetNoDelay(true)
	}
	if s.cfg.IOTimeout > 0 {
		conn.SetDeadline(time.Now().Add(s.cfg.IOTimeout))
	}

	if err := s.serveOne(conn); err != nil {
		s.cfg.Logger.Printf("Connection %s failed: %v", remote, err)
		return
	}
	s.cfg.Logger.Printf("Connection %s ended", remote)
}

func (s *Server) serveOne(rw io.ReadWriter) error {
	payload, err := ReadMessage(rw, life.MessageSize(s.cfg.Dim), s.cfg.ReadBufferSize)
	if err != nil {
		return err
	}
	grid, err := life.UnmarshalGrid(payload, s.cfg.Dim)
	if err != nil {
		return err
	}

	out, err := life.Step(grid).MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := rw.Write(out); err != nil {
		return errors.Wrap(err, "write response")
	}
	return nil
}

// ReadMessage reads exactly size bytes, at most bufSize per read. It counts
// the bytes each read actually returned. A peer that closes the stream early
// yields ErrConnectionClosed, never a partial message.
func ReadMessage(r io.Reader, size, bufSize int) ([]byte, error) {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	msg := make([]byte, 0, size)
	buf := make([]byte, bufSize)

	for len(msg) < size {
		want := min(bufSize, size-len(msg))
		n, err := r.Read(buf[:want])
		msg = append(msg, buf[:n]...)
		if len(msg) == size {
			break
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.Wrapf(ErrConnectionClosed, "received %d of %d bytes", len(msg), size)
			}
			return nil, errors.Wrapf(err, "read after %d of %d bytes", len(msg), size)
		}
		if n == 0 {
			return nil, errors.Wrapf(ErrConnectionClosed, "empty read after %d of %d bytes", len(msg), size)
		}
	}
	return msg, nil
}
