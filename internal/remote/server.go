package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"synthfilter/internal/logging"
)

// ServiceName is the RPC receiver name clients address.
const ServiceName = "Synth"

// ErrAlreadyRunning is returned when another process owns the socket.
var ErrAlreadyRunning = errors.New("another synthfilter instance owns the remote control socket")

// LockPath returns the lock file guarding socketPath.
func LockPath(socketPath string) string {
	return socketPath + ".lock"
}

// Server exposes a Controller via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	lock      *flock.Flock
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

// NewServer takes the socket lock and listens on path.
func NewServer(ctx context.Context, path string, ctrl Controller, logger *slog.Logger) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("remote server requires a controller")
	}
	logger = logging.NewComponentLogger(logger, "remote")

	lock := flock.New(LockPath(path))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire remote lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	if err := os.RemoveAll(path); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(ServiceName, &service{ctrl: ctrl, logger: logger}); err != nil {
		listener.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		lock:      lock,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

// Serve accepts connections until Close or the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("remote control listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "remote_accept_failed",
					logging.Error(err),
					logging.String("impact", "remote clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions"))
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
	go func() {
		<-s.ctx.Done()
		_ = s.listener.Close()
	}()
}

// Close stops the server, removes the socket and releases the lock.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connMu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.connMu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "remote_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release remote lock", logging.Error(err))
	}
	_ = os.Remove(LockPath(s.path))
}

func (s *Server) track(conn net.Conn, add bool) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
		return
	}
	delete(s.conns, conn)
}

type service struct {
	ctrl   Controller
	logger *slog.Logger
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.ctrl.Status()
	return nil
}

func (s *service) Reload(req ReloadRequest, resp *ReloadResponse) error {
	s.logger.Info("reload requested", logging.Script(req.ScriptPath))
	*resp = s.ctrl.Reload(req.ScriptPath)
	if !resp.Reloaded {
		s.logger.Warn("remote reload failed", logging.String("reason", resp.Message))
	}
	return nil
}
