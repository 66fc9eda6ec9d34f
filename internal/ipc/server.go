package ipc

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
	"time"

	"linkrelay/internal/daemon"
	"linkrelay/internal/deps"
	"linkrelay/internal/logging"
	"linkrelay/internal/logs"
)

const serviceName = "Relay"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName(serviceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Go(func() {
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
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"),
				)
				continue
			}
			s.wg.Go(func() {
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
			})
		}
	})
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun linkrelay stop"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop_ipc"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.LockPath = status.LockFilePath
	resp.LogPath = status.LogPath
	resp.Workflow = status.Workflow
	resp.History = status.History
	resp.Dependencies = DependencyStatuses(status.Dependencies)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	added, err := s.daemon.Enqueue(s.ctx, req.Links)
	if err != nil {
		return err
	}
	resp.Added = added
	return nil
}

func (s *service) Pause(_ PauseRequest, resp *PauseResponse) error {
	if err := s.daemon.Pause(s.ctx); err != nil {
		return err
	}
	resp.State = s.state()
	s.logger.Info("processing paused via IPC", logging.String(logging.FieldEventType, "pause_ipc"))
	return nil
}

func (s *service) Resume(_ ResumeRequest, resp *ResumeResponse) error {
	if err := s.daemon.Resume(s.ctx); err != nil {
		return err
	}
	resp.State = s.state()
	s.logger.Info("processing resumed via IPC", logging.String(logging.FieldEventType, "resume_ipc"))
	return nil
}

func (s *service) Skip(req SkipRequest, resp *SkipResponse) error {
	if err := s.daemon.Skip(s.ctx, req.Count); err != nil {
		return err
	}
	if summary, err := s.daemon.Pipeline(s.ctx); err == nil {
		resp.PendingSkips = summary.PendingSkips
	}
	return nil
}

func (s *service) Caption(req CaptionRequest, _ *CaptionResponse) error {
	return s.daemon.CaptionNext(s.ctx, req.Count, req.Text)
}

func (s *service) Clear(_ ClearRequest, resp *ClearResponse) error {
	removed, err := s.daemon.ClearAll(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("queue cleared via IPC",
		logging.String(logging.FieldEventType, "queue_clear_ipc"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) Remaining(_ RemainingRequest, resp *RemainingResponse) error {
	cp, err := s.daemon.Remaining(s.ctx)
	if err != nil {
		return err
	}
	resp.Checkpoint = cp
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	records, err := s.daemon.History(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Records = records
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	resp.Offset = result.Offset
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) state() string {
	summary, err := s.daemon.Pipeline(s.ctx)
	if err != nil {
		return ""
	}
	return string(summary.State)
}

// DependencyStatuses converts binary checks to wire form with a severity.
func DependencyStatuses(checks []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(checks))
	for _, check := range checks {
		severity := "ok"
		if !check.Available {
			severity = "error"
			if check.Optional {
				severity = "warn"
			}
		}
		out = append(out, DependencyStatus{
			Name:        check.Name,
			Command:     check.Command,
			Description: check.Description,
			Optional:    check.Optional,
			Available:   check.Available,
			Version:     check.Version,
			Detail:      check.Detail,
			Severity:    severity,
		})
	}
	return out
}
