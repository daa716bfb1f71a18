package server

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
	"tpa_auth/internal/config"
	"tpa_auth/internal/cryptographic/algorithm"
	"tpa_auth/internal/cryptographic/cipher"
	"tpa_auth/internal/model"
	"tpa_auth/internal/protocol/tpa"
	"tpa_auth/internal/protocol/wire"
	"tpa_auth/internal/transport"
	"tpa_auth/internal/utils/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	acceptBackoff   = 100 * time.Millisecond
	auditTimeout    = 2 * time.Second
	shutdownTimeout = 5 * time.Second
)

type (
	// Journal keeps received messages per peer.
	Journal interface {
		Append(ctx context.Context, peer string, m *model.Message) error
		Recent(ctx context.Context, peer string) ([]*model.Message, error)
	}

	// Audit records the start and the end of every session.
	Audit interface {
		Create(ctx context.Context, s *model.Session) error
		Finish(ctx context.Context, id, outcome, phase string, messages int, at time.Time) error
	}

	Option func(*Server)

	// Server accepts connections and serves them one at a time, whether they
	// come over TCP or the WebSocket endpoint.
	Server struct {
		cfg  *config.Server
		alg  algorithm.Algorithm
		key  []byte
		priv *rsa.PrivateKey

		journal Journal
		audit   Audit
		metrics *metrics

		// mu serializes sessions.
		mu      sync.Mutex
		served  atomic.Int64
		current atomic.Pointer[tpa.Server]
	}
)

func WithJournal(j Journal) Option {
	return func(s *Server) {
		s.journal = j
	}
}

func WithAudit(a Audit) Option {
	return func(s *Server) {
		s.audit = a
	}
}

// WithPrivateKey sets the RSA key of the server. Required for RSA.
func WithPrivateKey(k *rsa.PrivateKey) Option {
	return func(s *Server) {
		s.priv = k
	}
}

func New(cfg *config.Server, opts ...Option) (*Server, error) {
	alg, key, err := cfg.Key.Material()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		alg:     alg,
		key:     key,
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if alg == algorithm.RSA && s.priv == nil {
		return nil, errors.New("server: RSA needs a private key")
	}
	return s, nil
}

// Served is the number of sessions that ended.
func (s *Server) Served() int64 {
	return s.served.Load()
}

// Run listens on the configured address and, unless disabled, serves the
// admin API next to it, until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen.Address())
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}
	log.Info("listening", zap.String("address", ln.Addr().String()), zap.Stringer("algorithm", s.alg))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.Serve(ctx, ln)
	})

	if !s.cfg.Admin.Disable {
		srv := &http.Server{
			Addr:              s.cfg.Admin.Address,
			Handler:           s.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			// Hijacked WebSocket connections outlive Shutdown, their
			// sessions end with ctx.
			BaseContext: func(net.Listener) context.Context {
				return ctx
			},
		}

		g.Go(func() error {
			log.Info("admin API", zap.String("address", srv.Addr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: admin: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Serve accepts connections on ln until ctx is done or ln is closed. Accept
// and session errors are logged and the loop goes on.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Error("accept failed", zap.Error(err))
			time.Sleep(acceptBackoff)
			continue
		}

		if err := s.ServeChannel(ctx, conn, conn.RemoteAddr().String(), transport.TCP); err != nil {
			log.Warn("session ended with error", zap.Error(err))
		}
	}
}

// ServeChannel runs one protocol session on ch and closes it. Sessions are
// served one at a time, each with key material built afresh from the
// configuration.
func (s *Server) ServeChannel(ctx context.Context, ch wire.Channel, peer, network string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer ch.Close()

	// Cancellation unblocks a session waiting on an idle peer.
	stop := context.AfterFunc(ctx, func() {
		_ = ch.Close()
	})
	defer stop()

	sess := &model.Session{
		ID:        uuid.NewString(),
		Peer:      peer,
		Transport: network,
		Algorithm: s.alg.String(),
		Phase:     tpa.PhaseAwaitingCommand.String(),
		Outcome:   model.OutcomeOpen,
		StartedAt: time.Now().UTC(),
	}
	logger := log.With(zap.String("session", sess.ID), zap.String("peer", peer), zap.String("transport", network))
	logger.Info("connection accepted")
	s.metrics.connections.WithLabelValues(network).Inc()

	c, err := s.newCipher()
	if err != nil {
		return err
	}

	s.auditCreate(sess, logger)

	conn := wire.NewConn(ch,
		wire.WithReadTimeout(s.cfg.Listen.Timeout()),
		wire.WithMaxMessageSize(s.cfg.Listen.MaxMessageSize))
	engine := tpa.NewServer(conn, c,
		tpa.WithLogger(logger),
		tpa.WithMessageHandler(func(plaintext []byte) {
			logger.Info("message received", zap.String("text", string(plaintext)))
			s.metrics.messages.Inc()
			s.recordMessage(sess, plaintext, logger)
		}))

	s.current.Store(engine)
	err = engine.Serve(ctx)
	s.current.Store(nil)

	sess.Messages = engine.Messages()
	sess.Phase = engine.Phase().String()
	switch {
	case err == nil:
		sess.Outcome = model.OutcomeCompleted
	case ctx.Err() != nil:
		sess.Outcome = model.OutcomeCancelled
	default:
		sess.Outcome = model.OutcomeChannelLost
	}

	result := "failed"
	if engine.Established() {
		result = "established"
	}
	s.metrics.handshakes.WithLabelValues(result).Inc()
	s.metrics.sessionDuration.Observe(time.Since(sess.StartedAt).Seconds())
	s.served.Add(1)

	s.auditFinish(sess, logger)
	logger.Info("connection closed", zap.String("outcome", sess.Outcome), zap.Int("messages", sess.Messages))
	return err
}

func (s *Server) newCipher() (*cipher.Service, error) {
	if s.alg == algorithm.RSA {
		return cipher.NewRSA(s.priv)
	}
	return cipher.New(s.alg, s.key)
}

func (s *Server) auditCreate(sess *model.Session, logger *zap.Logger) {
	if s.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.audit.Create(ctx, sess); err != nil {
		logger.Error("audit create failed", zap.Error(err))
	}
}

func (s *Server) auditFinish(sess *model.Session, logger *zap.Logger) {
	if s.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	if err := s.audit.Finish(ctx, sess.ID, sess.Outcome, sess.Phase, sess.Messages, time.Now().UTC()); err != nil {
		logger.Error("audit finish failed", zap.Error(err))
	}
}
