package server

import (
	"context"
	"net"
	"time"
	"tpa_auth/internal/cryptographic/checksum"
	"tpa_auth/internal/model"
	"tpa_auth/internal/utils/bytesutil"

	"go.uber.org/zap"
)

const journalTimeout = 2 * time.Second

// peerKey drops the ephemeral port so a peer keeps one journal across
// connections.
func peerKey(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func (s *Server) recordMessage(sess *model.Session, plaintext []byte, logger *zap.Logger) {
	if s.journal == nil {
		return
	}

	m := &model.Message{
		SessionID:  sess.ID,
		Peer:       sess.Peer,
		Algorithm:  sess.Algorithm,
		Text:       string(plaintext),
		Checksum:   bytesutil.Hex(checksum.Sum(plaintext)),
		ReceivedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.journal.Append(ctx, peerKey(sess.Peer), m); err != nil {
		logger.Error("journal append failed", zap.Error(err))
	}
}
