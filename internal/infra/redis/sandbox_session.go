package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-vpn-subscription/internal/domain"
	"telegram-vpn-subscription/internal/domain/ports/repository"
)

var _ repository.SandboxSessionRepository = (*SandboxSessionRepo)(nil)

// SandboxSessionRepo keeps one admin test-pipeline session per admin id.
// Sessions expire on their own so an abandoned pipeline needs no cleanup.
type SandboxSessionRepo struct {
	client *Client
	ttl    time.Duration
}

func NewSandboxSessionRepo(client *Client) *SandboxSessionRepo {
	return &SandboxSessionRepo{client: client, ttl: time.Hour}
}

func sessionKey(adminID int64) string {
	return fmt.Sprintf("sandbox_session:%d", adminID)
}

func (s *SandboxSessionRepo) Put(ctx context.Context, sess *repository.SandboxSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, sessionKey(sess.AdminID), data, s.ttl)
}

func (s *SandboxSessionRepo) Get(ctx context.Context, adminID int64) (*repository.SandboxSession, error) {
	data, err := s.client.Get(ctx, sessionKey(adminID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var sess repository.SandboxSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SandboxSessionRepo) Clear(ctx context.Context, adminID int64) error {
	return s.client.Del(ctx, sessionKey(adminID))
}
