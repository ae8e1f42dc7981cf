package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository persists the outbound message log.
type Repository interface {
	CreateMessage(ctx context.Context, m Message) error
	GetMessage(ctx context.Context, id string) (Message, error)
	UpdateMessage(ctx context.Context, m Message) error
	ListMessages(ctx context.Context, caseID string) ([]Message, error)
}

var (
	ErrNotFound        = errors.New("notify: not found")
	ErrInvalidArgument = errors.New("notify: invalid argument")
	ErrBadReceipt      = errors.New("notify: receipt not applicable")
)

// Service sends customer SMS and keeps the message log. Sends are
// best-effort: a gateway failure is logged (both slog and the message log)
// and reported back as sent=false, never as an error that would block the
// call lifecycle.
type Service struct {
	repo    Repository
	gateway Gateway
	log     *slog.Logger
	clock   func() time.Time

	sendTimeout time.Duration
}

func NewService(repo Repository, gateway Gateway, log *slog.Logger, sendTimeout time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if sendTimeout <= 0 {
		sendTimeout = 5 * time.Second
	}
	return &Service{
		repo:        repo,
		gateway:     gateway,
		log:         log,
		clock:       time.Now,
		sendTimeout: sendTimeout,
	}
}

// CallFailed sends the failed-call apology SMS and logs the attempt.
// The returned flag is the delivery-to-gateway outcome.
func (s *Service) CallFailed(ctx context.Context, caseID, customerName, phone string, ordinal int, reason string) bool {
	body := FailedCallBody(customerName, reason)
	m := Message{
		ID:           uuid.NewString(),
		CaseID:       caseID,
		Kind:         KindFailedCall,
		Phone:        phone,
		Body:         body,
		StageOrdinal: ordinal,
		Reason:       reason,
		SentAt:       s.clock().UTC(),
	}
	return s.dispatch(ctx, m)
}

// CallbackScheduled confirms a rescheduled contact to the customer. The
// last retry of a chain uses the final-attempt wording instead.
func (s *Service) CallbackScheduled(ctx context.Context, caseID, customerName, phone string, at time.Time, finalAttempt bool) bool {
	kind := KindCallbackScheduled
	body := CallbackBody(customerName, at.Format("2006-01-02 15:04"))
	if finalAttempt {
		kind = KindFinalAttempt
		body = FinalAttemptBody(customerName)
	}
	m := Message{
		ID:     uuid.NewString(),
		CaseID: caseID,
		Kind:   kind,
		Phone:  phone,
		Body:   body,
		SentAt: s.clock().UTC(),
	}
	return s.dispatch(ctx, m)
}

// MovedToNextCycle tells the customer contact resumes at the next service
// cycle, after a callback chain exhausted its retries.
func (s *Service) MovedToNextCycle(ctx context.Context, caseID, customerName, phone string, at time.Time) bool {
	m := Message{
		ID:     uuid.NewString(),
		CaseID: caseID,
		Kind:   KindNextCycle,
		Phone:  phone,
		Body:   NextCycleBody(customerName, at.Format("2006-01")),
		SentAt: s.clock().UTC(),
	}
	return s.dispatch(ctx, m)
}

func (s *Service) dispatch(ctx context.Context, m Message) bool {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	res, err := s.gateway.Send(sendCtx, m.Phone, m.Body)
	if err != nil {
		m.Status = StatusFailed
		m.Error = err.Error()
		s.log.Warn("sms send failed", "case_id", m.CaseID, "kind", m.Kind, "err", err)
	} else {
		m.Status = StatusSent
		m.ProviderRef = res.ProviderRef
	}

	if repoErr := s.repo.CreateMessage(ctx, m); repoErr != nil {
		s.log.Error("message log write failed", "case_id", m.CaseID, "err", repoErr)
	}
	return err == nil
}

// ConfirmDelivered applies a delivery receipt from the gateway.
func (s *Service) ConfirmDelivered(ctx context.Context, messageID string, at time.Time) (Message, error) {
	return s.applyReceipt(ctx, messageID, func(m *Message) error {
		if m.Status != StatusSent && m.Status != StatusDelivered {
			return ErrBadReceipt
		}
		if m.Status == StatusSent {
			m.Status = StatusDelivered
			t := at.UTC()
			m.DeliveredAt = &t
		}
		return nil
	})
}

// ConfirmRead applies a read receipt. A read implies delivery.
func (s *Service) ConfirmRead(ctx context.Context, messageID string, at time.Time) (Message, error) {
	return s.applyReceipt(ctx, messageID, func(m *Message) error {
		if m.Status == StatusFailed {
			return ErrBadReceipt
		}
		t := at.UTC()
		if m.DeliveredAt == nil {
			m.DeliveredAt = &t
		}
		if m.ReadAt == nil {
			m.ReadAt = &t
		}
		m.Status = StatusRead
		return nil
	})
}

func (s *Service) applyReceipt(ctx context.Context, messageID string, apply func(*Message) error) (Message, error) {
	if messageID == "" {
		return Message{}, ErrInvalidArgument
	}
	m, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return Message{}, err
	}
	if err := apply(&m); err != nil {
		return Message{}, err
	}
	if err := s.repo.UpdateMessage(ctx, m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// ListForCase returns the case's message log, oldest first.
func (s *Service) ListForCase(ctx context.Context, caseID string) ([]Message, error) {
	if caseID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListMessages(ctx, caseID)
}
