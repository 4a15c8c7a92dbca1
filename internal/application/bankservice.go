package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
)

// ResourceQuery carries the optional identifiers of one resource request.
type ResourceQuery struct {
	UserID       model.OptionalID
	AccountID    model.OptionalID
	PaymentID    model.OptionalID
	CardID       model.OptionalID
	ChatID       model.OptionalID
	AttachmentID model.OptionalID
}

// BankService applies the single-versus-collection selection policy for each
// resource and answers with a JSON body in every case: the remote reply on
// success, otherwise the remote error or an error envelope.
type BankService struct {
	logger *slog.Logger
}

// NewBankService creates a new BankService.
func NewBankService(logger *slog.Logger) *BankService {
	return &BankService{logger: logger}
}

func unresolved(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResourceResolution, fmt.Sprintf(format, args...))
}

// router returns an EndpointRouter bound to the session's active token.
func (b *BankService) router(session *Session) (*EndpointRouter, error) {
	client, err := session.Client()
	if err != nil {
		return nil, err
	}
	return NewEndpointRouter(client), nil
}

func (b *BankService) finish(op string, session *Session, raw json.RawMessage, err error) (json.RawMessage, error) {
	if err != nil {
		b.logger.Warn("bank request failed", "op", op, "owner", session.OwnerID, "error", err)
	}
	return reply(raw, err)
}

// Users returns one user when q.UserID is set, otherwise every user visible
// to the API key.
func (b *BankService) Users(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	r, err := b.router(session)
	if err != nil {
		return b.finish("users", session, nil, err)
	}
	if userID, ok := q.UserID.Get(); ok {
		raw, err := r.User(ctx, userID)
		return b.finish("users", session, raw, err)
	}
	raw, err := r.Users(ctx)
	return b.finish("users", session, raw, err)
}

// Accounts returns one monetary account when q.AccountID is set, otherwise
// all accounts of q.UserID.
func (b *BankService) Accounts(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	userID, ok := q.UserID.Get()
	if !ok {
		return b.finish("accounts", session, nil, unresolved("userID is required to fetch accounts"))
	}
	r, err := b.router(session)
	if err != nil {
		return b.finish("accounts", session, nil, err)
	}
	raw, err := r.MonetaryAccount(ctx, userID, q.AccountID)
	return b.finish("accounts", session, raw, err)
}

// Payments returns one payment when q.PaymentID is set, otherwise all
// payments of the account.
func (b *BankService) Payments(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	userID, hasUser := q.UserID.Get()
	accountID, hasAccount := q.AccountID.Get()
	if !hasUser || !hasAccount {
		return b.finish("payments", session, nil, unresolved("userID and accountID are required to fetch payments"))
	}
	r, err := b.router(session)
	if err != nil {
		return b.finish("payments", session, nil, err)
	}
	raw, err := r.Payment(ctx, userID, accountID, q.PaymentID)
	return b.finish("payments", session, raw, err)
}

// Cards returns one card when q.CardID is set, otherwise all cards of q.UserID.
func (b *BankService) Cards(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	userID, ok := q.UserID.Get()
	if !ok {
		return b.finish("cards", session, nil, unresolved("userID is required to fetch cards"))
	}
	r, err := b.router(session)
	if err != nil {
		return b.finish("cards", session, nil, err)
	}
	raw, err := r.Card(ctx, userID, q.CardID)
	return b.finish("cards", session, raw, err)
}

// Chats returns one conversation when q.ChatID is set, otherwise all
// conversations of q.UserID.
func (b *BankService) Chats(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	userID, ok := q.UserID.Get()
	if !ok {
		return b.finish("chats", session, nil, unresolved("userID is required to fetch chats"))
	}
	r, err := b.router(session)
	if err != nil {
		return b.finish("chats", session, nil, err)
	}
	raw, err := r.ChatConversation(ctx, userID, q.ChatID)
	return b.finish("chats", session, raw, err)
}

// ChatMessages returns the messages of conversation q.ChatID.
func (b *BankService) ChatMessages(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	userID, hasUser := q.UserID.Get()
	chatID, hasChat := q.ChatID.Get()
	if !hasUser || !hasChat {
		return b.finish("chat messages", session, nil, unresolved("userID and chatID are required to fetch messages"))
	}
	r, err := b.router(session)
	if err != nil {
		return b.finish("chat messages", session, nil, err)
	}
	raw, err := r.ChatMessages(ctx, userID, chatID)
	return b.finish("chat messages", session, raw, err)
}

// ChatAttachment returns the metadata of one attachment.
func (b *BankService) ChatAttachment(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	return b.attachment(ctx, session, q, false)
}

// ChatAttachmentContent returns the content of one attachment.
func (b *BankService) ChatAttachmentContent(ctx context.Context, session *Session, q ResourceQuery) (json.RawMessage, error) {
	return b.attachment(ctx, session, q, true)
}

func (b *BankService) attachment(ctx context.Context, session *Session, q ResourceQuery, content bool) (json.RawMessage, error) {
	op := "chat attachment"
	if content {
		op = "chat attachment content"
	}

	userID, hasUser := q.UserID.Get()
	chatID, hasChat := q.ChatID.Get()
	attachmentID, hasAttachment := q.AttachmentID.Get()
	if !hasUser || !hasChat || !hasAttachment {
		return b.finish(op, session, nil, unresolved("userID, chatID and attachmentID are required to fetch an attachment"))
	}

	r, err := b.router(session)
	if err != nil {
		return b.finish(op, session, nil, err)
	}
	if content {
		raw, err := r.ChatAttachmentContent(ctx, userID, chatID, attachmentID)
		return b.finish(op, session, raw, err)
	}
	raw, err := r.ChatAttachment(ctx, userID, chatID, attachmentID)
	return b.finish(op, session, raw, err)
}
