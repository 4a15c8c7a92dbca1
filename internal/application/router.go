package application

import (
	"context"
	"encoding/json"

	"github.com/ericfisherdev/bunqpanel/internal/domain/endpoint"
	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
	"github.com/ericfisherdev/bunqpanel/internal/domain/port/driven"
)

// EndpointRouter issues GETs for the bank resources through one client.
type EndpointRouter struct {
	client driven.BankClient
}

// NewEndpointRouter creates an EndpointRouter over client.
func NewEndpointRouter(client driven.BankClient) *EndpointRouter {
	return &EndpointRouter{client: client}
}

func (r *EndpointRouter) Users(ctx context.Context) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.Users())
}

func (r *EndpointRouter) User(ctx context.Context, userID int64) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.User(userID))
}

func (r *EndpointRouter) MonetaryAccount(ctx context.Context, userID int64, accountID model.OptionalID) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.MonetaryAccount(userID, accountID))
}

func (r *EndpointRouter) Payment(ctx context.Context, userID, accountID int64, paymentID model.OptionalID) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.Payment(userID, accountID, paymentID))
}

func (r *EndpointRouter) Card(ctx context.Context, userID int64, cardID model.OptionalID) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.Card(userID, cardID))
}

func (r *EndpointRouter) ChatConversation(ctx context.Context, userID int64, chatID model.OptionalID) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.ChatConversation(userID, chatID))
}

func (r *EndpointRouter) ChatMessages(ctx context.Context, userID, chatID int64) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.ChatMessages(userID, chatID))
}

func (r *EndpointRouter) ChatAttachment(ctx context.Context, userID, chatID, attachmentID int64) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.ChatAttachment(userID, chatID, attachmentID))
}

func (r *EndpointRouter) ChatAttachmentContent(ctx context.Context, userID, chatID, attachmentID int64) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.ChatAttachmentContent(userID, chatID, attachmentID))
}

func (r *EndpointRouter) Invoice(ctx context.Context, userID int64) (json.RawMessage, error) {
	return r.client.Get(ctx, endpoint.Invoice(userID))
}
