// Package endpoint builds bunq resource paths. Every path hangs off the
// user base path "/user/{userID}"; optional identifiers append one more
// segment when set.
package endpoint

import (
	"fmt"

	"github.com/ericfisherdev/bunqpanel/internal/domain/model"
)

const (
	segmentUser                  = "user"
	segmentMonetaryAccount       = "monetary-account"
	segmentPayment               = "payment"
	segmentCard                  = "card"
	segmentChatConversation      = "chat-conversation"
	segmentChatMessage           = "message"
	segmentChatAttachment        = "attachment"
	segmentChatAttachmentContent = "content"
	segmentInvoice               = "invoice"
)

// Users is the collection of users visible to the API key.
func Users() string {
	return "/" + segmentUser
}

// User is the base path every user-scoped resource is nested under.
func User(userID int64) string {
	return fmt.Sprintf("/%s/%d", segmentUser, userID)
}

// nested appends "/{resource}" and, when id is set, "/{id}".
func nested(base, resource string, id model.OptionalID) string {
	path := base + "/" + resource
	if id.IsSet() {
		path += "/" + id.String()
	}
	return path
}

// MonetaryAccount addresses all accounts of userID, or one when accountID is set.
func MonetaryAccount(userID int64, accountID model.OptionalID) string {
	return nested(User(userID), segmentMonetaryAccount, accountID)
}

// Payment addresses the payments of one account, or one payment when
// paymentID is set.
func Payment(userID, accountID int64, paymentID model.OptionalID) string {
	return nested(MonetaryAccount(userID, model.ID(accountID)), segmentPayment, paymentID)
}

// Card addresses all cards of userID, or one when cardID is set.
func Card(userID int64, cardID model.OptionalID) string {
	return nested(User(userID), segmentCard, cardID)
}

// ChatConversation addresses all conversations of userID, or one when chatID is set.
func ChatConversation(userID int64, chatID model.OptionalID) string {
	return nested(User(userID), segmentChatConversation, chatID)
}

// ChatMessages addresses the messages of one conversation.
func ChatMessages(userID, chatID int64) string {
	return ChatConversation(userID, model.ID(chatID)) + "/" + segmentChatMessage
}

// ChatAttachment addresses one attachment of a conversation.
func ChatAttachment(userID, chatID, attachmentID int64) string {
	return nested(ChatConversation(userID, model.ID(chatID)), segmentChatAttachment, model.ID(attachmentID))
}

// ChatAttachmentContent addresses the raw content of an attachment.
func ChatAttachmentContent(userID, chatID, attachmentID int64) string {
	return ChatAttachment(userID, chatID, attachmentID) + "/" + segmentChatAttachmentContent
}

// Invoice addresses all invoices of userID.
func Invoice(userID int64) string {
	return nested(User(userID), segmentInvoice, model.OptionalID{})
}
