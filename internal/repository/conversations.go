package repository

import (
	"context"

	"gigbook/internal/models"
	"gigbook/internal/store"
)

// ConversationRepository is written by the conversation projector only.
type ConversationRepository struct {
	store store.Store
}

func NewConversationRepository(s store.Store) *ConversationRepository {
	return &ConversationRepository{store: s}
}

// ConversationID derives the id of a venue/performer conversation about
// a gig.
func ConversationID(ref models.ConversationRef) string {
	return ref.GigID + "_" + ref.VenueID + "_" + ref.PerformerID
}

func messagesCollection(conversationID string) string {
	return CollConversations + "/" + conversationID + "/" + subCollMessages
}

func (r *ConversationRepository) Get(ctx context.Context, id string) (*models.Conversation, error) {
	return get[models.Conversation](ctx, r.store, CollConversations, id)
}

func (r *ConversationRepository) Save(ctx context.Context, c *models.Conversation) error {
	return r.store.Set(ctx, CollConversations, c.ID, c)
}

func (r *ConversationRepository) Messages(ctx context.Context, conversationID string) ([]models.ConversationMessage, error) {
	return query[models.ConversationMessage](ctx, r.store, messagesCollection(conversationID), store.Query{})
}

func (r *ConversationRepository) SaveMessage(ctx context.Context, conversationID string, m *models.ConversationMessage) error {
	return r.store.Set(ctx, messagesCollection(conversationID), m.ID, m)
}
