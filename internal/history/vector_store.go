package history

import (
	"context"
	"sort"
	"strconv"

	"agentgw/internal/llm/embedder"
	"agentgw/internal/vectordb"
)

const (
	fieldConversationID = "conversation_id"
	fieldRole           = "role"
	fieldContent        = "content"
	fieldTimestamp      = "timestamp"
)

// VectorStore is the vector backing: each message stored as a point carrying
// its embedding and payload, with secondary indices on conversation_id
// (keyword) and timestamp (integer).
type VectorStore struct {
	store      *vectordb.Store
	embedder   embedder.Embedder
	collection string
}

// NewVectorStore ensures the backing collection and its field indices exist.
func NewVectorStore(ctx context.Context, store *vectordb.Store, emb embedder.Embedder, collection string, metric string) (*VectorStore, error) {
	if err := store.EnsureCollection(ctx, collection, emb.Dimension(), metric); err != nil {
		return nil, err
	}
	if err := store.CreateFieldIndex(ctx, collection, fieldTimestamp, vectordb.FieldInteger); err != nil {
		return nil, err
	}
	if err := store.CreateFieldIndex(ctx, collection, fieldConversationID, vectordb.FieldKeyword); err != nil {
		return nil, err
	}
	return &VectorStore{store: store, embedder: emb, collection: collection}, nil
}

func (s *VectorStore) pointID(msg Message) string {
	return msg.ConversationID + ":" + strconv.FormatInt(msg.Timestamp, 10) + ":" + msg.Role
}

func (s *VectorStore) Append(ctx context.Context, msg Message) error {
	vec, err := s.embedder.Embed(ctx, msg.Content)
	if err != nil {
		return err
	}
	payload := map[string]any{
		fieldConversationID: msg.ConversationID,
		fieldRole:           msg.Role,
		fieldContent:        msg.Content,
		fieldTimestamp:      int(msg.Timestamp),
	}
	return s.store.Upsert(ctx, s.collection, s.pointID(msg), vec, payload)
}

// GetConversation merges a recency scroll (top-n/2 by descending timestamp)
// with a semantic scroll (nearest to the most-recent message's embedding,
// excluding already-retrieved ids), both filtered by conversation_id. The
// merged set is sorted ascending by timestamp and truncated to n.
func (s *VectorStore) GetConversation(ctx context.Context, conversationID string, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	filter := map[string]any{fieldConversationID: conversationID}

	recentN := n / 2
	if recentN == 0 {
		recentN = 1
	}
	recent, err := s.store.ScrollRecent(ctx, s.collection, fieldTimestamp, filter, recentN)
	if err != nil {
		return nil, err
	}

	remaining := n - len(recent)
	var semantic []vectordb.Point
	if remaining > 0 && len(recent) > 0 {
		seedContent, _ := recent[0].Payload[fieldContent].(string)
		vec, embedErr := s.embedder.Embed(ctx, seedContent)
		if embedErr == nil {
			excludeIDs := make([]string, 0, len(recent))
			for _, p := range recent {
				excludeIDs = append(excludeIDs, p.ID)
			}
			semantic, err = s.store.SearchExcluding(ctx, s.collection, vec, remaining, filter, excludeIDs)
			if err != nil {
				return nil, err
			}
		}
	}

	merged := append(append([]vectordb.Point{}, recent...), semantic...)
	sort.SliceStable(merged, func(i, j int) bool {
		return timestampOf(merged[i]) < timestampOf(merged[j])
	})
	if len(merged) > n {
		merged = merged[len(merged)-n:]
	}

	out := make([]Message, 0, len(merged))
	for _, p := range merged {
		role, _ := p.Payload[fieldRole].(string)
		content, _ := p.Payload[fieldContent].(string)
		out = append(out, Message{
			ConversationID: conversationID,
			Role:           role,
			Content:        content,
			Timestamp:      int64(timestampOf(p)),
		})
	}
	return out, nil
}

func timestampOf(p vectordb.Point) int {
	switch v := p.Payload[fieldTimestamp].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

