package historyctrl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"datachat/src/core/chat"
)

// Message is one persisted conversation turn, keyed by user name.
type Message struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserName  string    `gorm:"not null;index:idx_messages_user" json:"user_name"`
	Role      string    `gorm:"not null" json:"role"` // "user" or "assistant"
	Content   string    `gorm:"not null" json:"content"`
	Metadata  string    `gorm:"column:metadata" json:"metadata,omitempty"` // JSON-encoded
	CreatedAt time.Time `json:"created_at"`
}

// HistoryService is the append-only chat history store.
type HistoryService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewHistoryService(db *gorm.DB) (*HistoryService, error) {
	node, err := snowflake.NewNode(1) // Node number 1 for chat messages
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	if err := db.AutoMigrate(&Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate message table: %v", err)
	}

	return &HistoryService{
		db:        db,
		snowflake: node,
	}, nil
}

// Add appends one turn for the user. Metadata is optional.
func (s *HistoryService) Add(ctx context.Context, userName, role, content string, metadata map[string]interface{}) error {
	encoded := ""
	if len(metadata) > 0 {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode message metadata: %v", err)
		}
		encoded = string(raw)
	}

	message := &Message{
		ID:       s.snowflake.Generate().Int64(),
		UserName: userName,
		Role:     role,
		Content:  content,
		Metadata: encoded,
	}

	result := s.db.WithContext(ctx).Create(message)
	if result.Error != nil {
		return fmt.Errorf("failed to save message: %v", result.Error)
	}
	return nil
}

// GetRecent returns the user's most recent turns in chronological order.
func (s *HistoryService) GetRecent(ctx context.Context, userName string, limit int) ([]chat.Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	var messages []Message
	result := s.db.WithContext(ctx).
		Where("user_name = ?", userName).
		Order("id DESC").
		Limit(limit).
		Find(&messages)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get messages: %v", result.Error)
	}

	// Reverse: queried newest-first, returned oldest-first.
	turns := make([]chat.Turn, len(messages))
	for i, m := range messages {
		turns[len(messages)-1-i] = chat.Turn{
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	return turns, nil
}

var _ chat.HistoryStore = (*HistoryService)(nil)
