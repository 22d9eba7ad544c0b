package querylogctrl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// QueryLog records one answered question for later performance analysis.
type QueryLog struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	Question       string    `gorm:"not null;type:text" json:"question"`
	Answer         string    `gorm:"not null;type:text" json:"answer"`
	Sources        string    `json:"sources"` // comma-separated source filenames
	InputTokens    int       `json:"input_tokens"`
	OutputTokens   int       `json:"output_tokens"`
	ResponseTimeMs int       `gorm:"index" json:"response_time_ms"`
	CreatedAt      time.Time `gorm:"index" json:"created_at"`
}

func (QueryLog) TableName() string {
	return "query_logs"
}

type QueryLogService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewQueryLogService(db *gorm.DB) (*QueryLogService, error) {
	// Initialize snowflake node
	node, err := snowflake.NewNode(3) // Node number 3 for query logs
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &QueryLogService{
		db:        db,
		snowflake: node,
	}, nil
}

func (s *QueryLogService) Create(ctx context.Context, question, answer string, sources []string, inputTokens, outputTokens, responseTimeMs int) (*QueryLog, error) {
	entry := &QueryLog{
		ID:             s.snowflake.Generate().Int64(),
		Question:       question,
		Answer:         answer,
		Sources:        strings.Join(sources, ","),
		InputTokens:    inputTokens,
		OutputTokens:   outputTokens,
		ResponseTimeMs: responseTimeMs,
	}

	result := s.db.WithContext(ctx).Create(entry)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create query log: %v", result.Error)
	}

	return entry, nil
}

// ListRecent returns the newest entries first.
func (s *QueryLogService) ListRecent(ctx context.Context, limit int) ([]QueryLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []QueryLog
	result := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list query logs: %v", result.Error)
	}
	return entries, nil
}

// ListSlowest returns the entries with the highest response times first.
func (s *QueryLogService) ListSlowest(ctx context.Context, limit int) ([]QueryLog, error) {
	if limit <= 0 {
		limit = 10
	}
	var entries []QueryLog
	result := s.db.WithContext(ctx).Order("response_time_ms DESC, id DESC").Limit(limit).Find(&entries)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list query logs: %v", result.Error)
	}
	return entries, nil
}
