package storage

import (
	"context"
	"strings"
	"time"

	"xhrsaver/pkg/model"

	"gorm.io/gorm"
)

// DownloadRecord 下载历史表
type DownloadRecord struct {
	ID            string `gorm:"primaryKey;size:36"`
	URL           string
	Filename      string `gorm:"index"`
	Mime          string
	State         string `gorm:"index;size:16"`
	Error         string
	BytesReceived int64
	StartTime     time.Time `gorm:"index"`
	EndTime       *time.Time
}

// ToItem 转换为领域模型
func (r *DownloadRecord) ToItem() model.DownloadItem {
	return model.DownloadItem{
		ID:            model.DownloadID(r.ID),
		URL:           r.URL,
		Filename:      r.Filename,
		Mime:          r.Mime,
		State:         model.DownloadState(r.State),
		Error:         r.Error,
		BytesReceived: r.BytesReceived,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
	}
}

// DownloadStore 下载历史仓库
type DownloadStore struct {
	db *gorm.DB
}

// NewDownloadStore 创建下载历史仓库
func NewDownloadStore(db *gorm.DB) *DownloadStore {
	return &DownloadStore{db: db}
}

// Create 新增一条下载记录
func (s *DownloadStore) Create(ctx context.Context, rec *DownloadRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

// MarkComplete 标记下载完成
func (s *DownloadStore) MarkComplete(ctx context.Context, id string, bytes int64, end time.Time) error {
	return s.db.WithContext(ctx).Model(&DownloadRecord{}).Where("id = ?", id).Updates(map[string]any{
		"state":          string(model.DownloadComplete),
		"bytes_received": bytes,
		"end_time":       end,
	}).Error
}

// MarkInterrupted 标记下载中断并记录原因
func (s *DownloadStore) MarkInterrupted(ctx context.Context, id string, reason string, end time.Time) error {
	return s.db.WithContext(ctx).Model(&DownloadRecord{}).Where("id = ?", id).Updates(map[string]any{
		"state":    string(model.DownloadInterrupted),
		"error":    reason,
		"end_time": end,
	}).Error
}

// Search 按状态和文件名关键字查询，结果按开始时间倒序
//
// 每个关键字必须出现在文件名中（大小写不敏感），以 "-" 开头的关键字必须不出现。
func (s *DownloadStore) Search(ctx context.Context, q model.DownloadQuery) ([]model.DownloadItem, error) {
	tx := s.db.WithContext(ctx).Model(&DownloadRecord{})
	if q.State != "" {
		tx = tx.Where("state = ?", string(q.State))
	}
	for _, term := range q.Query {
		switch {
		case term == "" || term == "-":
			continue
		case strings.HasPrefix(term, "-"):
			tx = tx.Where("instr(lower(filename), lower(?)) = 0", term[1:])
		default:
			tx = tx.Where("instr(lower(filename), lower(?)) > 0", term)
		}
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var recs []DownloadRecord
	if err := tx.Order("start_time desc").Find(&recs).Error; err != nil {
		return nil, err
	}
	items := make([]model.DownloadItem, 0, len(recs))
	for i := range recs {
		items = append(items, recs[i].ToItem())
	}
	return items, nil
}

// List 返回最近的下载记录
func (s *DownloadStore) List(ctx context.Context, limit int) ([]model.DownloadItem, error) {
	return s.Search(ctx, model.DownloadQuery{Limit: limit})
}
