package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ilog "xhrsaver/internal/logger"
	"xhrsaver/internal/protocol"
	"xhrsaver/internal/storage"
	"xhrsaver/pkg/model"

	"github.com/google/uuid"
)

const (
	defaultDirPermissions  = 0o755
	defaultFilePermissions = 0o644
	maxUniquifyAttempts    = 100
)

var (
	ErrInvalidFilename   = errors.New("invalid filename")
	ErrSaveAsUnsupported = errors.New("save-as prompt is not supported")
	ErrTooManyDuplicates = errors.New("too many files with the same name")
)

// History 下载历史存储
type History interface {
	Create(ctx context.Context, rec *storage.DownloadRecord) error
	MarkComplete(ctx context.Context, id string, bytes int64, end time.Time) error
	MarkInterrupted(ctx context.Context, id string, reason string, end time.Time) error
	Search(ctx context.Context, q model.DownloadQuery) ([]model.DownloadItem, error)
}

// Manager 将 data URI 写入下载目录并记录下载历史
type Manager struct {
	dir     string
	history History
	log     ilog.Logger
	now     func() time.Time
}

// NewManager 创建下载管理器，dir 为下载根目录
func NewManager(dir string, history History, l ilog.Logger) (*Manager, error) {
	if l == nil {
		l = ilog.NewNop()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve download dir: %w", err)
	}
	return &Manager{
		dir:     abs,
		history: history,
		log:     l.With("component", "download"),
		now:     time.Now,
	}, nil
}

// Dir 返回下载根目录
func (m *Manager) Dir() string { return m.dir }

// Search 查询下载历史
func (m *Manager) Search(ctx context.Context, q model.DownloadQuery) ([]model.DownloadItem, error) {
	return m.history.Search(ctx, q)
}

// Download 解码 data URI 并写入相对于下载根目录的文件
func (m *Manager) Download(ctx context.Context, opts model.DownloadOptions) (model.DownloadID, error) {
	if opts.SaveAs {
		return "", ErrSaveAsUnsupported
	}
	rel, err := cleanRelative(opts.Filename)
	if err != nil {
		return "", err
	}
	mime, data, err := protocol.DecodeDataURI(opts.URL)
	if err != nil {
		return "", err
	}

	target := filepath.Join(m.dir, rel)
	if err := os.MkdirAll(filepath.Dir(target), defaultDirPermissions); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	conflict := opts.ConflictAction
	if conflict == "" {
		conflict = model.ConflictUniquify
	}

	f, target, openErr := openTarget(target, conflict)
	rec := &storage.DownloadRecord{
		ID:        uuid.NewString(),
		URL:       elideDataURI(opts.URL),
		Filename:  target,
		Mime:      mime,
		State:     string(model.DownloadInProgress),
		StartTime: m.now(),
	}
	if openErr != nil {
		end := m.now()
		rec.State = string(model.DownloadInterrupted)
		rec.Error = openErr.Error()
		rec.EndTime = &end
		if err := m.history.Create(ctx, rec); err != nil {
			m.log.Err(err, "记录下载失败", "id", rec.ID)
		}
		return "", openErr
	}
	if err := m.history.Create(ctx, rec); err != nil {
		_ = f.Close()
		if conflict == model.ConflictUniquify {
			_ = os.Remove(target)
		}
		return "", fmt.Errorf("record download: %w", err)
	}

	if err := writeAndClose(f, data); err != nil {
		if herr := m.history.MarkInterrupted(ctx, rec.ID, err.Error(), m.now()); herr != nil {
			m.log.Err(herr, "更新下载状态失败", "id", rec.ID)
		}
		return "", err
	}
	if err := m.history.MarkComplete(ctx, rec.ID, int64(len(data)), m.now()); err != nil {
		m.log.Err(err, "更新下载状态失败", "id", rec.ID)
	}
	m.log.Info("文件已写入", "id", rec.ID, "path", target, "bytes", len(data))
	return model.DownloadID(rec.ID), nil
}

// cleanRelative 校验文件名为下载目录内的相对路径
func cleanRelative(name string) (string, error) {
	name = strings.ReplaceAll(name, `\`, "/")
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", ErrInvalidFilename
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidFilename
		}
	}
	return filepath.FromSlash(name), nil
}

// openTarget 打开目标文件；uniquify 模式下以独占方式创建，已存在时依次尝试 " (n)" 后缀
func openTarget(path string, conflict model.ConflictAction) (*os.File, string, error) {
	if conflict == model.ConflictOverwrite {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, defaultFilePermissions)
		return f, path, err
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for i := 0; i <= maxUniquifyAttempts; i++ {
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", base, i, ext)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, defaultFilePermissions)
		if err == nil {
			return f, candidate, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, candidate, err
		}
	}
	return nil, path, ErrTooManyDuplicates
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// elideDataURI 历史中只保留 data URI 的头部
func elideDataURI(uri string) string {
	if meta, _, ok := strings.Cut(uri, ","); ok && strings.HasPrefix(uri, "data:") {
		return meta + ","
	}
	return uri
}
