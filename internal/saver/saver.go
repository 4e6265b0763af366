package saver

import (
	"context"
	"strings"

	"xhrsaver/internal/ctxkeys"
	ilog "xhrsaver/internal/logger"
	"xhrsaver/internal/protocol"
	"xhrsaver/pkg/model"

	"github.com/google/uuid"
)

const jsonMime = "application/json"

// Downloads 下载管理能力
type Downloads interface {
	Search(ctx context.Context, q model.DownloadQuery) ([]model.DownloadItem, error)
	Download(ctx context.Context, opts model.DownloadOptions) (model.DownloadID, error)
}

// Saver 接收转发的 JSON，推导文件名、查重并下载
type Saver struct {
	downloads Downloads
	log       ilog.Logger
}

// New 创建 Saver
func New(d Downloads, l ilog.Logger) *Saver {
	if l == nil {
		l = ilog.NewNop()
	}
	return &Saver{downloads: d, log: l.With("component", "saver")}
}

// HandleMessage 作为 Runtime 消息处理函数，只处理 saveJson
func (s *Saver) HandleMessage(ctx context.Context, msg model.RelayMessage) *model.SaveResponse {
	if msg.Action != model.ActionSaveJSON {
		s.log.Debug("忽略未知消息", "action", string(msg.Action))
		return nil
	}
	resp := s.Save(ctx, msg)
	return &resp
}

// Save 执行一次保存：推导文件名 → 查重 → 下载
func (s *Saver) Save(ctx context.Context, msg model.RelayMessage) model.SaveResponse {
	traceID := uuid.NewString()
	ctx = ctxkeys.WithTraceID(ctx, traceID)
	l := s.log.With("traceId", traceID)
	l.Info("收到保存请求", "data", preview(msg.Data, 100), "hasPostBody", msg.PostBody != nil)

	filename := DeriveFilename(msg.PostBody, l)
	fullPath := SubDirectory + filename

	exists, err := s.alreadyDownloaded(ctx, filename, fullPath)
	if err != nil {
		l.Err(err, "查询下载历史失败，继续下载")
	} else if exists {
		l.Info("文件已存在于下载历史，跳过下载", "path", fullPath)
		return model.SaveResponse{Status: model.SaveStatusSkipped, Reason: "File already exists", Filename: fullPath}
	}

	id, err := s.downloads.Download(ctx, model.DownloadOptions{
		URL:      protocol.EncodeDataURI(jsonMime, msg.Data),
		Filename: fullPath,
		SaveAs:   false,
	})
	if err != nil {
		l.Err(err, "下载失败", "path", fullPath)
		return model.SaveResponse{Status: model.SaveStatusFailed, Error: err.Error(), Filename: fullPath}
	}
	l.Info("下载已完成", "path", fullPath, "downloadId", string(id))
	return model.SaveResponse{Status: model.SaveStatusSuccess, Filename: fullPath, DownloadID: id}
}

// alreadyDownloaded 在已完成的下载中查找以 "/"+fullPath 结尾的记录
func (s *Saver) alreadyDownloaded(ctx context.Context, filename, fullPath string) (bool, error) {
	items, err := s.downloads.Search(ctx, model.DownloadQuery{
		Query: []string{filename},
		State: model.DownloadComplete,
	})
	if err != nil {
		return false, err
	}
	suffix := "/" + fullPath
	for _, it := range items {
		if strings.HasSuffix(strings.ReplaceAll(it.Filename, `\`, "/"), suffix) {
			return true, nil
		}
	}
	return false, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
