package files

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker"
	"github.com/oggyb/muzz-matchmaker/internal/db"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
	"github.com/oggyb/muzz-matchmaker/internal/repository"
)

// Service keeps file metadata for uploads that live in object storage.
type Service struct {
	repo        *repository.FileRepository
	pub         broker.Publisher
	replyPrefix string
	metrics     *metrics.Metrics
	log         *slog.Logger
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		repo:        repository.NewFileRepository(appCtx.DB),
		pub:         appCtx.Publisher,
		replyPrefix: appCtx.Config.Broker.ReplyPrefix,
		metrics:     appCtx.Metrics,
		log:         appCtx.Logger.With("component", "files"),
	}
}

// Upload records a file the user stored as <user_id>_<file_name>.
func (s *Service) Upload(ctx context.Context, userID int64, fileName string) (*db.FileRecord, error) {
	fileName = strings.TrimSpace(fileName)
	if fileName == "" {
		return nil, apperrors.Invalid("upload by %d has no file_name", userID)
	}

	rec := &db.FileRecord{
		UserID:        userID,
		FileName:      fileName,
		FilePath:      fmt.Sprintf("%d_%s", userID, fileName),
		FileExtension: filepath.Ext(fileName),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, apperrors.Map(fmt.Errorf("save file %s for %d: %w", fileName, userID, err))
	}

	logger.For(ctx, s.log).Info("file recorded", "user_id", userID, "path", rec.FilePath)
	return rec, nil
}

// ShowFiles publishes the user's files as a files reply on reply.<user_id>.
// An empty list is still published so the user gets an answer.
func (s *Service) ShowFiles(ctx context.Context, userID int64) error {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return apperrors.Map(fmt.Errorf("list files of %d: %w", userID, err))
	}

	reply := message.Reply{UserID: userID, Kind: message.ReplyKindFiles}
	for _, r := range records {
		reply.Files = append(reply.Files, message.FileEntry{FileName: r.FileName, FilePath: r.FilePath})
	}

	key := fmt.Sprintf("%s.%d", s.replyPrefix, userID)
	if err := s.pub.Publish(ctx, key, reply); err != nil {
		return apperrors.Map(fmt.Errorf("publish files reply to %s: %w", key, err))
	}
	s.metrics.PublishedReplies.WithLabelValues(reply.Kind).Inc()
	logger.For(ctx, s.log).Info("files listed", "user_id", userID, "count", len(records))
	return nil
}
