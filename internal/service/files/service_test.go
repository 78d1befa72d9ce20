package files_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/oggyb/muzz-matchmaker/internal/app"
	"github.com/oggyb/muzz-matchmaker/internal/broker/mocks"
	"github.com/oggyb/muzz-matchmaker/internal/config"
	"github.com/oggyb/muzz-matchmaker/internal/db/dbtest"
	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/logger"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/metrics"
	"github.com/oggyb/muzz-matchmaker/internal/service/files"
)

func setupService(t *testing.T) (*files.Service, *mocks.MockPublisher, *metrics.Metrics) {
	t.Helper()

	pub := mocks.NewMockPublisher(gomock.NewController(t))
	m := metrics.New(prometheus.NewRegistry())
	appCtx := app.New(config.New(), dbtest.New(t), nil, pub, m, logger.Discard())
	return files.NewService(appCtx), pub, m
}

func TestUpload(t *testing.T) {
	svc, _, _ := setupService(t)

	rec, err := svc.Upload(context.Background(), 7, "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "7_resume.pdf", rec.FilePath)
	assert.Equal(t, ".pdf", rec.FileExtension)
	assert.NotZero(t, rec.ID)
}

func TestUpload_MissingName(t *testing.T) {
	svc, _, _ := setupService(t)

	_, err := svc.Upload(context.Background(), 7, "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalid)
}

func TestShowFiles(t *testing.T) {
	ctx := context.Background()
	svc, pub, m := setupService(t)

	_, err := svc.Upload(ctx, 7, "a.txt")
	require.NoError(t, err)
	_, err = svc.Upload(ctx, 8, "b.txt")
	require.NoError(t, err)

	pub.EXPECT().Publish(gomock.Any(), "reply.7", message.Reply{
		UserID: 7,
		Kind:   message.ReplyKindFiles,
		Files:  []message.FileEntry{{FileName: "a.txt", FilePath: "7_a.txt"}},
	}).Return(nil)

	require.NoError(t, svc.ShowFiles(ctx, 7))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishedReplies.WithLabelValues(message.ReplyKindFiles)))
}

func TestShowFiles_Empty(t *testing.T) {
	svc, pub, _ := setupService(t)

	pub.EXPECT().Publish(gomock.Any(), "reply.9", message.Reply{UserID: 9, Kind: message.ReplyKindFiles}).Return(nil)

	require.NoError(t, svc.ShowFiles(context.Background(), 9))
}
