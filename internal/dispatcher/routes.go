package dispatcher

import (
	"context"
	"fmt"

	apperrors "github.com/oggyb/muzz-matchmaker/internal/errors"
	"github.com/oggyb/muzz-matchmaker/internal/message"
	"github.com/oggyb/muzz-matchmaker/internal/service/feed"
	"github.com/oggyb/muzz-matchmaker/internal/service/files"
	"github.com/oggyb/muzz-matchmaker/internal/service/interaction"
	"github.com/oggyb/muzz-matchmaker/internal/service/registration"
	"github.com/oggyb/muzz-matchmaker/internal/service/scoring"
)

// HandlerFunc handles one decoded payload of a single Kind.
type HandlerFunc func(ctx context.Context, payload any) error

// Services are the handlers behind each payload kind.
type Services struct {
	Interactions *interaction.Service
	Feed         *feed.Service
	Registration *registration.Service
	Files        *files.Service
	Scoring      *scoring.Engine
}

// Routes maps every payload kind to its handler.
func (s Services) Routes() map[message.Kind]HandlerFunc {
	return map[message.Kind]HandlerFunc{
		message.KindInteraction:  s.interaction,
		message.KindFile:         s.file,
		message.KindRegistration: s.registration,
		message.KindFieldUpdate:  s.fieldUpdate,
		message.KindRefill:       s.refill,
	}
}

func (s Services) interaction(ctx context.Context, payload any) error {
	m := payload.(*message.Interaction)

	switch m.Action {
	case message.ActionSearch:
		return s.Feed.Search(ctx, m.UserID)
	case message.ActionLike, message.ActionDislike:
		if m.TargetUserID == nil {
			return apperrors.Invalid("%s from %d without target_user_id", m.Action, m.UserID)
		}
		var err error
		if m.Action == message.ActionLike {
			_, err = s.Interactions.Like(ctx, m.UserID, *m.TargetUserID)
		} else {
			_, err = s.Interactions.Dislike(ctx, m.UserID, *m.TargetUserID)
		}
		return err
	default:
		return apperrors.Invalid("unknown interaction action %q", m.Action)
	}
}

func (s Services) file(ctx context.Context, payload any) error {
	m := payload.(*message.FileOperation)

	switch m.Action {
	case message.ActionUploadFile:
		name := ""
		if m.FileName != nil {
			name = *m.FileName
		}
		_, err := s.Files.Upload(ctx, m.UserID, name)
		return err
	case message.ActionShowFiles:
		return s.Files.ShowFiles(ctx, m.UserID)
	default:
		return apperrors.Invalid("unknown file action %q", m.Action)
	}
}

func (s Services) registration(ctx context.Context, payload any) error {
	_, err := s.Registration.Register(ctx, payload.(*message.Registration))
	return err
}

func (s Services) fieldUpdate(ctx context.Context, payload any) error {
	return s.Registration.UpdateField(ctx, payload.(*message.FieldUpdate))
}

func (s Services) refill(ctx context.Context, payload any) error {
	m := payload.(*message.RefillRequest)
	if _, err := s.Scoring.Refresh(ctx, m.UserID); err != nil {
		return fmt.Errorf("refill for %d (%s): %w", m.UserID, m.RequestType, err)
	}
	return nil
}
