package middlewares

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v3"

	"github.com/TaiJP119/vet-vetconnect-some/cmd/app"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/common/errorz"
	"github.com/TaiJP119/vet-vetconnect-some/internal/domain/entity"
	"github.com/TaiJP119/vet-vetconnect-some/pkg/logger/types"
)

type userService interface {
	Get(ctx context.Context, id int64) (*entity.User, error)
}

type Handler struct {
	logger      *types.Logger
	userService userService
}

func New(a *app.App) *Handler {
	return &Handler{
		logger:      a.Logger.Named("middlewares"),
		userService: a.Users,
	}
}

// Registered lets through only users that ran /start.
func (h Handler) Registered(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		_, err := h.userService.Get(context.Background(), c.Sender().ID)
		if err != nil {
			if !errors.Is(err, errorz.ErrNotFound) {
				h.logger.Errorf("(user: %d) error while getting user from db: %v", c.Sender().ID, err)
				return c.Send("Technical issues, please try again later.")
			}
			return c.Send("Send /start to register first.")
		}
		return next(c)
	}
}
