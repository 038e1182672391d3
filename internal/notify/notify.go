package notify

import (
	"context"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/notesync/internal/config"
)

// Notifier delivers a markdown message to the community's moderators.
type Notifier interface {
	Notify(ctx context.Context, subject, markdown string) error
}

func New(cfg config.NotifierConfig) (Notifier, error) {
	switch cfg.Type {
	case "", "log":
		return NewLog(), nil
	case "smtp":
		return NewSMTP(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported notifier type: %s", cfg.Type)
	}
}

type logNotifier struct{}

func NewLog() Notifier {
	return logNotifier{}
}

func (logNotifier) Notify(ctx context.Context, subject, markdown string) error {
	logutil.GetLogger(ctx).Info("moderator notification", zap.String("subject", subject), zap.String("body", markdown))
	return nil
}
