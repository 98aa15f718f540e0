package authgate

import (
	"context"
	"fmt"
	"sync"
)

var backgroundHandler struct {
	mu        sync.Mutex
	installed bool
}

// InstallBackgroundHandler registers handler as the process wide background
// message handler. Only the first call registers; later calls return
// ErrBackgroundHandlerInstalled.
func InstallBackgroundHandler(messaging Messaging, handler MessageHandler) error {
	if messaging == nil {
		return missingCollaborator("messaging")
	}
	if handler == nil {
		handler = DefaultBackgroundHandler(nil)
	}

	backgroundHandler.mu.Lock()
	defer backgroundHandler.mu.Unlock()
	if backgroundHandler.installed {
		return ErrBackgroundHandlerInstalled
	}

	messaging.SetBackgroundMessageHandler(handler)
	backgroundHandler.installed = true
	return nil
}

// BackgroundHandlerInstalled reports whether InstallBackgroundHandler succeeded.
func BackgroundHandlerInstalled() bool {
	backgroundHandler.mu.Lock()
	defer backgroundHandler.mu.Unlock()
	return backgroundHandler.installed
}

// DefaultBackgroundHandler logs the message data and notification. It never
// returns an error; panics are recovered and logged.
func DefaultBackgroundHandler(logger Logger) MessageHandler {
	if logger == nil {
		logger = defaultLogger()
	}
	return func(ctx context.Context, msg *RemoteMessage) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("background message handler panicked", "panic", fmt.Sprint(r))
				err = nil
			}
		}()

		if msg == nil {
			return nil
		}

		logger.Info("background message processed", "message_id", msg.MessageID)
		if len(msg.Data) > 0 {
			logger.Debug("background message data", "data", msg.Data)
		}
		if msg.Notification != nil {
			logger.Debug("background notification", "title", msg.Notification.Title, "body", msg.Notification.Body)
		}
		return nil
	}
}
