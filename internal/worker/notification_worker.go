package worker

import (
	"github.com/spec-kit/request-service/internal/events"
	"github.com/spec-kit/request-service/internal/service"
)

// StartNotificationWorker registers the in-app notification handlers and,
// when a sink is given, the event export.
func StartNotificationWorker(notificationService *service.NotificationService, dispatcher events.Dispatcher, sink *events.KafkaSink) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if sink != nil && dispatcher != nil {
		sink.Attach(dispatcher)
	}
}
