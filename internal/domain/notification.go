package domain

import "time"

// NotificationType определяет тип уведомления из пайплайнов.
type NotificationType string

const (
	NotificationTypeProcessing      NotificationType = "processing"
	NotificationTypeSuccess         NotificationType = "success"
	NotificationTypeFailure         NotificationType = "failure"
	NotificationTypeRefundCompleted NotificationType = "refund_completed"
)

// NotificationChannel определяет канал доставки.
type NotificationChannel string

const (
	NotificationChannelLog   NotificationChannel = "log"
	NotificationChannelEmail NotificationChannel = "email"
)

// NotificationStatus описывает жизненный цикл записи уведомления.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// Notification — запись fire-and-forget уведомления. Пайплайны ставят её
// в очередь внутри своей транзакции, доставкой занимается отдельный воркер;
// ошибка доставки никогда не откатывает пайплайн.
type Notification struct {
	ID           string
	OrderID      string
	CustomerID   string
	Type         NotificationType
	Channel      NotificationChannel
	Status       NotificationStatus
	Message      string
	AttemptCount int
	LastError    string
	CreatedAt    time.Time
	SentAt       *time.Time
}
