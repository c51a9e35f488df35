package rabbitmq

// Ключи маршрутизации событий аккаунта.
const (
	RoutingUserRegistered      = "user.registered"
	RoutingUserPasswordChanged = "user.password_changed"
)

// QueueConfig очередь и ключ, по которому она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди, которые читает отправщик уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.user_registered", RoutingKey: RoutingUserRegistered},
		{QueueName: "notifications.password_changed", RoutingKey: RoutingUserPasswordChanged},
	}
}
