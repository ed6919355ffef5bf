package enums

// NotificationType labels stored notifications for client rendering.
type NotificationType string

const (
	NotificationOrderPlaced     NotificationType = "order_placed"
	NotificationOrderConfirmed  NotificationType = "order_confirmed"
	NotificationOrderShipping   NotificationType = "order_shipping"
	NotificationOrderCompleted  NotificationType = "order_completed"
	NotificationOrderCancelled  NotificationType = "order_cancelled"
	NotificationOrderExpired    NotificationType = "order_expired"
	NotificationPaymentReceived NotificationType = "payment_received"
	NotificationRefundUpdate    NotificationType = "refund_update"
)

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}
