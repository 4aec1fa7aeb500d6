package events

// Topic constants for cart notifications.
const (
	TopicItemAdded          = "cart.added"
	TopicShippingAdded      = "shipping.added"
	TopicDiscountAdded      = "discount.added"
	TopicItemUpdated        = "cart.updated"
	TopicItemRemoved        = "cart.removed"
	TopicCartDestroyed      = "cart.destroyed"
	TopicCartStored         = "cart.stored"
	TopicCartRestored       = "cart.restored"
	TopicCartStoreDestroyed = "cart.store-destroyed"
)

// DefaultTopics returns every topic the cart publishes.
func DefaultTopics() []string {
	return []string{
		TopicItemAdded,
		TopicShippingAdded,
		TopicDiscountAdded,
		TopicItemUpdated,
		TopicItemRemoved,
		TopicCartDestroyed,
		TopicCartStored,
		TopicCartRestored,
		TopicCartStoreDestroyed,
	}
}
