package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/cartkit/internal/discount"
	"github.com/noah-isme/cartkit/internal/events"
	"github.com/noah-isme/cartkit/internal/item"
	"github.com/noah-isme/cartkit/internal/money"
	"github.com/noah-isme/cartkit/internal/obs"
	"github.com/noah-isme/cartkit/internal/repo"
)

// DefaultInstance is the instance a cart starts in.
const DefaultInstance = "default"

const sessionKeyPrefix = "cart."

// SessionStore is the per-session backing store holding one serialised mapping per instance.
type SessionStore interface {
	Has(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Remove(ctx context.Context, key string) error
}

// Forgetter is implemented by session stores that can drop every key sharing a prefix.
type Forgetter interface {
	Forget(ctx context.Context, prefix string) error
}

// SavedCarts is the durable store for carts kept under an external identifier.
type SavedCarts interface {
	Exists(ctx context.Context, identifier, instance string) (bool, error)
	Insert(ctx context.Context, rec repo.SavedCart) error
	Find(ctx context.Context, identifier string) (repo.SavedCart, error)
	Delete(ctx context.Context, identifier, instance string) error
}

// Publisher delivers cart notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Locker serialises read-modify-write cycles on one key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Config wires a cart to its collaborators and pricing defaults.
type Config struct {
	Session   SessionStore
	Saved     SavedCarts
	Publisher Publisher
	Models    *item.Models
	Formatter money.Formatter

	// TaxRate is applied to new priced lines that carry no rate of their own.
	TaxRate float64
	// Discount is applied to new product lines that carry no discount of their own.
	Discount        *discount.Rule
	TaxOnDiscount   bool
	DestroyOnLogout bool

	Locker  Locker
	LockKey string
	LockTTL time.Duration

	Logger  zerolog.Logger
	Metrics *obs.CartMetrics
	Now     func() time.Time
}

// Cart is the state and pricing engine for one session. It is not safe for
// concurrent use; configure a Locker to serialise writers across processes.
// Every mutation rewrites the whole mapping of the instance, so unlocked
// concurrent writers race and the last write wins.
type Cart struct {
	cfg      Config
	instance string
	taxRate  float64
	discount *discount.Rule
}

// New builds a cart positioned on the default instance.
func New(cfg Config) (*Cart, error) {
	if cfg.Session == nil {
		return nil, errors.New("cart: session store not configured")
	}
	if cfg.TaxRate < 0 {
		return nil, fmt.Errorf("tax rate must not be negative: %w", ErrInvalidArgument)
	}
	if cfg.Formatter.Defaults == (money.Format{}) {
		cfg.Formatter = money.NewFormatter(money.DefaultFormat())
	}
	if cfg.Models == nil {
		cfg.Models = item.NewModels()
	}
	c := &Cart{cfg: cfg, instance: DefaultInstance, taxRate: cfg.TaxRate}
	if cfg.Discount != nil && !cfg.Discount.IsZero() {
		r := *cfg.Discount
		c.discount = &r
	}
	return c, nil
}

// Instance switches the active instance. An empty name selects the default.
func (c *Cart) Instance(name string) *Cart {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultInstance
	}
	c.instance = name
	return c
}

// CurrentInstance returns the active instance name.
func (c *Cart) CurrentInstance() string { return c.instance }

// Models returns the registry used to resolve associations.
func (c *Cart) Models() *item.Models { return c.cfg.Models }

// Formatter returns the formatter used by the formatted totals.
func (c *Cart) Formatter() money.Formatter { return c.cfg.Formatter }

// Format renders the amounts of line with the cart's formatting defaults.
func (c *Cart) Format(line item.Priced) item.Formatted { return item.Format(line, c.cfg.Formatter) }

func (c *Cart) now() time.Time {
	if c.cfg.Now != nil {
		return c.cfg.Now()
	}
	return time.Now()
}

func sessionKey(instance string) string { return sessionKeyPrefix + instance }

func (c *Cart) lockKey(instance string) string {
	if c.cfg.LockKey == "" {
		return sessionKey(instance)
	}
	return c.cfg.LockKey + ":" + sessionKey(instance)
}

// load reads the mapping of instance, returning an empty one when nothing is stored.
func (c *Cart) load(ctx context.Context, instance string) (*Content, error) {
	data, ok, err := c.cfg.Session.Get(ctx, sessionKey(instance))
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", instance, err)
	}
	content := NewContent()
	if !ok || len(data) == 0 {
		return content, nil
	}
	if err := json.Unmarshal(data, content); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", instance, err)
	}
	return content, nil
}

func (c *Cart) save(ctx context.Context, instance string, content *Content) error {
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", instance, err)
	}
	if err := c.cfg.Session.Put(ctx, sessionKey(instance), data); err != nil {
		return fmt.Errorf("save cart %s: %w", instance, err)
	}
	return nil
}

// Notification is the payload published for cart events.
type Notification struct {
	Instance   string   `json:"instance"`
	Identifier string   `json:"identifier,omitempty"`
	RowID      string   `json:"rowId,omitempty"`
	Items      *Content `json:"items,omitempty"`
}

type notice struct {
	topic   string
	payload Notification
}

func (c *Cart) notice(topic, instance string, items ...item.Item) notice {
	n := notice{topic: topic, payload: Notification{Instance: instance}}
	if len(items) > 0 {
		n.payload.Items = NewContent()
		for _, it := range items {
			n.payload.Items.Put(it)
		}
		if len(items) == 1 {
			n.payload.RowID = items[0].RowID()
		}
	}
	return n
}

// withLock runs fn under the configured lease for instance, or directly when no locker is set.
func (c *Cart) withLock(ctx context.Context, instance string, fn func(context.Context) error) error {
	if c.cfg.Locker == nil {
		return fn(ctx)
	}
	return c.cfg.Locker.WithLock(ctx, c.lockKey(instance), c.cfg.LockTTL, fn)
}

// mutate performs one read-modify-write cycle on the active instance.
func (c *Cart) mutate(ctx context.Context, op string, fn func(*Content) ([]notice, error)) error {
	return c.mutateInstance(ctx, c.instance, op, fn)
}

func (c *Cart) mutateInstance(ctx context.Context, instance, op string, fn func(*Content) ([]notice, error)) error {
	start := time.Now()
	var pending []notice
	err := c.withLock(ctx, instance, func(ctx context.Context) error {
		content, err := c.load(ctx, instance)
		if err != nil {
			return err
		}
		notices, err := fn(content)
		if err != nil {
			return err
		}
		if err := c.save(ctx, instance, content); err != nil {
			return err
		}
		pending = notices
		return nil
	})
	c.cfg.Metrics.ObserveOperation(op, start, err)
	if err != nil {
		c.cfg.Logger.Debug().Err(err).Str("operation", op).Str("cart_instance", instance).Msg("cart operation failed")
		return err
	}
	c.cfg.Logger.Debug().Str("operation", op).Str("cart_instance", instance).Int("events", len(pending)).Msg("cart updated")
	for _, n := range pending {
		c.publish(ctx, n.topic, n.payload)
	}
	return nil
}

// publish never fails the caller; delivery problems are logged and counted.
func (c *Cart) publish(ctx context.Context, topic string, payload Notification) {
	if c.cfg.Publisher == nil {
		return
	}
	err := c.cfg.Publisher.Publish(ctx, topic, payload)
	c.cfg.Metrics.ObserveEvent(topic, err)
	if err != nil {
		c.cfg.Logger.Warn().Err(err).Str("topic", topic).Str("cart_instance", payload.Instance).Msg("cart event publish failed")
	}
}

// applyDefaults fills cart-wide pricing defaults into a line that does not set its own.
func (c *Cart) applyDefaults(it item.Item) error {
	if p, ok := it.(item.Priced); ok && p.TaxRate() == 0 && c.taxRate > 0 {
		if err := p.SetTaxRate(c.taxRate); err != nil {
			return err
		}
	}
	if p, ok := it.(*item.Product); ok {
		if p.Discount() == nil && c.discount != nil {
			p.SetDiscountRule(c.discount)
		}
		if c.cfg.TaxOnDiscount {
			p.SetTaxOnDiscount(true)
		}
	}
	return nil
}

// SetGlobalTax sets the cart-wide tax rate and applies it to every priced line of the instance.
func (c *Cart) SetGlobalTax(ctx context.Context, rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return fmt.Errorf("tax rate must be a non-negative number: %w", ErrInvalidArgument)
	}
	if err := c.mutate(ctx, "set_global_tax", func(content *Content) ([]notice, error) {
		for _, it := range content.Items() {
			if priced, ok := it.(item.Priced); ok {
				if err := priced.SetTaxRate(rate); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	}); err != nil {
		return err
	}
	c.taxRate = rate
	return nil
}

// SetGlobalDiscount sets the cart-wide discount and applies it to every product line of
// the instance. A zero value clears it.
func (c *Cart) SetGlobalDiscount(ctx context.Context, value float64, typ discount.Type) error {
	var rule *discount.Rule
	if value != 0 {
		r, err := discount.New(value, typ, "global")
		if err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidArgument)
		}
		rule = &r
	}
	if err := c.mutate(ctx, "set_global_discount", func(content *Content) ([]notice, error) {
		for _, it := range content.Items() {
			if p, ok := it.(*item.Product); ok {
				p.SetDiscountRule(rule)
			}
		}
		return nil, nil
	}); err != nil {
		return err
	}
	c.discount = rule
	return nil
}

// GlobalTax returns the cart-wide tax rate.
func (c *Cart) GlobalTax() float64 { return c.taxRate }

// GlobalDiscount returns the cart-wide discount, if any.
func (c *Cart) GlobalDiscount() *discount.Rule {
	if c.discount == nil {
		return nil
	}
	r := *c.discount
	return &r
}

// Destroy clears the backing slot of the active instance.
func (c *Cart) Destroy(ctx context.Context) error {
	instance := c.instance
	start := time.Now()
	err := c.withLock(ctx, instance, func(ctx context.Context) error {
		if err := c.cfg.Session.Remove(ctx, sessionKey(instance)); err != nil {
			return fmt.Errorf("destroy cart %s: %w", instance, err)
		}
		return nil
	})
	c.cfg.Metrics.ObserveOperation("destroy", start, err)
	if err != nil {
		return err
	}
	c.publish(ctx, events.TopicCartDestroyed, Notification{Instance: instance})
	return nil
}

// Logout drops the session carts when destroy-on-logout is enabled. Every instance
// is cleared when the store supports prefix removal; otherwise the active one is.
func (c *Cart) Logout(ctx context.Context) error {
	if !c.cfg.DestroyOnLogout {
		return nil
	}
	if f, ok := c.cfg.Session.(Forgetter); ok {
		start := time.Now()
		err := f.Forget(ctx, sessionKeyPrefix)
		c.cfg.Metrics.ObserveOperation("logout", start, err)
		if err != nil {
			return fmt.Errorf("forget carts: %w", err)
		}
		c.publish(ctx, events.TopicCartDestroyed, Notification{Instance: c.instance})
		return nil
	}
	return c.Destroy(ctx)
}
