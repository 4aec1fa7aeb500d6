package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/cartkit/internal/events"
	"github.com/noah-isme/cartkit/internal/repo"
)

const tracerName = "cart.Cart"

func (c *Cart) savedCarts() (SavedCarts, error) {
	if c.cfg.Saved == nil {
		return nil, errors.New("cart: saved cart store not configured")
	}
	return c.cfg.Saved, nil
}

func (c *Cart) startSpan(ctx context.Context, name, identifier string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	span.SetAttributes(
		attribute.String("cart.identifier", identifier),
		attribute.String("cart.instance", c.instance),
	)
	return ctx, span
}

func validIdentifier(identifier string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("please supply a valid identifier: %w", ErrInvalidArgument)
	}
	return nil
}

// Store saves the active instance under identifier. It fails with
// ErrCartAlreadyStored when (identifier, instance) is already saved. The existence
// check and the insert are separate statements; the insert itself never overwrites.
func (c *Cart) Store(ctx context.Context, identifier string) error {
	ctx, span := c.startSpan(ctx, "Cart.Store", identifier)
	defer span.End()
	start := time.Now()
	err := c.store(ctx, identifier)
	c.cfg.Metrics.ObserveOperation("store", start, err)
	if err != nil {
		span.RecordError(err)
		return err
	}
	c.publish(ctx, events.TopicCartStored, Notification{Instance: c.instance, Identifier: identifier})
	return nil
}

func (c *Cart) store(ctx context.Context, identifier string) error {
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	saved, err := c.savedCarts()
	if err != nil {
		return err
	}
	exists, err := saved.Exists(ctx, identifier, c.instance)
	if err != nil {
		return fmt.Errorf("check saved cart: %w", err)
	}
	if exists {
		return fmt.Errorf("a cart with identifier %s was already stored: %w", identifier, ErrCartAlreadyStored)
	}
	content, err := c.Content(ctx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", c.instance, err)
	}
	now := c.now()
	err = saved.Insert(ctx, repo.SavedCart{
		Identifier: identifier,
		Instance:   c.instance,
		Content:    data,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return fmt.Errorf("a cart with identifier %s was already stored: %w", identifier, ErrCartAlreadyStored)
	}
	if err != nil {
		return fmt.Errorf("insert saved cart: %w", err)
	}
	return nil
}

// SyncDB overwrites the saved copy of the active instance.
func (c *Cart) SyncDB(ctx context.Context, identifier string) error {
	ctx, span := c.startSpan(ctx, "Cart.SyncDB", identifier)
	defer span.End()
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	saved, err := c.savedCarts()
	if err != nil {
		return err
	}
	if err := saved.Delete(ctx, identifier, c.instance); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete saved cart: %w", err)
	}
	return c.Store(ctx, identifier)
}

// Restore merges the cart saved under identifier into the instance it was saved
// from, then deletes the saved copy. Stored lines replace lines with the same row
// id. The active instance is left unchanged. Restoring an unknown identifier is a no-op.
func (c *Cart) Restore(ctx context.Context, identifier string) error {
	ctx, span := c.startSpan(ctx, "Cart.Restore", identifier)
	defer span.End()
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	saved, err := c.savedCarts()
	if err != nil {
		return err
	}
	rec, err := saved.Find(ctx, identifier)
	if errors.Is(err, repo.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("find saved cart: %w", err)
	}
	stored := NewContent()
	if err := json.Unmarshal(rec.Content, stored); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode saved cart %s: %w", identifier, err)
	}
	instance := rec.Instance
	if instance == "" {
		instance = DefaultInstance
	}
	err = c.mutateInstance(ctx, instance, "restore", func(content *Content) ([]notice, error) {
		for _, it := range stored.Items() {
			content.Put(it)
		}
		return nil, nil
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := saved.Delete(ctx, identifier, rec.Instance); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete saved cart: %w", err)
	}
	c.publish(ctx, events.TopicCartRestored, Notification{Instance: instance, Identifier: identifier, Items: stored})
	return nil
}

// StoreDestroy deletes the saved copy of the active instance, if any.
func (c *Cart) StoreDestroy(ctx context.Context, identifier string) error {
	ctx, span := c.startSpan(ctx, "Cart.StoreDestroy", identifier)
	defer span.End()
	if err := validIdentifier(identifier); err != nil {
		return err
	}
	saved, err := c.savedCarts()
	if err != nil {
		return err
	}
	start := time.Now()
	exists, err := saved.Exists(ctx, identifier, c.instance)
	if err == nil && exists {
		err = saved.Delete(ctx, identifier, c.instance)
	}
	c.cfg.Metrics.ObserveOperation("store_destroy", start, err)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("destroy saved cart: %w", err)
	}
	if !exists {
		return nil
	}
	c.publish(ctx, events.TopicCartStoreDestroyed, Notification{Instance: c.instance, Identifier: identifier})
	return nil
}
