package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/cart-store/internal/core/domain"
	"github.com/rl1809/cart-store/internal/port"
)

const DefaultCartKey = "@RocketShoes:cart"

type UpdateProductAmount struct {
	ProductID int `json:"productId"`
	Amount    int `json:"amount"`
}

// CartStore holds one session's cart and mirrors it to persistent storage
// after every successful mutation.
type CartStore struct {
	catalog  port.CatalogAPI
	kv       port.PersistentKV
	notifier port.Notifier
	key      string
	log      logrus.FieldLogger
	tracer   trace.Tracer

	// opMu is held from snapshot to commit so overlapping mutations apply in order.
	opMu sync.Mutex

	mu   sync.RWMutex
	cart domain.Cart
}

func NewCartStore(catalog port.CatalogAPI, kv port.PersistentKV, notifier port.Notifier, key string, log logrus.FieldLogger) *CartStore {
	if key == "" {
		key = DefaultCartKey
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CartStore{
		catalog:  catalog,
		kv:       kv,
		notifier: notifier,
		key:      key,
		log:      log.WithField("cart_key", key),
		tracer:   otel.Tracer("github.com/rl1809/cart-store/internal/core/service"),
	}
}

// Initialize loads the persisted cart. A missing, unparsable or invalid blob
// yields an empty cart; only a storage read failure is returned.
func (s *CartStore) Initialize(ctx context.Context) (domain.Cart, error) {
	blob, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	cart := domain.Cart{}
	if ok {
		var stored domain.Cart
		if err := json.Unmarshal([]byte(blob), &stored); err != nil {
			s.log.WithError(err).Warn("persisted cart is not parsable, starting empty")
		} else if err := stored.Validate(); err != nil {
			s.log.WithError(err).Warn("persisted cart is invalid, starting empty")
		} else if stored != nil {
			cart = stored
		}
	}

	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()

	s.log.WithField("lines", len(cart)).Debug("cart initialized")
	return cart.Clone(), nil
}

// Cart returns a copy of the current contents.
func (s *CartStore) Cart() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cart.Clone()
}

// AddProduct increments the line for productID, or appends a new line with
// amount 1 built from the catalog record. Only the increment is checked
// against stock.
func (s *CartStore) AddProduct(ctx context.Context, productID int) (err error) {
	ctx, span := s.start(ctx, "CartStore.AddProduct", productID)
	defer func() { s.finish(ctx, span, domain.OpAdd, productID, err) }()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	cart := s.Cart()
	if i := cart.Find(productID); i >= 0 {
		stock, err := s.catalog.GetStock(ctx, productID)
		if err != nil {
			return fmt.Errorf("get stock %d: %w", productID, err)
		}
		if cart[i].Amount >= stock.Amount {
			return fmt.Errorf("product %d has %d in stock: %w", productID, stock.Amount, domain.ErrOutOfStock)
		}
		cart[i].Amount++
	} else {
		product, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return fmt.Errorf("get product %d: %w", productID, err)
		}
		if product.ID != productID {
			return fmt.Errorf("catalog returned product %d for %d", product.ID, productID)
		}
		cart = append(cart, domain.LineItem{Product: product, Amount: 1})
	}

	return s.commit(ctx, cart)
}

// RemoveProduct drops the line for productID. A missing line is an error.
func (s *CartStore) RemoveProduct(ctx context.Context, productID int) (err error) {
	ctx, span := s.start(ctx, "CartStore.RemoveProduct", productID)
	defer func() { s.finish(ctx, span, domain.OpRemove, productID, err) }()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	cart := s.Cart()
	if cart.Find(productID) < 0 {
		return fmt.Errorf("remove %d: %w", productID, domain.ErrProductNotFound)
	}

	return s.commit(ctx, cart.Without(productID))
}

// UpdateProductAmount sets the amount of an existing line. Non-positive
// amounts are ignored without error.
func (s *CartStore) UpdateProductAmount(ctx context.Context, req UpdateProductAmount) (err error) {
	if req.Amount <= 0 {
		return nil
	}

	ctx, span := s.start(ctx, "CartStore.UpdateProductAmount", req.ProductID)
	span.SetAttributes(attribute.Int("cart.amount", req.Amount))
	defer func() { s.finish(ctx, span, domain.OpUpdate, req.ProductID, err) }()

	s.opMu.Lock()
	defer s.opMu.Unlock()

	cart := s.Cart()

	stock, err := s.catalog.GetStock(ctx, req.ProductID)
	if err != nil {
		return fmt.Errorf("get stock %d: %w", req.ProductID, err)
	}
	if req.Amount > stock.Amount {
		return fmt.Errorf("product %d has %d in stock: %w", req.ProductID, stock.Amount, domain.ErrOutOfStock)
	}

	i := cart.Find(req.ProductID)
	if i < 0 {
		return fmt.Errorf("update %d: %w", req.ProductID, domain.ErrProductNotFound)
	}
	cart[i].Amount = req.Amount

	return s.commit(ctx, cart)
}

// commit writes storage first so memory never holds a cart that was not persisted.
func (s *CartStore) commit(ctx context.Context, cart domain.Cart) error {
	blob, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(blob)); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}

	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()
	return nil
}

func (s *CartStore) start(ctx context.Context, name string, productID int) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("product.id", productID)))
}

func (s *CartStore) finish(ctx context.Context, span trace.Span, op domain.Operation, productID int, err error) {
	defer span.End()

	if err == nil {
		s.log.WithFields(logrus.Fields{"op": op, "product_id": productID}).Debug("cart updated")
		return
	}

	outcome := domain.Classify(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome.String())

	entry := s.log.WithFields(logrus.Fields{"op": op, "product_id": productID, "outcome": outcome.String()})
	if outcome == domain.OutcomeFailed {
		entry.WithError(err).Error("cart operation failed")
	} else {
		entry.WithError(err).Info("cart operation rejected")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.NoticeFor(op, err))
	}
}
