package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/rassdread/homecheff-app-sub014/internal/email"
	dbpkg "github.com/rassdread/homecheff-app-sub014/pkg/db"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// DefaultTokenTTL is how long a review link stays valid.
const DefaultTokenTTL = 30 * 24 * time.Hour

type orderLoader interface {
	LoadWithItems(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type buyerLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type requestNotifier interface {
	SendReviewRequest(ctx context.Context, userID uuid.UUID, productTitle, reviewURL string) error
}

// IssuerParams wires review token issuance. Email and Notifier are optional.
type IssuerParams struct {
	Logger   *logger.Logger
	Reviews  Repository
	Orders   orderLoader
	Users    buyerLookup
	Email    email.Sender
	Notifier requestNotifier
	BaseURL  string
	TokenTTL time.Duration
}

// Issuer creates review placeholders and invites buyers to complete them.
type Issuer struct {
	logg     *logger.Logger
	reviews  Repository
	orders   orderLoader
	users    buyerLookup
	email    email.Sender
	notifier requestNotifier
	baseURL  string
	ttl      time.Duration
	now      func() time.Time
}

func NewIssuer(params IssuerParams) (*Issuer, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Reviews == nil {
		return nil, errors.New("review repository required")
	}
	if params.Orders == nil {
		return nil, errors.New("order loader required")
	}
	if params.Users == nil {
		return nil, errors.New("user lookup required")
	}
	ttl := params.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		logg:     params.Logger,
		reviews:  params.Reviews,
		orders:   params.Orders,
		users:    params.Users,
		email:    params.Email,
		notifier: params.Notifier,
		baseURL:  strings.TrimRight(params.BaseURL, "/"),
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// EnsurePlaceholders creates a tokenized placeholder for every product of the
// order the buyer has not reviewed yet. It returns how many were created.
func (i *Issuer) EnsurePlaceholders(ctx context.Context, order *models.Order) (int, error) {
	created := 0
	for _, productID := range distinctProducts(order) {
		existing, err := i.reviews.FindByProductAndBuyer(ctx, productID, order.UserID)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}
		token, err := NewToken()
		if err != nil {
			return created, fmt.Errorf("generate review token: %w", err)
		}
		expires := i.now().UTC().Add(i.ttl)
		orderID := order.ID
		err = i.reviews.Create(ctx, &models.ProductReview{
			ProductID:          productID,
			BuyerID:            order.UserID,
			OrderID:            &orderID,
			ReviewToken:        &token,
			ReviewTokenExpires: &expires,
		})
		if dbpkg.IsUniqueViolation(err, "") {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// RequestReviews sends a review invitation by email and in-app notification
// for every open placeholder of the order. Failures are isolated per item.
func (i *Issuer) RequestReviews(ctx context.Context, orderID uuid.UUID) error {
	ctx = i.logg.WithOrderID(ctx, orderID.String())
	order, err := i.orders.LoadWithItems(ctx, orderID)
	if err != nil {
		return fmt.Errorf("load order for review requests: %w", err)
	}
	if _, err := i.EnsurePlaceholders(ctx, order); err != nil {
		i.logg.Warn(i.logg.WithField(ctx, "error", err.Error()), "review placeholders incomplete")
	}
	buyer, err := i.users.FindByID(ctx, order.UserID)
	if err != nil {
		return fmt.Errorf("load buyer for review requests: %w", err)
	}

	var errs error
	sent := 0
	now := i.now().UTC()
	seen := map[uuid.UUID]struct{}{}
	for _, item := range order.Items {
		if _, dup := seen[item.ProductID]; dup {
			continue
		}
		seen[item.ProductID] = struct{}{}
		placeholder, err := i.reviews.FindByProductAndBuyer(ctx, item.ProductID, order.UserID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
			continue
		}
		if !requestable(placeholder, now) {
			continue
		}
		if err := i.request(ctx, order, item, buyer, *placeholder.ReviewToken); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("product %s: %w", item.ProductID, err))
			continue
		}
		sent++
	}

	logCtx := i.logg.WithField(ctx, "sent", sent)
	if errs != nil {
		logCtx = i.logg.WithField(logCtx, "failed", len(multierr.Errors(errs)))
		i.logg.Error(logCtx, "some review requests failed", errs)
		return nil
	}
	i.logg.Info(logCtx, "review requests sent")
	return nil
}

func (i *Issuer) request(ctx context.Context, order *models.Order, item models.OrderItem, buyer *models.User, token string) error {
	title := "je bestelling"
	if item.Product != nil && item.Product.Title != "" {
		title = item.Product.Title
	}
	url := i.ReviewURL(token)

	var errs error
	if i.email != nil {
		errs = multierr.Append(errs, i.email.SendReviewRequest(ctx, email.ReviewRequest{
			ToEmail:      buyer.Email,
			ToName:       buyer.Name,
			ProductTitle: title,
			OrderNumber:  order.OrderNumber,
			ReviewURL:    url,
		}))
	}
	if i.notifier != nil {
		errs = multierr.Append(errs, i.notifier.SendReviewRequest(ctx, order.UserID, title, url))
	}
	return errs
}

// ReviewURL is the public link a buyer follows to write a review.
func (i *Issuer) ReviewURL(token string) string {
	return i.baseURL + "/review/" + token
}

func requestable(review *models.ProductReview, now time.Time) bool {
	if review == nil || review.Submitted() {
		return false
	}
	if review.ReviewToken == nil || *review.ReviewToken == "" {
		return false
	}
	return review.ReviewTokenExpires != nil && review.ReviewTokenExpires.After(now)
}

func distinctProducts(order *models.Order) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}
