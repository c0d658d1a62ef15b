package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rassdread/homecheff-app-sub014/internal/orders"
	dbpkg "github.com/rassdread/homecheff-app-sub014/pkg/db"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox"
	"github.com/rassdread/homecheff-app-sub014/pkg/outbox/payloads"
	"github.com/rassdread/homecheff-app-sub014/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type purchaseLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	HasPaidOrderWithProduct(ctx context.Context, buyerID, productID uuid.UUID) (*models.Order, error)
}

type sellerNotifier interface {
	SendReviewReceived(ctx context.Context, sellerID uuid.UUID, productID uuid.UUID, productTitle string, rating int) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires review submission and listing. Notifier is optional.
type ServiceParams struct {
	Logger   *logger.Logger
	DB       txRunner
	Reviews  Repository
	Orders   purchaseLookup
	Notifier sellerNotifier
	Outbox   outboxEmitter
}

type Service struct {
	logg     *logger.Logger
	db       txRunner
	reviews  Repository
	orders   purchaseLookup
	notifier sellerNotifier
	outbox   outboxEmitter
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Reviews == nil {
		return nil, errors.New("review repository required")
	}
	if params.Orders == nil {
		return nil, errors.New("order lookup required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox required")
	}
	return &Service{
		logg:     params.Logger,
		db:       params.DB,
		reviews:  params.Reviews,
		orders:   params.Orders,
		notifier: params.Notifier,
		outbox:   params.Outbox,
		now:      time.Now,
	}, nil
}

// TokenContext is what the review page shows before the buyer submits.
type TokenContext struct {
	ReviewID     uuid.UUID  `json:"reviewId"`
	ProductID    uuid.UUID  `json:"productId"`
	ProductTitle string     `json:"productTitle"`
	OrderNumber  *string    `json:"orderNumber,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// SubmitInput is a tokenized review submission.
type SubmitInput struct {
	Token   string
	Rating  int
	Title   *string
	Comment string
	Images  []string
}

// DirectInput is a review written by an authenticated buyer.
type DirectInput struct {
	ProductID uuid.UUID
	BuyerID   uuid.UUID
	Rating    int
	Title     *string
	Comment   string
	Images    []string
}

// ListParams filters and pages a product's reviews.
type ListParams struct {
	Sort   string
	Rating int
	Limit  int
	Offset int
}

// ReviewList is a page of submitted reviews with product-wide totals.
type ReviewList struct {
	Items   []models.ProductReview
	Total   int64
	Average float64
}

// ValidateToken resolves a review link to its context.
func (s *Service) ValidateToken(ctx context.Context, token string) (*TokenContext, error) {
	review, err := s.openPlaceholder(ctx, token)
	if err != nil {
		return nil, err
	}
	product, err := s.reviews.FindProduct(ctx, review.ProductID)
	if err != nil && !errors.Is(err, ErrProductNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	result := &TokenContext{
		ReviewID:  review.ID,
		ProductID: review.ProductID,
		ExpiresAt: review.ReviewTokenExpires,
	}
	if product != nil {
		result.ProductTitle = product.Title
	}
	if review.OrderID != nil {
		if order, err := s.orders.FindByID(ctx, *review.OrderID); err == nil {
			result.OrderNumber = &order.OrderNumber
		}
	}
	return result, nil
}

// SubmitWithToken completes the placeholder behind a review link. A link works
// once.
func (s *Service) SubmitWithToken(ctx context.Context, input SubmitInput) (*models.ProductReview, error) {
	content, err := validateContent(input.Rating, input.Title, input.Comment)
	if err != nil {
		return nil, err
	}
	review, err := s.openPlaceholder(ctx, input.Token)
	if err != nil {
		return nil, err
	}
	images := SanitizeImages(input.Images)
	now := s.now().UTC()

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.reviews.WithTx(tx)
		claimed, err := repo.ClaimByToken(ctx, review.ID, input.Token, content, now)
		if err != nil {
			return err
		}
		if !claimed {
			return pkgerrors.New(pkgerrors.CodeConflict, "deze review is al ingediend")
		}
		if err := repo.AddImages(ctx, review.ID, images); err != nil {
			return err
		}
		return s.emitSubmitted(ctx, tx, review, content.Rating)
	})
	if err != nil {
		return nil, asServiceError(err, "submit review")
	}
	return s.finish(ctx, review.ID, content.Rating)
}

// CreateDirect stores a review from a buyer who bought the product.
func (s *Service) CreateDirect(ctx context.Context, input DirectInput) (*models.ProductReview, error) {
	content, err := validateContent(input.Rating, input.Title, input.Comment)
	if err != nil {
		return nil, err
	}
	if _, err := s.reviews.FindProduct(ctx, input.ProductID); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product niet gevonden")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	order, err := s.orders.HasPaidOrderWithProduct(ctx, input.BuyerID, input.ProductID)
	if errors.Is(err, orders.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "je kunt alleen producten reviewen die je hebt gekocht")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check purchase")
	}

	existing, err := s.reviews.FindByProductAndBuyer(ctx, input.ProductID, input.BuyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	if existing != nil && existing.Submitted() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "je hebt dit product al gereviewd")
	}

	images := SanitizeImages(input.Images)
	now := s.now().UTC()
	var review *models.ProductReview
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.reviews.WithTx(tx)
		if existing != nil {
			completed, err := repo.CompletePlaceholder(ctx, existing.ID, content, now)
			if err != nil {
				return err
			}
			if !completed {
				return pkgerrors.New(pkgerrors.CodeConflict, "je hebt dit product al gereviewd")
			}
			review = existing
		} else {
			orderID := order.ID
			review = &models.ProductReview{
				ProductID:         input.ProductID,
				BuyerID:           input.BuyerID,
				OrderID:           &orderID,
				Rating:            content.Rating,
				Title:             content.Title,
				Comment:           content.Comment,
				IsVerified:        true,
				ReviewSubmittedAt: &now,
			}
			if err := repo.Create(ctx, review); err != nil {
				if dbpkg.IsUniqueViolation(err, "") {
					return pkgerrors.New(pkgerrors.CodeConflict, "je hebt dit product al gereviewd")
				}
				return err
			}
		}
		if err := repo.AddImages(ctx, review.ID, images); err != nil {
			return err
		}
		return s.emitSubmitted(ctx, tx, review, content.Rating)
	})
	if err != nil {
		return nil, asServiceError(err, "create review")
	}
	return s.finish(ctx, review.ID, content.Rating)
}

// ListForProduct pages the submitted reviews of a product.
func (s *Service) ListForProduct(ctx context.Context, productID uuid.UUID, params ListParams) (*ReviewList, error) {
	rows, total, err := s.reviews.ListSubmitted(ctx, productID, ListFilter{
		Sort:   ParseSortOrder(params.Sort),
		Rating: params.Rating,
		Page:   pagination.Params{Limit: params.Limit, Offset: params.Offset},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list reviews")
	}
	avg, err := s.reviews.AverageRating(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "average rating")
	}
	if rows == nil {
		rows = []models.ProductReview{}
	}
	return &ReviewList{Items: rows, Total: total, Average: avg}, nil
}

// openPlaceholder maps a token to an unsubmitted, unexpired placeholder.
func (s *Service) openPlaceholder(ctx context.Context, token string) (*models.ProductReview, error) {
	review, err := s.reviews.FindByToken(ctx, strings.TrimSpace(token))
	if errors.Is(err, ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review-link niet gevonden")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load review")
	}
	if review.Submitted() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "deze review is al ingediend")
	}
	if review.ReviewTokenExpires == nil || !review.ReviewTokenExpires.After(s.now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "deze review-link is verlopen")
	}
	return review, nil
}

func (s *Service) emitSubmitted(ctx context.Context, tx *gorm.DB, review *models.ProductReview, rating int) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReviewSubmitted,
		AggregateType: enums.AggregateReview,
		AggregateID:   review.ID,
		Version:       1,
		Data: payloads.ReviewSubmittedEvent{
			ReviewID:  review.ID,
			ProductID: review.ProductID,
			BuyerID:   review.BuyerID,
			OrderID:   review.OrderID,
			Rating:    rating,
			Verified:  true,
		},
	})
}

// finish reloads the stored review and tells the seller about it.
func (s *Service) finish(ctx context.Context, reviewID uuid.UUID, rating int) (*models.ProductReview, error) {
	stored, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload review")
	}
	s.notifySeller(ctx, stored, rating)
	return stored, nil
}

func (s *Service) notifySeller(ctx context.Context, review *models.ProductReview, rating int) {
	if s.notifier == nil {
		return
	}
	product, err := s.reviews.FindProduct(ctx, review.ProductID)
	if err != nil || product.SellerUserID == nil {
		return
	}
	if err := s.notifier.SendReviewReceived(ctx, *product.SellerUserID, product.ID, product.Title, rating); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "review notification failed")
	}
}

func validateContent(rating int, title *string, comment string) (Content, error) {
	details := map[string]string{}
	if rating < 1 || rating > 5 {
		details["rating"] = "moet tussen 1 en 5 liggen"
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		details["comment"] = "is verplicht"
	}
	if len(details) > 0 {
		return Content{}, pkgerrors.New(pkgerrors.CodeValidation, "ongeldige invoer").WithDetails(details)
	}
	var cleanTitle *string
	if title != nil {
		if trimmed := strings.TrimSpace(*title); trimmed != "" {
			cleanTitle = &trimmed
		}
	}
	return Content{Rating: rating, Title: cleanTitle, Comment: comment}, nil
}

func asServiceError(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
}
