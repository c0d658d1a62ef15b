package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	"github.com/rassdread/homecheff-app-sub014/pkg/enums"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
)

// Service writes in-app notifications. Every Send method is best effort: a
// failure is logged and returned, and callers never abort on it.
type Service struct {
	repo    Repository
	logg    *logger.Logger
	baseURL string
}

// NewService wires a notification service.
func NewService(repo Repository, logg *logger.Logger, baseURL string) (*Service, error) {
	if repo == nil {
		return nil, errors.New("notifications repository required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Service{repo: repo, logg: logg, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// OrderUpdate is the content of an order progress notification.
type OrderUpdate struct {
	UserID      uuid.UUID
	OrderID     uuid.UUID
	OrderNumber string
	Title       string
	Message     string
}

func (s *Service) SendOrderUpdate(ctx context.Context, update OrderUpdate) error {
	return s.send(ctx, models.Notification{
		UserID:  update.UserID,
		Type:    enums.NotificationTypeOrderUpdate,
		Title:   update.Title,
		Message: update.Message,
		Link:    s.link("/orders/" + update.OrderID.String()),
	})
}

func (s *Service) SendReviewRequest(ctx context.Context, userID uuid.UUID, productTitle, reviewURL string) error {
	return s.send(ctx, models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypeReviewRequest,
		Title:   "Hoe was je bestelling?",
		Message: fmt.Sprintf("Laat een review achter voor %s.", productTitle),
		Link:    &reviewURL,
	})
}

func (s *Service) SendLabelReady(ctx context.Context, sellerID uuid.UUID, orderNumber string, pdfURL *string) error {
	link := pdfURL
	if link == nil || *link == "" {
		link = s.link("/seller/orders")
	}
	return s.send(ctx, models.Notification{
		UserID:  sellerID,
		Type:    enums.NotificationTypeLabelReady,
		Title:   "Verzendlabel klaar",
		Message: fmt.Sprintf("Het verzendlabel voor bestelling %s staat klaar.", orderNumber),
		Link:    link,
	})
}

func (s *Service) SendReviewReceived(ctx context.Context, sellerID uuid.UUID, productID uuid.UUID, productTitle string, rating int) error {
	return s.send(ctx, models.Notification{
		UserID:  sellerID,
		Type:    enums.NotificationTypeReviewReceived,
		Title:   "Nieuwe review",
		Message: fmt.Sprintf("%s kreeg een review van %d sterren.", productTitle, rating),
		Link:    s.link("/product/" + productID.String()),
	})
}

func (s *Service) SendPayout(ctx context.Context, userID uuid.UUID, amountCents int64, orderID *uuid.UUID) error {
	amount := decimal.New(amountCents, -2).StringFixed(2)
	n := models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypePayout,
		Title:   "Uitbetaling onderweg",
		Message: fmt.Sprintf("Er is € %s naar je uitbetaald.", strings.Replace(amount, ".", ",", 1)),
	}
	if orderID != nil {
		n.Link = s.link("/orders/" + orderID.String())
	}
	return s.send(ctx, n)
}

func (s *Service) send(ctx context.Context, n models.Notification) error {
	if n.UserID == uuid.Nil {
		return errors.New("notification recipient required")
	}
	if err := s.repo.Create(ctx, &n); err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"notification_type": n.Type,
			"recipient_id":      n.UserID.String(),
		})
		s.logg.Error(logCtx, "failed to store notification", err)
		return err
	}
	return nil
}

func (s *Service) link(path string) *string {
	if s.baseURL == "" {
		return &path
	}
	full := s.baseURL + path
	return &full
}
