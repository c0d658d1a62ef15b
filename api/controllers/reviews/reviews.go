package reviews

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rassdread/homecheff-app-sub014/api/middleware"
	"github.com/rassdread/homecheff-app-sub014/api/responses"
	"github.com/rassdread/homecheff-app-sub014/api/validators"
	internalreviews "github.com/rassdread/homecheff-app-sub014/internal/reviews"
	"github.com/rassdread/homecheff-app-sub014/pkg/db/models"
	pkgerrors "github.com/rassdread/homecheff-app-sub014/pkg/errors"
	"github.com/rassdread/homecheff-app-sub014/pkg/logger"
	"github.com/rassdread/homecheff-app-sub014/pkg/pagination"
)

type Service interface {
	ValidateToken(ctx context.Context, token string) (*internalreviews.TokenContext, error)
	SubmitWithToken(ctx context.Context, input internalreviews.SubmitInput) (*models.ProductReview, error)
	CreateDirect(ctx context.Context, input internalreviews.DirectInput) (*models.ProductReview, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, params internalreviews.ListParams) (*internalreviews.ReviewList, error)
}

type submitRequest struct {
	Token   string   `json:"token" validate:"required"`
	Rating  int      `json:"rating"`
	Title   *string  `json:"title"`
	Comment string   `json:"comment"`
	Images  []string `json:"images"`
}

type directRequest struct {
	Rating  int      `json:"rating"`
	Title   *string  `json:"title"`
	Comment string   `json:"comment"`
	Images  []string `json:"images"`
}

type reviewDTO struct {
	ID          uuid.UUID  `json:"id"`
	ProductID   uuid.UUID  `json:"productId"`
	BuyerID     uuid.UUID  `json:"buyerId"`
	Rating      int        `json:"rating"`
	Title       *string    `json:"title,omitempty"`
	Comment     string     `json:"comment"`
	IsVerified  bool       `json:"isVerified"`
	Images      []string   `json:"images"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

type listResponse struct {
	Reviews       []reviewDTO `json:"reviews"`
	Total         int64       `json:"total"`
	AverageRating float64     `json:"averageRating"`
	Limit         int         `json:"limit"`
	Offset        int         `json:"offset"`
}

func toDTO(review *models.ProductReview) reviewDTO {
	images := make([]string, 0, len(review.Images))
	for _, img := range review.Images {
		images = append(images, img.URL)
	}
	return reviewDTO{
		ID:          review.ID,
		ProductID:   review.ProductID,
		BuyerID:     review.BuyerID,
		Rating:      review.Rating,
		Title:       review.Title,
		Comment:     review.Comment,
		IsVerified:  review.IsVerified,
		Images:      images,
		SubmittedAt: review.ReviewSubmittedAt,
		CreatedAt:   review.CreatedAt,
	}
}

// ValidateToken resolves a review link for the review form.
func ValidateToken(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		if token == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "token ontbreekt"))
			return
		}
		result, err := svc.ValidateToken(r.Context(), token)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// SubmitWithToken stores the review behind a one-time link.
func SubmitWithToken(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body submitRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.SubmitWithToken(r.Context(), internalreviews.SubmitInput{
			Token:   body.Token,
			Rating:  body.Rating,
			Title:   body.Title,
			Comment: body.Comment,
			Images:  body.Images,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDTO(review))
	}
}

// CreateForProduct stores a review from the signed-in buyer.
func CreateForProduct(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		buyerID, err := uuid.Parse(middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "niet ingelogd"))
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var body directRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		review, err := svc.CreateDirect(ctx, internalreviews.DirectInput{
			ProductID: productID,
			BuyerID:   buyerID,
			Rating:    body.Rating,
			Title:     body.Title,
			Comment:   body.Comment,
			Images:    body.Images,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDTO(review))
	}
}

// ListForProduct returns submitted reviews with the product average.
func ListForProduct(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		rating, err := validators.ParseQueryInt(r, "rating", 0, 0, 5)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		list, err := svc.ListForProduct(ctx, productID, internalreviews.ListParams{
			Sort:   strings.TrimSpace(r.URL.Query().Get("sort")),
			Rating: rating,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		items := make([]reviewDTO, 0, len(list.Items))
		for i := range list.Items {
			items = append(items, toDTO(&list.Items[i]))
		}
		responses.WriteSuccess(w, listResponse{
			Reviews:       items,
			Total:         list.Total,
			AverageRating: list.Average,
			Limit:         limit,
			Offset:        offset,
		})
	}
}
