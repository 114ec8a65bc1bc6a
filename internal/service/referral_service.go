package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/models"
	"github.com/rentora/rentora-api/internal/repository"
)

var (
	// ErrDiscountNotFound indicates no discount matches the code.
	ErrDiscountNotFound = errors.New("discount not found")
	// ErrDiscountExpired indicates the discount's expiry has passed.
	ErrDiscountExpired = errors.New("discount has expired")
	// ErrDiscountUsed indicates the discount is already bound to a booking.
	ErrDiscountUsed = errors.New("discount has already been used")
	// ErrActiveDiscountExists indicates the user already holds an active discount.
	ErrActiveDiscountExists = errors.New("user already has an active discount")
	// ErrNoActiveDiscount indicates the user holds no active discount.
	ErrNoActiveDiscount = errors.New("no active discount for user")
)

// ReferralService manages referral discounts: at most one unused, unexpired
// discount per user is active; once bound to a booking it is permanently used.
type ReferralService interface {
	Active(ctx context.Context, userID string) (dto.ReferralDiscountResponse, error)
	Issue(ctx context.Context, payload dto.ReferralIssueRequest) (dto.ReferralDiscountResponse, error)
	Claim(ctx context.Context, payload dto.ReferralClaimRequest) (dto.ReferralDiscountResponse, error)
	Redeem(ctx context.Context, payload dto.ReferralRedeemRequest) (dto.ReferralDiscountResponse, error)
}

type referralService struct {
	discounts repository.DiscountRepository
	validator *validator.Validate
	link      func(code string) string
	ttl       time.Duration
	logger    zerolog.Logger
}

// NewReferralService constructs a referral discount service. The link builder
// turns a discount code into its shareable claim URL (config.ReferralLink).
func NewReferralService(discounts repository.DiscountRepository, link func(code string) string, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) ReferralService {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	return &referralService{
		discounts: discounts,
		validator: validate,
		link:      link,
		ttl:       ttl,
		logger:    logger.With().Str("component", "referral_service").Logger(),
	}
}

func (s *referralService) Active(ctx context.Context, userID string) (dto.ReferralDiscountResponse, error) {
	discount, err := s.discounts.Active(ctx, userID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReferralDiscountResponse{}, ErrNoActiveDiscount
		}
		return dto.ReferralDiscountResponse{}, err
	}

	return dto.NewReferralDiscountResponse(discount, s.shareLink(discount.Code)), nil
}

func (s *referralService) Issue(ctx context.Context, payload dto.ReferralIssueRequest) (dto.ReferralDiscountResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReferralDiscountResponse{}, err
	}

	discount := models.ReferralDiscount{
		UserID:       payload.UserID,
		AdvertiserID: payload.AdvertiserID,
		Code:         newDiscountCode(),
		Amount:       payload.Amount,
		ExpiresAt:    time.Now().Add(s.ttl),
	}

	if err := s.discounts.Create(ctx, &discount); err != nil {
		if errors.Is(err, repository.ErrDiscountConflict) {
			return dto.ReferralDiscountResponse{}, ErrActiveDiscountExists
		}
		return dto.ReferralDiscountResponse{}, err
	}

	return dto.NewReferralDiscountResponse(discount, s.shareLink(discount.Code)), nil
}

// Claim grants a newly registered user their own discount from a shared
// referral code. The source discount stays with its owner.
func (s *referralService) Claim(ctx context.Context, payload dto.ReferralClaimRequest) (dto.ReferralDiscountResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReferralDiscountResponse{}, err
	}

	source, err := s.discounts.FindByCode(ctx, payload.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReferralDiscountResponse{}, ErrDiscountNotFound
		}
		return dto.ReferralDiscountResponse{}, err
	}

	if source.ExpiresAt.Before(time.Now()) {
		return dto.ReferralDiscountResponse{}, ErrDiscountExpired
	}

	claimed := models.ReferralDiscount{
		UserID:       payload.UserID,
		AdvertiserID: source.AdvertiserID,
		Code:         newDiscountCode(),
		Amount:       source.Amount,
		ExpiresAt:    time.Now().Add(s.ttl),
	}

	if err := s.discounts.Create(ctx, &claimed); err != nil {
		if errors.Is(err, repository.ErrDiscountConflict) {
			return dto.ReferralDiscountResponse{}, ErrActiveDiscountExists
		}
		return dto.ReferralDiscountResponse{}, err
	}

	return dto.NewReferralDiscountResponse(claimed, s.shareLink(claimed.Code)), nil
}

func (s *referralService) Redeem(ctx context.Context, payload dto.ReferralRedeemRequest) (dto.ReferralDiscountResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.ReferralDiscountResponse{}, err
	}

	existing, err := s.discounts.FindByCode(ctx, payload.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReferralDiscountResponse{}, ErrDiscountNotFound
		}
		return dto.ReferralDiscountResponse{}, err
	}

	if existing.IsUsed {
		return dto.ReferralDiscountResponse{}, ErrDiscountUsed
	}
	if existing.ExpiresAt.Before(time.Now()) {
		return dto.ReferralDiscountResponse{}, ErrDiscountExpired
	}

	redeemed, err := s.discounts.Redeem(ctx, payload.Code, payload.BookingID, time.Now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Lost the race to another redemption.
			return dto.ReferralDiscountResponse{}, ErrDiscountUsed
		}
		return dto.ReferralDiscountResponse{}, err
	}

	return dto.NewReferralDiscountResponse(redeemed, ""), nil
}

func (s *referralService) shareLink(code string) string {
	if s.link == nil {
		return ""
	}
	return s.link(code)
}

func newDiscountCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
}
