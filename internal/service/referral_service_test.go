package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/rentora/rentora-api/internal/config"
	"github.com/rentora/rentora-api/internal/dto"
	"github.com/rentora/rentora-api/internal/models"
	"github.com/rentora/rentora-api/internal/repository"
)

func newReferralFixture(t *testing.T) (ReferralService, repository.DiscountRepository) {
	t.Helper()
	db := setupServiceDB(t)
	repo := repository.NewDiscountRepository(db)
	cfg := config.Config{AppOrigin: "https://rentora.example.com"}
	svc := NewReferralService(repo, cfg.ReferralLink, 30*24*time.Hour, newTestValidator(), zerolog.Nop())
	return svc, repo
}

func TestIssueCreatesActiveDiscountWithShareLink(t *testing.T) {
	svc, _ := newReferralFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, dto.ReferralIssueRequest{
		UserID:       "tenant-1",
		AdvertiserID: "advertiser-1",
		Amount:       25,
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Code)
	require.Len(t, issued.Code, 12)
	require.Contains(t, issued.ShareLink, "/referral/claim-discount?ref="+issued.Code)
	require.False(t, issued.IsUsed)

	active, err := svc.Active(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, issued.Code, active.Code)

	// A second issue while one is active conflicts.
	_, err = svc.Issue(ctx, dto.ReferralIssueRequest{
		UserID:       "tenant-1",
		AdvertiserID: "advertiser-1",
		Amount:       10,
	})
	require.ErrorIs(t, err, ErrActiveDiscountExists)
}

func TestActiveWithoutDiscount(t *testing.T) {
	svc, _ := newReferralFixture(t)

	_, err := svc.Active(context.Background(), "tenant-1")
	require.ErrorIs(t, err, ErrNoActiveDiscount)
}

func TestClaimGrantsOwnDiscountFromSharedCode(t *testing.T) {
	svc, _ := newReferralFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, dto.ReferralIssueRequest{
		UserID:       "tenant-1",
		AdvertiserID: "advertiser-1",
		Amount:       25,
	})
	require.NoError(t, err)

	claimed, err := svc.Claim(ctx, dto.ReferralClaimRequest{Code: issued.Code, UserID: "tenant-2"})
	require.NoError(t, err)
	require.Equal(t, "tenant-2", claimed.UserID)
	require.Equal(t, issued.Amount, claimed.Amount)
	require.NotEqual(t, issued.Code, claimed.Code, "claimed discount carries its own code")

	// The original owner still holds their discount.
	active, err := svc.Active(ctx, "tenant-1")
	require.NoError(t, err)
	require.Equal(t, issued.Code, active.Code)
}

func TestClaimUnknownOrExpiredCode(t *testing.T) {
	svc, repo := newReferralFixture(t)
	ctx := context.Background()

	_, err := svc.Claim(ctx, dto.ReferralClaimRequest{Code: "NO-SUCH-CODE", UserID: "tenant-2"})
	require.ErrorIs(t, err, ErrDiscountNotFound)

	expired := models.ReferralDiscount{
		UserID:    "tenant-1",
		Code:      "EXPIRED-CODE",
		Amount:    25,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, repo.Create(ctx, &expired))

	_, err = svc.Claim(ctx, dto.ReferralClaimRequest{Code: "EXPIRED-CODE", UserID: "tenant-2"})
	require.ErrorIs(t, err, ErrDiscountExpired)
}

func TestRedeemBindsBookingOnce(t *testing.T) {
	svc, _ := newReferralFixture(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, dto.ReferralIssueRequest{
		UserID:       "tenant-1",
		AdvertiserID: "advertiser-1",
		Amount:       25,
	})
	require.NoError(t, err)

	redeemed, err := svc.Redeem(ctx, dto.ReferralRedeemRequest{Code: issued.Code, BookingID: "booking-1"})
	require.NoError(t, err)
	require.True(t, redeemed.IsUsed)
	require.NotNil(t, redeemed.BookingID)
	require.Equal(t, "booking-1", *redeemed.BookingID)

	_, err = svc.Redeem(ctx, dto.ReferralRedeemRequest{Code: issued.Code, BookingID: "booking-2"})
	require.ErrorIs(t, err, ErrDiscountUsed)

	// A used discount no longer counts as active.
	_, err = svc.Active(ctx, "tenant-1")
	require.ErrorIs(t, err, ErrNoActiveDiscount)
}
