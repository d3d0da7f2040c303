package session

import "errors"

// Rejections returned synchronously by Show and RequestBanner. No session is
// created and no hook fires.
var (
	ErrAlreadyActive    = errors.New("an ad session is already active for this slot")
	ErrRateLimited      = errors.New("minimum interval between ads has not elapsed")
	ErrContainerMissing = errors.New("banner container not found")
	ErrInvalidSlot      = errors.New("invalid slot type")
)

// Session failures delivered through onAdError and OnError.
var (
	ErrNoAdAvailable = errors.New("no ad available")
	ErrFetchTimeout  = errors.New("ad fetch timed out")
	ErrNotCompleted  = errors.New("rewarded ad was not watched to completion")
	ErrNoPresenter   = errors.New("no presenter configured")
)

// ErrNoActiveBanner is returned by RemoveBanner when nothing is shown.
var ErrNoActiveBanner = errors.New("no active banner")

// rejectionReason labels rejections in metrics.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyActive):
		return "already_active"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrContainerMissing):
		return "container_missing"
	}
	return "invalid"
}
