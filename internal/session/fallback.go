package session

import "github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"

const fallbackSite = "https://kasrah-games.onrender.com"

// DefaultFallback returns the house creative shown when the API has no ad for
// an interstitial or banner. It has no ID, so it is never tracked.
func DefaultFallback(slot models.SlotType) models.Creative {
	c := models.Creative{
		ImageURL:    fallbackSite + "/images/kasrah-house-ad.png",
		Title:       "Kasrah Games",
		Description: "Play hundreds of free browser games.",
		TargetURL:   fallbackSite,
		ButtonText:  "Play Now",
	}
	if slot == models.SlotBanner {
		c.Description = ""
	}
	return c
}
