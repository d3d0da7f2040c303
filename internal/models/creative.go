package models

// Creative is the ad content handed to a presenter. Fallback creatives are
// built locally and carry no ID.
type Creative struct {
	ID          string `json:"id,omitempty"`
	ImageURL    string `json:"imageUrl"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	TargetURL   string `json:"targetUrl,omitempty"`
	ButtonText  string `json:"buttonText,omitempty"`
}

// IsFallback reports whether the creative was built locally.
func (c *Creative) IsFallback() bool {
	return c == nil || c.ID == ""
}

// CTA returns the button text, defaulting like the hosted overlay does.
func (c *Creative) CTA() string {
	if c.ButtonText == "" {
		return "Learn More"
	}
	return c.ButtonText
}

// AdRequest is the body of POST /api/sdk/ads.
type AdRequest struct {
	GameID   string   `json:"gameId"`
	Type     SlotType `json:"type"`
	PlayerID string   `json:"playerId"`
	Size     string   `json:"size,omitempty"`
}

// AdResponse is the body returned by POST /api/sdk/ads. The API answers with
// either a single ad or a list.
type AdResponse struct {
	Success bool       `json:"success"`
	Ad      *Creative  `json:"ad,omitempty"`
	Ads     []Creative `json:"ads,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Candidates merges the single and list forms into one slice.
func (r *AdResponse) Candidates() []Creative {
	if r == nil {
		return nil
	}
	out := make([]Creative, 0, len(r.Ads)+1)
	out = append(out, r.Ads...)
	if r.Ad != nil {
		out = append(out, *r.Ad)
	}
	return out
}
