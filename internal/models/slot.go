package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SlotType is the ad placement kind. It decides completion semantics and layout.
type SlotType string

const (
	SlotInterstitial SlotType = "interstitial"
	SlotRewarded     SlotType = "rewarded"
	SlotBanner       SlotType = "banner"
)

// SlotTypes lists every slot type in a stable order.
var SlotTypes = []SlotType{SlotInterstitial, SlotRewarded, SlotBanner}

// ParseSlotType converts a config or wire value into a SlotType.
func ParseSlotType(s string) (SlotType, error) {
	switch SlotType(strings.ToLower(strings.TrimSpace(s))) {
	case SlotInterstitial:
		return SlotInterstitial, nil
	case SlotRewarded:
		return SlotRewarded, nil
	case SlotBanner:
		return SlotBanner, nil
	}
	return "", fmt.Errorf("unknown slot type %q", s)
}

func (s SlotType) String() string { return string(s) }

// Size is a banner size such as 300x250.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParseSize parses "WxH".
func ParseSize(s string) (Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Size{}, fmt.Errorf("invalid size %q: want WxH", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return Size{}, fmt.Errorf("invalid size width %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Size{}, fmt.Errorf("invalid size height %q: %w", s, err)
	}
	size := Size{Width: width, Height: height}
	if err := size.Validate(); err != nil {
		return Size{}, err
	}
	return size, nil
}

func (s Size) Validate() error {
	if s.Width <= 0 || s.Height <= 0 {
		return errors.New("size dimensions must be > 0")
	}
	return nil
}

func (s Size) IsZero() bool { return s.Width == 0 && s.Height == 0 }

func (s Size) String() string {
	if s.IsZero() {
		return ""
	}
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}
