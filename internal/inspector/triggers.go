package inspector

import (
	"fmt"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/session"
)

// TestBannerContainer and TestBannerSize are used by the banner test trigger.
const (
	TestBannerContainer = "inspector-banner"
	TestBannerSize      = "300x250"
)

// AdRunner is the host API the test triggers drive. sdk.Client implements it.
type AdRunner interface {
	ShowInterstitial(opts session.Options) bool
	ShowRewarded(opts session.Options) bool
	RequestBanner(containerID, size string) bool
}

// ContainerRegistrar declares banner containers, e.g. presenter.Headless.
type ContainerRegistrar interface {
	AddContainer(id string)
}

// Triggers runs test ads and notes their outcomes in a Recorder.
type Triggers struct {
	runner     AdRunner
	containers ContainerRegistrar
	rec        *Recorder
}

func NewTriggers(runner AdRunner, containers ContainerRegistrar, rec *Recorder) *Triggers {
	return &Triggers{runner: runner, containers: containers, rec: rec}
}

// Interstitial starts a test interstitial.
func (t *Triggers) Interstitial() bool {
	ok := t.runner.ShowInterstitial(session.Options{
		OnComplete: func() { t.rec.Note(LevelSuccess, "Interstitial completed") },
		OnError: func(err error) {
			t.rec.Note(LevelError, fmt.Sprintf("Interstitial error: %v", err))
		},
	})
	if !ok {
		t.rec.Note(LevelError, "Interstitial not shown")
	}
	return ok
}

// Rewarded starts a test rewarded ad.
func (t *Triggers) Rewarded() bool {
	ok := t.runner.ShowRewarded(session.Options{
		OnReward: func() { t.rec.Note(LevelSuccess, "Reward granted") },
		OnError: func(err error) {
			t.rec.Note(LevelError, fmt.Sprintf("Rewarded error: %v", err))
		},
	})
	if !ok {
		t.rec.Note(LevelError, "Rewarded not shown")
	}
	return ok
}

// Banner requests a test banner in TestBannerContainer.
func (t *Triggers) Banner() bool {
	if t.containers != nil {
		t.containers.AddContainer(TestBannerContainer)
	}
	ok := t.runner.RequestBanner(TestBannerContainer, TestBannerSize)
	if ok {
		t.rec.Note(LevelSuccess, "Banner requested")
	} else {
		t.rec.Note(LevelError, "Banner not shown")
	}
	return ok
}
