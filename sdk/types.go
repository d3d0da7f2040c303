package sdk

import (
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/cloudsave"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/hooks"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/models"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/session"
)

// Public names for the types host code handles.
type (
	ShowOptions = session.Options
	Session     = session.Session
	State       = session.State
	Action      = session.Action
	SaveResult  = cloudsave.Result
	SlotType    = models.SlotType
	Creative    = models.Creative
	Hook        = hooks.Hook
	HookEvent   = hooks.Event
	HookHandler = hooks.Handler
)

const (
	Interstitial = models.SlotInterstitial
	Rewarded     = models.SlotRewarded
	Banner       = models.SlotBanner
)

const (
	OnAdStart       = hooks.AdStart
	OnAdComplete    = hooks.AdComplete
	OnAdError       = hooks.AdError
	OnAdClose       = hooks.AdClose
	OnGameplayStart = hooks.GameplayStart
	OnGameplayStop  = hooks.GameplayStop
)

const (
	ActionWatched  = session.ActionWatched
	ActionContinue = session.ActionContinue
	ActionDismiss  = session.ActionDismiss
)

// Errors returned by Show. Use errors.Is.
var (
	ErrAlreadyActive    = session.ErrAlreadyActive
	ErrRateLimited      = session.ErrRateLimited
	ErrContainerMissing = session.ErrContainerMissing
	ErrNoAdAvailable    = session.ErrNoAdAvailable
	ErrNotCompleted     = session.ErrNotCompleted
	ErrFetchTimeout     = session.ErrFetchTimeout
)
