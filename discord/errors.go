package discord

import "errors"

var (
	ErrProviderMisconfigured = errors.New("discord provider is misconfigured")
	ErrExchangeFailed        = errors.New("failed to exchange authorization code for token")
	ErrRefreshFailed         = errors.New("failed to refresh access token")
	ErrProfileFetchFailed    = errors.New("failed to fetch user profile from discord")
)
