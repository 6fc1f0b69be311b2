package domain

// Profile is the Discord user identity fetched with a valid access token.
// It is derived fresh for every card request and never persisted.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name"`
	AvatarHash    string `json:"avatar"`
	PublicFlags   int64  `json:"public_flags"`
	Flags         int64  `json:"flags"`
	PremiumType   int    `json:"premium_type"`
}

// BadgeFlags returns the flag bitmask badges are derived from. Discord reports
// the same value under both fields for most accounts; flags wins when present,
// matching how clients treat it.
func (p *Profile) BadgeFlags() int64 {
	if p.Flags != 0 {
		return p.Flags
	}
	return p.PublicFlags
}

// DisplayName returns the name rendered on the card. Accounts migrated off
// discriminators ("0") display their global name instead of the login name.
func (p *Profile) DisplayName() string {
	if p.Discriminator == "0" && p.GlobalName != "" {
		return p.GlobalName
	}
	return p.Username
}

// Tag returns the "#1234" suffix, or "" for accounts without a discriminator.
func (p *Profile) Tag() string {
	if p.Discriminator == "" || p.Discriminator == "0" {
		return ""
	}
	return "#" + p.Discriminator
}
