// Package badges derives the ordered badge set for a Discord account from its
// public flags bitmask and premium type.
package badges

import "fmt"

// ID identifies a badge in the fixed catalog.
type ID string

const (
	Staff                ID = "staff"
	Partner              ID = "partner"
	HypeSquadEvent       ID = "hypesquad-event"
	BugHunter            ID = "bug-hunter"
	HypeSquadBravery     ID = "hypesquad-bravery"
	HypeSquadBrilliance  ID = "hypesquad-brilliance"
	HypeSquadBalance     ID = "hypesquad-balance"
	EarlySupporter       ID = "early-supporter"
	BugHunterLevel2      ID = "bug-hunter-2"
	VerifiedBotDeveloper ID = "verified-bot-developer"
	CertifiedModerator   ID = "certified-moderator"
	Nitro                ID = "nitro"
)

// IconBaseURL is where badge icons are served from. Icons are resolved by
// substituting the asset name into this path.
var IconBaseURL = "https://raw.githubusercontent.com/Mattlau04/Discord-SVG-badges/master/PNG"

// table maps flag bits to badges in ascending bit order. The slice order is a
// rendering contract: Resolve emits badges in exactly this order.
var table = []struct {
	bit  uint
	id   ID
	icon string
}{
	{0, Staff, "Discord_Staff"},
	{1, Partner, "discord_partner"},
	{2, HypeSquadEvent, "HypeSquad_Event"},
	{3, BugHunter, "Bug_Hunter"},
	{6, HypeSquadBravery, "HypeSquad_Bravery"},
	{7, HypeSquadBrilliance, "HypeSquad_Brilliance"},
	{8, HypeSquadBalance, "HypeSquad_Balance"},
	{9, EarlySupporter, "early_supporter"},
	{14, BugHunterLevel2, "Bug_Hunter_level2"},
	{17, VerifiedBotDeveloper, "Verified_Bot_Developer"},
	{18, CertifiedModerator, "Discord_certified_moderator"},
}

var icons = func() map[ID]string {
	m := make(map[ID]string, len(table)+1)
	for _, e := range table {
		m[e.id] = e.icon
	}
	m[Nitro] = "nitro"
	return m
}()

// Resolve maps a raw flags bitmask and premium type to the ordered badge set.
// Unknown bits are ignored. A non-zero premium type appends the nitro badge
// after all flag-derived badges.
func Resolve(rawFlags int64, premiumType int) []ID {
	var out []ID
	for _, e := range table {
		if rawFlags&(1<<e.bit) != 0 {
			out = append(out, e.id)
		}
	}
	if premiumType != 0 {
		out = append(out, Nitro)
	}
	return out
}

// IconURL returns the PNG icon location for a badge. The bool is false for
// identifiers outside the catalog.
func IconURL(id ID) (string, bool) {
	icon, ok := icons[id]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s/%s.png", IconBaseURL, icon), true
}
