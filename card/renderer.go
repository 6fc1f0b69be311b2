// Package card composes a user's identity card: circular avatar, display name
// and tag, and a row of badge icons, rendered onto a transparent PNG.
package card

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/profilecard-dev/profilecard/badges"
	"github.com/profilecard-dev/profilecard/domain"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// ErrRenderFailed is returned for any composition failure: an unreachable
// avatar or icon, an unknown badge identifier, or an encoding error. No
// partial output is produced.
var ErrRenderFailed = errors.New("card rendering failed")

// CDN locations, overridable in tests.
var (
	AvatarBaseURL        = "https://cdn.discordapp.com/avatars"
	DefaultAvatarBaseURL = "https://cdn.discordapp.com/embed/avatars"
)

// Fixed layout. Same inputs always produce the same geometry.
const (
	avatarSize   = 128
	badgeSize    = 32
	padding      = 10
	nameGap      = 8
	badgeMargin  = 15
	nameFontSize = 28
	tagFontSize  = 20
)

// Renderer composes identity cards from a profile and its resolved badges.
type Renderer struct {
	fetcher  ImageFetcher
	nameFace font.Face
	tagFace  font.Face
}

// NewRenderer prepares the embedded font faces and wires the image fetcher.
func NewRenderer(fetcher ImageFetcher) (*Renderer, error) {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded font: %w", err)
	}
	nameFace, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: nameFontSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("building name font face: %w", err)
	}
	tagFace, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size: tagFontSize, DPI: 72, Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("building tag font face: %w", err)
	}
	return &Renderer{fetcher: fetcher, nameFace: nameFace, tagFace: tagFace}, nil
}

// Render produces the PNG bytes for the given profile and ordered badge set.
func (r *Renderer) Render(ctx context.Context, profile *domain.Profile, ids []badges.ID) ([]byte, error) {
	avatar, err := r.fetcher.Fetch(ctx, AvatarURL(profile))
	if err != nil {
		return nil, fmt.Errorf("%w: avatar: %v", ErrRenderFailed, err)
	}

	icons := make([]image.Image, 0, len(ids))
	for _, id := range ids {
		url, ok := badges.IconURL(id)
		if !ok {
			return nil, fmt.Errorf("%w: no icon for badge %q", ErrRenderFailed, id)
		}
		icon, err := r.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: badge %q: %v", ErrRenderFailed, id, err)
		}
		icons = append(icons, icon)
	}

	name := profile.DisplayName()
	tag := profile.Tag()

	measure := gg.NewContext(1, 1)
	measure.SetFontFace(r.nameFace)
	nameWidth, _ := measure.MeasureString(name)
	var tagWidth float64
	if tag != "" {
		measure.SetFontFace(r.tagFace)
		tagWidth, _ = measure.MeasureString(tag)
	}

	textWidth := nameWidth
	if tag != "" {
		textWidth += nameGap + tagWidth
	}
	badgeRegion := 0
	if len(icons) > 0 {
		badgeRegion = 2*badgeMargin + badgeSize*len(icons)
	}

	width := padding + avatarSize + padding + int(textWidth+0.5) + padding + badgeRegion
	height := avatarSize + 2*padding
	centerY := float64(height) / 2

	dc := gg.NewContext(width, height)

	// Circular avatar in the main region.
	scaled := scaleTo(avatar, avatarSize)
	dc.DrawCircle(float64(padding+avatarSize/2), centerY, float64(avatarSize)/2)
	dc.Clip()
	dc.DrawImage(scaled, padding, padding)
	dc.ResetClip()

	// Display name, then the muted discriminator tag on the same baseline.
	textX := float64(padding + avatarSize + padding)
	dc.SetFontFace(r.nameFace)
	dc.SetRGB(1, 1, 1)
	dc.DrawStringAnchored(name, textX, centerY, 0, 0.35)
	if tag != "" {
		dc.SetFontFace(r.tagFace)
		dc.SetRGB255(185, 187, 190)
		dc.DrawStringAnchored(tag, textX+nameWidth+nameGap, centerY, 0, 0.35)
	}

	// Badge row, in resolver order.
	iconX := width - badgeRegion + badgeMargin
	iconY := (height - badgeSize) / 2
	for _, icon := range icons {
		dc.DrawImage(scaleTo(icon, badgeSize), iconX, iconY)
		iconX += badgeSize
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("%w: encoding png: %v", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

// AvatarURL builds the CDN location of the profile's avatar. Accounts without
// a custom avatar fall back to Discord's default embed avatars.
func AvatarURL(p *domain.Profile) string {
	if p.AvatarHash == "" {
		return fmt.Sprintf("%s/%d.png", DefaultAvatarBaseURL, defaultAvatarIndex(p))
	}
	return fmt.Sprintf("%s/%s/%s.png?size=%d", AvatarBaseURL, p.ID, p.AvatarHash, avatarSize)
}

func defaultAvatarIndex(p *domain.Profile) int {
	if disc, err := strconv.Atoi(p.Discriminator); err == nil && disc != 0 {
		return disc % 5
	}
	if id, err := strconv.ParseUint(p.ID, 10, 64); err == nil {
		return int((id >> 22) % 6)
	}
	return 0
}

func scaleTo(src image.Image, size int) image.Image {
	if b := src.Bounds(); b.Dx() == size && b.Dy() == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
