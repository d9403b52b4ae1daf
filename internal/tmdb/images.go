// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package tmdb

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/tomtom215/marquee/internal/logging"
)

// DefaultImageBaseURL is the TMDB image CDN root.
const DefaultImageBaseURL = "https://image.tmdb.org/t/p/"

// ImageKind selects the size catalogue and placeholder for an image.
type ImageKind string

const (
	ImagePoster   ImageKind = "poster"
	ImageBackdrop ImageKind = "backdrop"
	ImageProfile  ImageKind = "profile"
)

// SizeOriginal is the unscaled size class.
const SizeOriginal = "original"

// ImageSizes lists the size classes available per image kind.
type ImageSizes struct {
	Poster   []string `json:"poster_sizes"`
	Backdrop []string `json:"backdrop_sizes"`
	Profile  []string `json:"profile_sizes"`
}

// For returns the size classes for kind.
func (s ImageSizes) For(kind ImageKind) []string {
	switch kind {
	case ImageBackdrop:
		return s.Backdrop
	case ImageProfile:
		return s.Profile
	default:
		return s.Poster
	}
}

// FallbackImageSizes is used when /configuration cannot be fetched.
var FallbackImageSizes = ImageSizes{
	Poster:   []string{"w92", "w154", "w185", "w342", "w500", "w780", "original"},
	Backdrop: []string{"w300", "w780", "w1280", "original"},
	Profile:  []string{"w45", "w185", "h632", "original"},
}

// Placeholder returns the local placeholder asset for kind.
func Placeholder(kind ImageKind) string {
	switch kind {
	case ImageBackdrop:
		return "/images/placeholder-backdrop.svg"
	case ImageProfile:
		return "/images/placeholder-profile.svg"
	default:
		return "/images/placeholder-poster.svg"
	}
}

// Images resolves relative image paths to CDN URLs. The size catalogue is
// fetched from /configuration once per session through the access layer.
type Images struct {
	client  *Client
	baseURL string

	mu     sync.Mutex
	sizes  *ImageSizes
	source string // "upstream" or "fallback"
}

func newImages(c *Client, baseURL string) *Images {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Images{client: c, baseURL: baseURL}
}

// URL builds {base}{size}{path}, or the placeholder when path is empty.
func (im *Images) URL(path, size string, kind ImageKind) string {
	if path == "" {
		return Placeholder(kind)
	}
	if size == "" {
		size = SizeOriginal
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return im.baseURL + size + path
}

// Sizes returns the memoized size catalogue, fetching it on first use.
// Failure is never surfaced: the fallback table is memoized instead. A
// canceled ctx yields the fallback for this call only.
func (im *Images) Sizes(ctx context.Context) ImageSizes {
	im.mu.Lock()
	if im.sizes != nil {
		s := *im.sizes
		im.mu.Unlock()
		return s
	}
	im.mu.Unlock()

	v, err := im.client.flight.do(ctx, "images:configuration", func(ctx context.Context) (interface{}, error) {
		return im.fetch(ctx)
	})
	if err != nil {
		return FallbackImageSizes
	}
	return v.(ImageSizes)
}

// Source reports where the memoized catalogue came from, or "" before the first fetch.
func (im *Images) Source() string {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.source
}

// fetch loads the catalogue and memoizes it, or the fallback on failure.
// Only cancellation is returned as an error, so nothing is memoized for it.
func (im *Images) fetch(ctx context.Context) (ImageSizes, error) {
	im.mu.Lock()
	if im.sizes != nil {
		s := *im.sizes
		im.mu.Unlock()
		return s, nil
	}
	im.mu.Unlock()

	var payload struct {
		Images ImageSizes `json:"images"`
	}
	resp, err := im.client.Submit(ctx, PathConfiguration, nil)
	if err == nil {
		err = resp.Decode(&payload)
	}

	sizes := FallbackImageSizes
	source := "fallback"
	switch {
	case err == nil:
		sizes = mergeSizes(payload.Images, FallbackImageSizes)
		source = "upstream"
	case IsCanceled(err):
		return FallbackImageSizes, err
	default:
		logging.Warn().Err(err).Msg("Image configuration unavailable, using fallback sizes")
	}

	im.mu.Lock()
	im.sizes = &sizes
	im.source = source
	im.mu.Unlock()
	return sizes, nil
}

// mergeSizes fills empty upstream lists from fallback.
func mergeSizes(upstream, fallback ImageSizes) ImageSizes {
	if len(upstream.Poster) == 0 {
		upstream.Poster = fallback.Poster
	}
	if len(upstream.Backdrop) == 0 {
		upstream.Backdrop = fallback.Backdrop
	}
	if len(upstream.Profile) == 0 {
		upstream.Profile = fallback.Profile
	}
	return upstream
}

// ResponsiveURL picks the smallest width class at least 1.5x targetWidth,
// else the largest available class, and builds the URL.
func (im *Images) ResponsiveURL(ctx context.Context, path string, kind ImageKind, targetWidth int) string {
	if path == "" {
		return Placeholder(kind)
	}
	return im.URL(path, PickSize(im.Sizes(ctx).For(kind), targetWidth), kind)
}

// PickSize chooses a size class from sizes for targetWidth. Height-based
// classes (h632) are never chosen by width.
func PickSize(sizes []string, targetWidth int) string {
	type widthClass struct {
		name  string
		width int
	}
	var widths []widthClass
	hasOriginal := false
	for _, s := range sizes {
		if s == SizeOriginal {
			hasOriginal = true
			continue
		}
		if !strings.HasPrefix(s, "w") {
			continue
		}
		w, err := strconv.Atoi(s[1:])
		if err != nil {
			continue
		}
		widths = append(widths, widthClass{s, w})
	}
	sort.Slice(widths, func(i, j int) bool { return widths[i].width < widths[j].width })

	need := float64(targetWidth) * 1.5
	for _, wc := range widths {
		if float64(wc.width) >= need {
			return wc.name
		}
	}
	if hasOriginal || len(widths) == 0 {
		return SizeOriginal
	}
	return widths[len(widths)-1].name
}
