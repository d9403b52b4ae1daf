// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

/*
Package media defines the unified media item model and the normalizer that
maps raw TMDB film, series and person records onto it.

Normalization is pure: the same record and the same reference time always
produce the same Item. Kind detection honours an explicit media_type field
first (trending and multi-search results carry one), then falls back to the
shape of the record:

  - title present                               -> film
  - name plus series fields (first_air_date, ...) -> series
  - name plus person fields (known_for_department, profile_path, ...) -> person

Records that match none of these return ErrUnrecognizedShape.
*/
package media
