// Marquee - Rate-Limited Media Metadata Access Layer
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/marquee

package config

import (
	"errors"
	"fmt"

	"github.com/tomtom215/marquee/internal/validation"
)

// ErrMissingCredentials is returned when neither a TMDB API key nor a read token is set.
var ErrMissingCredentials = errors.New("TMDB_API_KEY or TMDB_READ_TOKEN is required")

// Validate checks struct-tag constraints and the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if errs := validation.ValidateStruct(c); errs != nil {
		return errs
	}
	if c.TMDB.APIKey == "" && c.TMDB.ReadToken == "" {
		return ErrMissingCredentials
	}
	if c.Access.RequestSpacing >= c.Access.RateWindow {
		return fmt.Errorf("access.request_spacing %s must be shorter than access.rate_window %s",
			c.Access.RequestSpacing, c.Access.RateWindow)
	}
	return nil
}
