// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Level   string // "error", "warning", "info"
}

// ValidateConfiguration validates the entire configuration. Unlike the
// teacher's blockchain-RPC validator, this never dials out: the ledger and
// directory are collaborator interfaces (spec.md §1), so only locally
// checkable shape is validated here.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errors []ValidationError

	if cfg.Ledger != nil {
		errors = append(errors, validateLedgerConfig(cfg.Ledger)...)
	}

	if cfg.Directory != nil {
		errors = append(errors, validateDirectoryConfig(cfg.Directory)...)
	}

	errors = append(errors, validateEnvironment(cfg.Environment)...)

	return errors
}

func validateLedgerConfig(cfg *LedgerConfig) []ValidationError {
	var errors []ValidationError

	if err := cfg.Validate(); err != nil {
		errors = append(errors, ValidationError{
			Field:   "Ledger",
			Message: err.Error(),
			Level:   "error",
		})
	}

	if cfg.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "Ledger.MaxRetries",
			Message: "max retries cannot be negative",
			Level:   "error",
		})
	}

	return errors
}

func validateDirectoryConfig(cfg *DirectoryConfig) []ValidationError {
	var errors []ValidationError

	if cfg.Endpoint != "" {
		if _, err := url.Parse(cfg.Endpoint); err != nil {
			errors = append(errors, ValidationError{
				Field:   "Directory.Endpoint",
				Message: fmt.Sprintf("invalid endpoint URL: %v", err),
				Level:   "error",
			})
		}
	}

	if cfg.CacheSize < 0 {
		errors = append(errors, ValidationError{
			Field:   "Directory.CacheSize",
			Message: "cache size cannot be negative",
			Level:   "error",
		})
	}

	return errors
}

func validateEnvironment(env string) []ValidationError {
	switch env {
	case "", "development", "staging", "production", "local", "test":
		return nil
	default:
		return []ValidationError{{
			Field:   "Environment",
			Message: fmt.Sprintf("unrecognized environment %q", env),
			Level:   "warning",
		}}
	}
}
