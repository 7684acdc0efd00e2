// Zaparoo RFID Station
// Copyright (c) 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Zaparoo RFID Station.
//
// Zaparoo RFID Station is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Zaparoo RFID Station is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Zaparoo RFID Station.  If not, see <http://www.gnu.org/licenses/>.

// Package validation checks user and config input using go-playground/validator
// with a few custom tags for serial settings.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxPayloadLength is the size of the user data block on a card, in characters.
const MaxPayloadLength = 16

// WriteParams is the input of a card write.
type WriteParams struct {
	Payload string `validate:"required,max=16"`
}

// SerialParams are the serial settings needed to open a session.
type SerialParams struct {
	Port         string `validate:"required,serialport"`
	BaudRate     int    `validate:"gt=0"`
	ReadTimeout  int    `validate:"gt=0"`
	WriteTimeout int    `validate:"gt=0"`
	LineTimeout  int    `validate:"gt=0"`
	SettleDelay  int    `validate:"gte=0"`
	ModeSwitch   int    `validate:"gte=0"`
}

// Validator wraps a configured validator instance.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator with registered custom validators.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("serialport", validateSerialPort)
	return &Validator{validate: v}
}

// DefaultValidator is a shared validator instance.
var DefaultValidator = NewValidator()

// Validate validates a struct and returns an *Error if validation fails.
func (v *Validator) Validate(params any) error {
	if err := v.validate.Struct(params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewError(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidatePayload checks text destined for a card.
func ValidatePayload(text string) error {
	return DefaultValidator.Validate(&WriteParams{Payload: text})
}

// validateSerialPort rejects port names with control characters or
// surrounding whitespace. Existence is checked when the port is opened.
func validateSerialPort(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	if strings.TrimSpace(val) != val {
		return false
	}
	for _, r := range val {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
