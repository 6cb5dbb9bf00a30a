// ABOUTME: Pricing table and quoting for all metered resource kinds.
// ABOUTME: Base unit price + margin + minimum floor, with threshold rounding.

package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ResourceKind identifies what a quantity measures. The unit differs per
// kind: tokens for text, characters for synthesis, seconds for
// transcription, bytes for document retrieval, whole images otherwise.
type ResourceKind string

const (
	InputText          ResourceKind = "input_text"
	OutputText         ResourceKind = "output_text"
	VoiceSynthesis     ResourceKind = "voice_synthesis"
	VoiceTranscription ResourceKind = "voice_transcription"
	ImageUnderstanding ResourceKind = "image_understanding"
	ImageGeneration    ResourceKind = "image_generation"
	DocumentRetrieval  ResourceKind = "document_retrieval"
)

// Amounts below this round to 6 decimal places so near-zero costs are
// not truncated to exactly zero; at or above it, 2 places.
var roundingThreshold = decimal.RequireFromString("0.01")

const (
	smallPrecision = 6
	largePrecision = 2
)

// Pricing is the immutable price table for one assistant instance.
type Pricing struct {
	// unit price per single unit of the kind's quantity
	unitPrices map[ResourceKind]decimal.Decimal
	// margin is the profit fraction added on top of base cost
	margin decimal.Decimal
	// minimumCharge floors per-invocation kinds (voice, image
	// generation, document retrieval)
	minimumCharge decimal.Decimal
}

// flooredKinds are charged at least the minimum per invocation.
var flooredKinds = map[ResourceKind]bool{
	VoiceSynthesis:     true,
	VoiceTranscription: true,
	ImageGeneration:    true,
	DocumentRetrieval:  true,
}

// DefaultPricing returns the standard price table: per-1K-token text
// prices, TTS per character, transcription per second, DALL-E style
// flat image prices, and retrieval per byte, with a 16% margin and a
// $0.01 invocation floor.
func DefaultPricing() Pricing {
	return Pricing{
		unitPrices: map[ResourceKind]decimal.Decimal{
			InputText:          decimal.RequireFromString("0.000001"),     // $0.001 / 1K tokens
			OutputText:         decimal.RequireFromString("0.000002"),     // $0.002 / 1K tokens
			VoiceSynthesis:     decimal.RequireFromString("0.000015"),     // $0.015 / 1K chars
			VoiceTranscription: decimal.RequireFromString("0.0001"),       // $0.006 / minute
			ImageUnderstanding: decimal.RequireFromString("0.00765"),      // per image, low-res tile
			ImageGeneration:    decimal.RequireFromString("0.04"),         // per 1024x1024 image
			DocumentRetrieval:  decimal.RequireFromString("0.0000000002"), // $0.20 / GB
		},
		margin:        decimal.RequireFromString("0.16"),
		minimumCharge: decimal.RequireFromString("0.01"),
	}
}

// NewPricing builds a price table with explicit unit prices. Kinds
// missing from the map quote as zero. Margin and floor are fractions
// and currency units respectively, given as decimal strings.
func NewPricing(unitPrices map[ResourceKind]string, margin, minimumCharge string) (Pricing, error) {
	prices := make(map[ResourceKind]decimal.Decimal, len(unitPrices))
	for kind, raw := range unitPrices {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Pricing{}, fmt.Errorf("parsing unit price for %s: %w", kind, err)
		}
		prices[kind] = d
	}
	m, err := decimal.NewFromString(margin)
	if err != nil {
		return Pricing{}, fmt.Errorf("parsing margin: %w", err)
	}
	floor, err := decimal.NewFromString(minimumCharge)
	if err != nil {
		return Pricing{}, fmt.Errorf("parsing minimum charge: %w", err)
	}
	return Pricing{unitPrices: prices, margin: m, minimumCharge: floor}, nil
}

// WithOverrides returns a copy of the table with the given unit prices
// replaced and, when non-empty, margin and minimum charge replaced.
// Kinds absent from the override map keep their current price.
func (p Pricing) WithOverrides(unitPrices map[ResourceKind]string, margin, minimumCharge string) (Pricing, error) {
	prices := make(map[ResourceKind]decimal.Decimal, len(p.unitPrices))
	for kind, price := range p.unitPrices {
		prices[kind] = price
	}
	for kind, raw := range unitPrices {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return Pricing{}, fmt.Errorf("parsing unit price for %s: %w", kind, err)
		}
		prices[kind] = d
	}

	out := Pricing{unitPrices: prices, margin: p.margin, minimumCharge: p.minimumCharge}
	if margin != "" {
		m, err := decimal.NewFromString(margin)
		if err != nil {
			return Pricing{}, fmt.Errorf("parsing margin: %w", err)
		}
		out.margin = m
	}
	if minimumCharge != "" {
		floor, err := decimal.NewFromString(minimumCharge)
		if err != nil {
			return Pricing{}, fmt.Errorf("parsing minimum charge: %w", err)
		}
		out.minimumCharge = floor
	}
	return out, nil
}

// Quote is a computed cost for a specific resource usage. It is never
// persisted; callers compare it against balance and debit the amount.
type Quote struct {
	Kind     ResourceKind
	Quantity int64
	Amount   decimal.Decimal
}

// Quote prices the given quantity of a resource kind. The result is
// monotonically non-decreasing in quantity and, for floored kinds,
// never below the minimum charge. Negative quantities quote as zero.
func (p Pricing) Quote(kind ResourceKind, quantity int64) Quote {
	if quantity < 0 {
		quantity = 0
	}

	base := p.unitPrices[kind].Mul(decimal.NewFromInt(quantity))
	amount := base.Add(base.Mul(p.margin))

	if flooredKinds[kind] && amount.LessThan(p.minimumCharge) {
		amount = p.minimumCharge
	}

	return Quote{Kind: kind, Quantity: quantity, Amount: roundAmount(amount)}
}

// roundAmount applies the threshold rounding rule.
func roundAmount(amount decimal.Decimal) decimal.Decimal {
	if amount.LessThan(roundingThreshold) {
		return amount.Round(smallPrecision)
	}
	return amount.Round(largePrecision)
}

// Sufficient reports whether balance covers amount. The boundary
// balance == amount is sufficient.
func Sufficient(amount, balance decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(amount)
}
