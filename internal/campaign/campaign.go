// Package campaign defines the drip campaign document.
//
// A campaign is loaded once at process start and is immutable for the
// process lifetime. All schedule decisions key off Stage.DayOffset.
package campaign

import (
	"fmt"
	"strings"
)

// Campaign describes one drip series: the product being promoted, who
// receives it, and the ordered stages keyed by day offset.
type Campaign struct {
	ProductName    string   `json:"product_name"`
	TargetAudience string   `json:"target_audience"`
	Features       []string `json:"features"`
	Recipients     []string `json:"recipients"`
	EmailSeries    []Stage  `json:"email_series"`
}

// Stage is one scheduled email in the series.
// DayOffset counts whole calendar days since the campaign's start date
// and must be unique within a campaign.
type Stage struct {
	DayOffset int    `json:"day_offset"`
	Theme     string `json:"theme"`
	Objective string `json:"objective"`
}

// StageAt returns the stage scheduled for the given day offset, if any.
func (c *Campaign) StageAt(offset int) (Stage, bool) {
	for _, s := range c.EmailSeries {
		if s.DayOffset == offset {
			return s, true
		}
	}
	return Stage{}, false
}

// Offsets returns the day offsets of all stages in series order.
func (c *Campaign) Offsets() []int {
	out := make([]int, 0, len(c.EmailSeries))
	for _, s := range c.EmailSeries {
		out = append(out, s.DayOffset)
	}
	return out
}

// Validate checks structural invariants and normalizes the recipient list.
//
// Recipient addresses are deduplicated case-insensitively: two entries that
// differ only in case are one logical recipient, and sending twice to the
// same address is a defect. Duplicate day offsets are rejected outright
// because "which stage fires today" would be ambiguous.
func (c *Campaign) Validate() error {
	if strings.TrimSpace(c.ProductName) == "" {
		return fmt.Errorf("campaign: product_name is required")
	}
	if len(c.EmailSeries) == 0 {
		return fmt.Errorf("campaign: email_series must not be empty")
	}

	seen := make(map[int]struct{}, len(c.EmailSeries))
	for i, s := range c.EmailSeries {
		if s.DayOffset < 0 {
			return fmt.Errorf("campaign: email_series[%d]: day_offset must be >= 0, got %d", i, s.DayOffset)
		}
		if _, dup := seen[s.DayOffset]; dup {
			return fmt.Errorf("campaign: duplicate day_offset %d in email_series", s.DayOffset)
		}
		seen[s.DayOffset] = struct{}{}
	}

	recips := make([]string, 0, len(c.Recipients))
	known := make(map[string]struct{}, len(c.Recipients))
	for i, r := range c.Recipients {
		addr := strings.TrimSpace(r)
		if addr == "" {
			return fmt.Errorf("campaign: recipients[%d] is empty", i)
		}
		if !strings.Contains(addr[1:], "@") {
			return fmt.Errorf("campaign: recipients[%d]: %q is not an email address", i, addr)
		}
		key := strings.ToLower(addr)
		if _, dup := known[key]; dup {
			continue
		}
		known[key] = struct{}{}
		recips = append(recips, addr)
	}
	if len(recips) == 0 {
		return fmt.Errorf("campaign: at least one recipient is required")
	}
	c.Recipients = recips

	return nil
}
