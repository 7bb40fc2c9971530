package campaign

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validDoc = `{
  "product_name": "Acme Widget",
  "target_audience": "makers",
  "features": ["fast", "cheap"],
  "recipients": ["a@example.com", "b@example.com"],
  "email_series": [
    {"day_offset": 0, "theme": "Welcome", "objective": "introduce"},
    {"day_offset": 3, "theme": "Features", "objective": "persuade"}
  ]
}`

func TestLoadValid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "campaign.json")
	if err := os.WriteFile(path, []byte(validDoc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.ProductName != "Acme Widget" {
		t.Fatalf("product = %q", c.ProductName)
	}
	if len(c.EmailSeries) != 2 || c.EmailSeries[1].DayOffset != 3 {
		t.Fatalf("unexpected series: %+v", c.EmailSeries)
	}
	if len(c.Recipients) != 2 {
		t.Fatalf("recipients = %v", c.Recipients)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "malformed json",
			doc:  `{"product_name":`,
			want: "decode",
		},
		{
			name: "unknown field",
			doc:  strings.Replace(validDoc, `"features"`, `"featuresz"`, 1),
			want: "unknown field",
		},
		{
			name: "trailing data",
			doc:  validDoc + `{}`,
			want: "trailing",
		},
		{
			name: "missing product name",
			doc:  strings.Replace(validDoc, "Acme Widget", "  ", 1),
			want: "product_name",
		},
		{
			name: "empty series",
			doc: `{"product_name":"X","target_audience":"y","features":[],
				"recipients":["a@example.com"],"email_series":[]}`,
			want: "email_series",
		},
		{
			name: "duplicate day offset",
			doc: `{"product_name":"X","target_audience":"y","features":[],
				"recipients":["a@example.com"],
				"email_series":[{"day_offset":2,"theme":"a","objective":"b"},
				{"day_offset":2,"theme":"c","objective":"d"}]}`,
			want: "duplicate day_offset",
		},
		{
			name: "negative day offset",
			doc: `{"product_name":"X","target_audience":"y","features":[],
				"recipients":["a@example.com"],
				"email_series":[{"day_offset":-1,"theme":"a","objective":"b"}]}`,
			want: "day_offset",
		},
		{
			name: "no recipients",
			doc: `{"product_name":"X","target_audience":"y","features":[],
				"recipients":[],
				"email_series":[{"day_offset":0,"theme":"a","objective":"b"}]}`,
			want: "recipient",
		},
		{
			name: "bad address",
			doc: `{"product_name":"X","target_audience":"y","features":[],
				"recipients":["not-an-address"],
				"email_series":[{"day_offset":0,"theme":"a","objective":"b"}]}`,
			want: "not an email address",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestValidateDeduplicatesRecipients(t *testing.T) {
	t.Parallel()
	c := &Campaign{
		ProductName: "X",
		Recipients:  []string{"A@Example.com", "a@example.com", " a@example.com ", "b@example.com"},
		EmailSeries: []Stage{{DayOffset: 0, Theme: "t", Objective: "o"}},
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(c.Recipients) != 2 {
		t.Fatalf("recipients = %v, want 2 logical addresses", c.Recipients)
	}
}

func TestStageAt(t *testing.T) {
	t.Parallel()
	c := &Campaign{EmailSeries: []Stage{
		{DayOffset: 0, Theme: "Welcome"},
		{DayOffset: 7, Theme: "Reminder"},
	}}

	if s, ok := c.StageAt(7); !ok || s.Theme != "Reminder" {
		t.Fatalf("StageAt(7) = %+v, %v", s, ok)
	}
	if _, ok := c.StageAt(3); ok {
		t.Fatal("StageAt(3) unexpectedly found a stage")
	}
}
