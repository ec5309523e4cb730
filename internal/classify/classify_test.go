package classify

import (
	"errors"
	"testing"

	"github.com/psemi/newshub/internal/collector"
	"github.com/psemi/newshub/internal/config"
)

func testClassifier() *Classifier {
	return New(config.DefaultTaxonomy(), config.DefaultSections())
}

func TestFieldsResolvesEachAxisIndependently(t *testing.T) {
	c := testClassifier()
	it := collector.Item{
		Title:   "TSMC starts SiC wafer production for EV inverters",
		URL:     "https://example.com/a",
		Excerpt: "advanced packaging line also planned",
	}

	a, err := c.Fields(it)
	if err != nil {
		t.Fatalf("Fields error: %v", err)
	}
	if a.Device != "power" {
		t.Fatalf("Device = %q, want power", a.Device)
	}
	if a.Process != "packaging" {
		t.Fatalf("Process = %q, want packaging", a.Process)
	}
	if a.Market != "automotive" {
		t.Fatalf("Market = %q, want automotive", a.Market)
	}
	if a.Industry != "foundry" {
		t.Fatalf("Industry = %q, want foundry", a.Industry)
	}
	if a.Primary != "power" {
		t.Fatalf("Primary = %q, want power (first populated axis)", a.Primary)
	}
}

func TestFieldsFirstLeafInTableOrderWins(t *testing.T) {
	c := testClassifier()
	// Matches both "power" (sic) and "memory" (dram); power is listed
	// first on the device axis.
	it := collector.Item{Title: "SiC power stage beside a DRAM controller", URL: "https://example.com/b"}

	a, err := c.Fields(it)
	if err != nil {
		t.Fatalf("Fields error: %v", err)
	}
	if a.Device != "power" {
		t.Fatalf("Device = %q, want power (first matching leaf)", a.Device)
	}
}

func TestFieldsFallsBackToGeneral(t *testing.T) {
	c := testClassifier()
	it := collector.Item{Title: "weekly staff picks", URL: "https://example.com/c"}

	a, err := c.Fields(it)
	if err != nil {
		t.Fatalf("Fields error: %v", err)
	}
	if !a.IsGeneral() {
		t.Fatalf("assignment = %+v, want general fallback", a)
	}
	if got := a.Fields(); len(got) != 1 || got[0] != config.GeneralField {
		t.Fatalf("Fields() = %v, want [general]", got)
	}
}

func TestFieldsIdempotent(t *testing.T) {
	c := testClassifier()
	it := collector.Item{Title: "GaN fast charger teardown", URL: "https://example.com/d"}

	first, err := c.Fields(it)
	if err != nil {
		t.Fatalf("Fields error: %v", err)
	}
	for i := 0; i < 3; i++ {
		again, err := c.Fields(it)
		if err != nil {
			t.Fatalf("Fields error on repeat: %v", err)
		}
		if again != first {
			t.Fatalf("assignment changed between calls: %+v vs %+v", first, again)
		}
	}
}

func TestFieldsRejectsIncompleteItems(t *testing.T) {
	c := testClassifier()

	var ce *ClassificationError
	if _, err := c.Fields(collector.Item{URL: "https://example.com/e"}); !errors.As(err, &ce) {
		t.Fatalf("missing title: err = %v, want ClassificationError", err)
	}
	if _, err := c.Fields(collector.Item{Title: "no url"}); !errors.As(err, &ce) {
		t.Fatalf("missing url: err = %v, want ClassificationError", err)
	}
}

func TestSectionRouting(t *testing.T) {
	c := testClassifier()

	cases := []struct {
		name string
		item collector.Item
		want string
	}{
		{"social kind always sns", collector.Item{Title: "SiC news", SourceKind: collector.KindSocial}, SectionSNS},
		{"tech keyword", collector.Item{Title: "new IGBT module family"}, SectionTech},
		{"application keyword", collector.Item{Title: "bidirectional EV charging pilot"}, SectionApplication},
		{"vendor name", collector.Item{Title: "Renesas opens design center"}, SectionVendor},
		{"no match", collector.Item{Title: "conference schedule update"}, SectionGeneral},
	}
	for _, tc := range cases {
		if got := c.Section(tc.item); got != tc.want {
			t.Fatalf("%s: Section = %q, want %q", tc.name, got, tc.want)
		}
	}
}
