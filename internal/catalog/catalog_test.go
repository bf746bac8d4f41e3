package catalog

import "testing"

func TestDefaultCatalog(t *testing.T) {
	cat := Default()
	if cat.Size() != 10 {
		t.Fatalf("launch catalog has 10 kinds, got %d", cat.Size())
	}
	kind, ok := cat.Lookup("chronolith")
	if !ok || kind.Rarity != RarityLegendary {
		t.Fatalf("chronolith lookup wrong: %+v ok=%v", kind, ok)
	}
	if _, ok := cat.Lookup("no_such"); ok {
		t.Fatal("unknown code should miss")
	}
}

func TestNewDeduplicates(t *testing.T) {
	cat := New([]ItemKind{
		{Code: "sprout", Name: "Sprout"},
		{Code: "sprout", Name: "Duplicate"},
	})
	if cat.Size() != 1 {
		t.Fatalf("duplicate codes should collapse, size=%d", cat.Size())
	}
	kind, _ := cat.Lookup("sprout")
	if kind.Name != "Sprout" {
		t.Fatalf("first entry wins, got %q", kind.Name)
	}
}

func TestCurrencyCap(t *testing.T) {
	if limit, ok := CurrencyCap(CurrencyCoins); !ok || limit != CoinsCap {
		t.Fatalf("coins cap wrong: %d ok=%v", limit, ok)
	}
	if limit, ok := CurrencyCap(CurrencyGems); !ok || limit != GemsCap {
		t.Fatalf("gems cap wrong: %d ok=%v", limit, ok)
	}
	if _, ok := CurrencyCap("shells"); ok {
		t.Fatal("unknown currency should miss")
	}
}

func TestCodesIsACopy(t *testing.T) {
	cat := Default()
	codes := cat.Codes()
	codes[0] = "tampered"
	if cat.Codes()[0] == "tampered" {
		t.Fatal("Codes must return a copy")
	}
}
