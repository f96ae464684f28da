package config

import "testing"

func TestLookupKnownMainToken(t *testing.T) {
	th := newNotionalThresholds(nil)
	got := th.Lookup("BTC", "main", false)
	if got != 100_000_000 {
		t.Fatalf("expected BTC main cross threshold 100M, got %v", got)
	}
}

func TestLookupUnknownMainTokenFallsBackToSmallCap(t *testing.T) {
	th := newNotionalThresholds(nil)
	got := th.Lookup("SOMECOIN", "main", false)
	if got != mainExchangeSmallCapThresholdUSD {
		t.Fatalf("expected small cap fallback, got %v", got)
	}
}

func TestLookupIsolatedDividesCrossThreshold(t *testing.T) {
	th := newNotionalThresholds(nil)
	cross := th.Lookup("ETH", "main", false)
	isolated := th.Lookup("ETH", "main", true)
	if isolated != cross/isolatedMultiplier {
		t.Fatalf("expected isolated threshold = cross/%v, got cross=%v isolated=%v", isolatedMultiplier, cross, isolated)
	}
}

func TestLookupXYZExchangeStripsPrefix(t *testing.T) {
	th := newNotionalThresholds(nil)
	withPrefix := th.Lookup("xyz:AAPL", "xyz", false)
	withoutPrefix := th.Lookup("AAPL", "xyz", false)
	if withPrefix != withoutPrefix {
		t.Fatalf("expected prefixed and unprefixed token to resolve identically, got %v and %v", withPrefix, withoutPrefix)
	}
	if withPrefix != 3_000_000 {
		t.Fatalf("expected AAPL xyz threshold 3M, got %v", withPrefix)
	}
}

func TestLookupOtherSubExchangeFlatThreshold(t *testing.T) {
	th := newNotionalThresholds(nil)
	for _, ex := range []string{"flx", "hyna", "km"} {
		if got := th.Lookup("ANYTHING", ex, false); got != otherSubExchangeThresholdUSD {
			t.Fatalf("expected flat threshold for %s, got %v", ex, got)
		}
	}
}

func TestLookupOverrideTakesPrecedence(t *testing.T) {
	th := newNotionalThresholds([]ThresholdOverride{
		{Exchange: "main", Token: "BTC", CrossUSD: 1},
	})
	if got := th.Lookup("BTC", "main", false); got != 1 {
		t.Fatalf("expected override to take precedence, got %v", got)
	}
}

func TestStripExchangePrefixOnlyAffectsXYZ(t *testing.T) {
	if got := StripExchangePrefix("xyz:AAPL", "xyz"); got != "AAPL" {
		t.Fatalf("expected prefix stripped, got %q", got)
	}
	if got := StripExchangePrefix("BTC", "main"); got != "BTC" {
		t.Fatalf("expected no change, got %q", got)
	}
}
