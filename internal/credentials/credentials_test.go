package credentials

import (
	"testing"

	"repostack/internal/location"
)

func mustLocation(t *testing.T, url, id string) location.Location {
	t.Helper()
	loc, err := location.New(url, id)
	if err != nil {
		t.Fatalf("location.New(%q) returned error: %v", url, err)
	}
	return loc
}

func TestResolveLongestPrefixWins(t *testing.T) {
	settings := NewMapSettings()
	if err := settings.SetForURL("https://repo.example.com/", Credentials{Username: "outer", Password: "o"}); err != nil {
		t.Fatal(err)
	}
	if err := settings.SetForURL("https://repo.example.com/private/", Credentials{Username: "inner", Password: "i"}); err != nil {
		t.Fatal(err)
	}

	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/", ""),
		mustLocation(t, "https://repo.example.com/private/", ""),
	})
	r := NewResolver(settings, ids)

	creds, ok := r.Resolve("https://repo.example.com/private/artifacts.json")
	if !ok {
		t.Fatal("Resolve found no credentials")
	}
	if creds.Username != "inner" {
		t.Errorf("Resolve picked %q, want the longer prefix match %q", creds.Username, "inner")
	}

	creds, ok = r.Resolve("https://repo.example.com/public/metadata.json")
	if !ok {
		t.Fatal("Resolve found no credentials for outer prefix")
	}
	if creds.Username != "outer" {
		t.Errorf("Resolve picked %q, want %q", creds.Username, "outer")
	}
}

func TestResolveSkipsPrefixesWithoutCredentials(t *testing.T) {
	// The longest matching location has no saved credentials; resolution
	// falls through to the next-longest match instead of giving up.
	settings := NewMapSettings()
	if err := settings.SetForURL("https://repo.example.com/", Credentials{Token: "outer-token"}); err != nil {
		t.Fatal(err)
	}

	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/", ""),
		mustLocation(t, "https://repo.example.com/private/", ""),
	})
	r := NewResolver(settings, ids)

	creds, ok := r.Resolve("https://repo.example.com/private/file")
	if !ok {
		t.Fatal("Resolve found no credentials")
	}
	if creds.Token != "outer-token" {
		t.Errorf("Resolve = %q, want fallthrough to outer-token", creds.Token)
	}
}

func TestResolveNoMatch(t *testing.T) {
	settings := NewMapSettings()
	if err := settings.SetForURL("https://repo.example.com/", Credentials{Token: "t"}); err != nil {
		t.Fatal(err)
	}

	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/", ""),
	})
	r := NewResolver(settings, ids)

	if _, ok := r.Resolve("https://other.example.com/file"); ok {
		t.Error("Resolve matched an unrelated host")
	}
}

// countingSettings records how often it is consulted.
type countingSettings struct {
	calls int
}

func (c *countingSettings) CredentialsFor(location.Location) (Credentials, bool) {
	c.calls++
	return Credentials{}, false
}

func TestResolveNilSettingsShortCircuits(t *testing.T) {
	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/", "central"),
	})
	r := NewResolver(nil, ids)

	if _, ok := r.Resolve("https://repo.example.com/file"); ok {
		t.Error("Resolve with nil settings returned credentials")
	}
}

func TestResolveConsultsOnlyMatchingLocations(t *testing.T) {
	counting := &countingSettings{}
	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/", ""),
		mustLocation(t, "https://other.example.com/", ""),
	})
	r := NewResolver(counting, ids)

	r.Resolve("https://repo.example.com/file")
	if counting.calls != 1 {
		t.Errorf("settings consulted %d times, want 1 (only the matching prefix)", counting.calls)
	}
}

func TestResolveDeterministicTieBreak(t *testing.T) {
	// Two equal-length prefixes both match; repeated resolutions must
	// pick the same one every time.
	settings := NewMapSettings()
	if err := settings.SetForURL("https://repo.example.com/aa/", Credentials{Username: "first"}); err != nil {
		t.Fatal(err)
	}

	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/ab/", ""),
		mustLocation(t, "https://repo.example.com/aa/", ""),
	})
	r := NewResolver(settings, ids)

	for i := 0; i < 10; i++ {
		creds, ok := r.Resolve("https://repo.example.com/aa/file")
		if !ok || creds.Username != "first" {
			t.Fatalf("iteration %d: Resolve = (%+v, %v), want stable first", i, creds, ok)
		}
	}
}

func TestResolveMatchesRecordedLocations(t *testing.T) {
	// Credentials saved per id apply once the URL-to-id mapping has been
	// recorded by a repository load.
	settings := NewMapSettings()
	settings.SetForID("central", Credentials{Token: "id-token"})

	ids := location.NewIDManager(nil)
	r := NewResolver(settings, ids)

	if _, ok := r.Resolve("https://repo.example.com/file"); ok {
		t.Fatal("Resolve matched before the location was recorded")
	}

	if err := ids.Record("https://repo.example.com/", "central"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	creds, ok := r.Resolve("https://repo.example.com/file")
	if !ok {
		t.Fatal("Resolve found no credentials after Record")
	}
	if creds.Token != "id-token" {
		t.Errorf("Resolve = %q, want id-token", creds.Token)
	}
}

func TestResolveNormalizesRequestURI(t *testing.T) {
	settings := NewMapSettings()
	if err := settings.SetForURL("https://repo.example.com/releases/", Credentials{Token: "t"}); err != nil {
		t.Fatal(err)
	}

	ids := location.NewIDManager([]location.Location{
		mustLocation(t, "https://repo.example.com/releases/", ""),
	})
	r := NewResolver(settings, ids)

	creds, ok := r.Resolve("HTTPS://REPO.EXAMPLE.COM/releases/sub/../artifacts.json")
	if !ok {
		t.Fatal("Resolve did not normalize the request URI before matching")
	}
	if creds.Token != "t" {
		t.Errorf("Resolve = %q, want t", creds.Token)
	}
}

func TestMapSettingsIDTakesPrecedence(t *testing.T) {
	settings := NewMapSettings()
	if err := settings.SetForURL("https://repo.example.com/", Credentials{Token: "by-url"}); err != nil {
		t.Fatal(err)
	}
	settings.SetForID("central", Credentials{Token: "by-id"})

	creds, ok := settings.CredentialsFor(mustLocation(t, "https://repo.example.com/", "central"))
	if !ok {
		t.Fatal("CredentialsFor found nothing")
	}
	if creds.Token != "by-id" {
		t.Errorf("CredentialsFor = %q, want id lookup to win", creds.Token)
	}
}
