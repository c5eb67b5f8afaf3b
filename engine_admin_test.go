package goProfile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/goProfile/capability"
	"github.com/MrEthical07/goProfile/facts"
)

func TestBootstrapAdminOnlyOnce(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	c := bootstrap(t, engine, "root")
	if c.Issuer() != "root" || c.Holder() != "root" || c.ID() == "" || c.Token() == "" {
		t.Fatalf("unexpected bootstrap cap: %+v", c)
	}

	if _, err := engine.BootstrapAdmin(context.Background(), "other"); !errors.Is(err, ErrAdminAlreadyBootstrapped) {
		t.Fatalf("expected ErrAdminAlreadyBootstrapped, got %v", err)
	}
	if _, err := engine.BootstrapAdmin(context.Background(), ""); !errors.Is(err, ErrInvalidPrincipal) {
		t.Fatalf("expected ErrInvalidPrincipal, got %v", err)
	}
}

func TestBootstrapSurvivesEngineRestart(t *testing.T) {
	engine, _, rdb := newTestEngine(t, nil)
	bootstrap(t, engine, "root")

	cfg := testConfig(t)
	second, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer second.Close()

	if _, err := second.BootstrapAdmin(context.Background(), "root"); !errors.Is(err, ErrAdminAlreadyBootstrapped) {
		t.Fatalf("expected ErrAdminAlreadyBootstrapped, got %v", err)
	}
}

func TestIndependentlyIssuedCapsBothAuthorize(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	res := registerAlice(t, engine)
	root := bootstrap(t, engine, "root")

	capA, err := engine.IssueAdminCap(as("root"), root, "moderator-a")
	if err != nil {
		t.Fatalf("issue a: %v", err)
	}
	capB, err := engine.IssueAdminCap(as("root"), root, "moderator-b")
	if err != nil {
		t.Fatalf("issue b: %v", err)
	}
	if capA.ID() == capB.ID() {
		t.Fatalf("capabilities must have distinct ids")
	}
	if capA.Issuer() != "root" || capA.Holder() != "moderator-a" {
		t.Fatalf("unexpected cap a: issuer %q holder %q", capA.Issuer(), capA.Holder())
	}

	p, err := engine.VerifyUser(as("moderator-a"), capA, res.Profile.ID)
	if err != nil || !p.Verified {
		t.Fatalf("verify with cap a: %v", err)
	}
	p, err = engine.UnverifyUser(as("moderator-b"), capB, res.Profile.ID)
	if err != nil || p.Verified {
		t.Fatalf("unverify with cap b: %v", err)
	}

	// Transitive issuance: a delegated cap can mint further caps.
	capC, err := engine.IssueAdminCap(as("moderator-a"), capA, "moderator-c")
	if err != nil {
		t.Fatalf("transitive issue: %v", err)
	}
	if _, err := engine.VerifyUser(as("moderator-c"), capC, res.Profile.ID); err != nil {
		t.Fatalf("verify with transitive cap: %v", err)
	}

	fs := subjectFacts(t, engine, res.Profile.ID)
	var actors []string
	for _, f := range fs {
		if f.Type == facts.VerificationStatusChanged {
			actors = append(actors, f.Attrs["actor"])
		}
	}
	if len(actors) != 3 || actors[0] != "moderator-a" || actors[1] != "moderator-b" || actors[2] != "moderator-c" {
		t.Fatalf("unexpected verification actors: %v", actors)
	}

	// Issuing mints new caps; the issuer's own cap keeps working.
	if _, err := engine.UnverifyUser(as("root"), root, res.Profile.ID); err != nil {
		t.Fatalf("issuer cap after issuing: %v", err)
	}
}

func TestCapabilityGateRejectsZeroAndForgedCaps(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	res := registerAlice(t, engine)

	if _, err := engine.VerifyUser(as("x"), nil, res.Profile.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("nil cap: expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.VerifyUser(as("x"), &AdminCap{}, res.Profile.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("zero cap: expected ErrUnauthorized, got %v", err)
	}

	priv, _, err := capability.GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	foreign, err := capability.NewManager(capability.Config{
		SigningMethod: capability.MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "goprofile",
	})
	if err != nil {
		t.Fatalf("foreign manager: %v", err)
	}
	grant, err := foreign.Issue("mallory", "mallory", time.UnixMilli(testStart))
	if err != nil {
		t.Fatalf("foreign issue: %v", err)
	}
	if _, err := engine.ParseAdminCap(grant.Token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("forged token: expected ErrUnauthorized, got %v", err)
	}
	forged := &AdminCap{id: grant.ID, holder: "mallory", issuer: "mallory", token: grant.Token}
	if _, err := engine.UpdateMembershipTier(as("mallory"), forged, res.Profile.ID, 1); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("forged cap: expected ErrUnauthorized, got %v", err)
	}

	p, err := engine.GetProfile(context.Background(), res.Profile.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.Verified || p.Tier != TierFree {
		t.Fatalf("rejected caps must not change the profile: %+v", p)
	}
}

func TestParseAdminCapRoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	root := bootstrap(t, engine, "root")

	parsed, err := engine.ParseAdminCap(root.Token())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ID() != root.ID() || parsed.Holder() != "root" || parsed.Issuer() != "root" {
		t.Fatalf("parsed cap mismatch: %+v", parsed)
	}
	if _, err := engine.ParseAdminCap("not-a-token"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestUpdateMembershipTier(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	res := registerAlice(t, engine)
	root := bootstrap(t, engine, "root")

	if _, err := engine.UpdateMembershipTier(as("root"), root, res.Profile.ID, 2); !errors.Is(err, ErrInvalidEnumValue) {
		t.Fatalf("expected ErrInvalidEnumValue, got %v", err)
	}

	p, err := engine.UpdateMembershipTier(as("root"), root, res.Profile.ID, 1)
	if err != nil {
		t.Fatalf("update tier: %v", err)
	}
	if p.Tier != TierPremium {
		t.Fatalf("expected premium, got %v", p.Tier)
	}

	if _, err := engine.UpdateMembershipTier(as("root"), root, "missing", 1); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}

	fs := subjectFacts(t, engine, res.Profile.ID)
	last := fs[len(fs)-1]
	if last.Type != facts.MembershipChanged || last.Attrs["old_tier"] != "0" || last.Attrs["new_tier"] != "1" {
		t.Fatalf("unexpected membership fact: %+v", last)
	}
	if last.Actor != "root" {
		t.Fatalf("expected actor root, got %q", last.Actor)
	}
}

func TestIssueAdminCapRequiresCallerAndRecipient(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	root := bootstrap(t, engine, "root")

	if _, err := engine.IssueAdminCap(context.Background(), root, "bob"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.IssueAdminCap(as("root"), root, ""); !errors.Is(err, ErrInvalidPrincipal) {
		t.Fatalf("expected ErrInvalidPrincipal, got %v", err)
	}
	if got := engine.MetricsSnapshot().Counters[MetricAdminCapIssued]; got != 1 {
		t.Fatalf("expected only the bootstrap cap counted, got %d", got)
	}
}
