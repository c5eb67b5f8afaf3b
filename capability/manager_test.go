package capability

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newTestManager(t *testing.T) (*Manager, ed25519.PrivateKey) {
	t.Helper()
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "goprofile",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m, priv
}

func TestIssueAndParse(t *testing.T) {
	m, _ := newTestManager(t)

	grant, err := m.Issue("0xadmin", "0xholder", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	parsed, err := m.Parse(grant.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.ID != grant.ID || parsed.IssuedBy != "0xadmin" || parsed.Holder != "0xholder" {
		t.Fatalf("unexpected grant %+v", parsed)
	}

	other, err := m.Issue("0xadmin", "0xholder", time.Now())
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if other.ID == grant.ID {
		t.Fatal("expected unique token ids")
	}
}

func TestParseRejectsForeignKey(t *testing.T) {
	m, _ := newTestManager(t)
	_, otherPriv := newEdKeys(t)

	claims := Claims{By: "0xmallory", RegisteredClaims: gjwt.RegisteredClaims{
		ID:      "forged",
		Issuer:  "goprofile",
		Subject: "0xmallory",
	}}
	forged, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(otherPriv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithmAndIssuer(t *testing.T) {
	m, priv := newTestManager(t)

	hs, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, Claims{By: "a", RegisteredClaims: gjwt.RegisteredClaims{
		ID: "x", Issuer: "goprofile", Subject: "b",
	}}).SignedString([]byte("secret-secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign hs: %v", err)
	}
	if _, err := m.Parse(hs); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}

	wrongIssuer, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{By: "a", RegisteredClaims: gjwt.RegisteredClaims{
		ID: "x", Issuer: "other", Subject: "b",
	}}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(wrongIssuer); err == nil {
		t.Fatal("expected wrong issuer to be rejected")
	}
}

func TestParseRejectsMissingClaims(t *testing.T) {
	m, priv := newTestManager(t)
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, Claims{RegisteredClaims: gjwt.RegisteredClaims{
		Issuer: "goprofile",
	}}).SignedString(priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyOnlyManagerCannotIssue(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Issue("a", "b", time.Now()); err == nil {
		t.Fatal("expected verify-only manager to refuse issuing")
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("0123456789abcdef0123456789abcdef")})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	grant, err := m.Issue("a", "b", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(grant.Token); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short secret to be rejected")
	}
}

func TestKeyRotationWithVerifyKeys(t *testing.T) {
	oldPub, oldPriv := newEdKeys(t)
	newPub, newPriv := newEdKeys(t)

	oldSigner, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: oldPriv, PublicKey: oldPub, KeyID: "k1"})
	if err != nil {
		t.Fatalf("old signer: %v", err)
	}
	grant, err := oldSigner.Issue("a", "b", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    newPriv,
		PublicKey:     newPub,
		KeyID:         "k2",
		VerifyKeys:    map[string][]byte{"k1": oldPub, "k2": newPub},
	})
	if err != nil {
		t.Fatalf("rotated manager: %v", err)
	}
	if _, err := rotated.Parse(grant.Token); err != nil {
		t.Fatalf("token from retired key should still verify: %v", err)
	}
}

func TestGenerateEd25519PEMLoads(t *testing.T) {
	privPEM, pubPEM, err := GenerateEd25519PEM()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: privPEM, PublicKey: pubPEM})
	if err != nil {
		t.Fatalf("manager from PEM: %v", err)
	}
	grant, err := m.Issue("a", "b", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(grant.Token); err != nil {
		t.Fatalf("parse: %v", err)
	}
}

// FuzzParse exercises the token parser with arbitrary strings.
func FuzzParse(f *testing.F) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Issuer: "fuzz"})
	if err != nil {
		f.Fatal(err)
	}
	grant, err := m.Issue("a", "b", time.Now())
	if err != nil {
		f.Fatal(err)
	}

	f.Add(grant.Token)
	f.Add("")
	f.Add("not.a.jwt")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiJ0ZXN0In0.")

	f.Fuzz(func(t *testing.T, input string) {
		g, err := m.Parse(input)
		if err != nil {
			return
		}
		if g.Holder == "" || g.IssuedBy == "" || g.ID == "" {
			t.Fatalf("accepted token with missing claims: %+v", g)
		}
	})
}
