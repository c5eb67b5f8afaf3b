package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/goProfile/facts"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testOwner = "0xowner"
	testStart = int64(1_700_000_000_000)
)

func newProfileStoreTest(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewStore(rdb, "gp", "gp:facts"), rdb
}

func seedProfile(t *testing.T, store *Store, rdb *redis.Client, id string) *Record {
	t.Helper()
	rec := &Record{
		ID:             id,
		Owner:          testOwner,
		Nickname:       "alice",
		Bio:            "hello",
		IdentityKey:    [32]byte{7},
		SessionStoreID: "store-" + id,
		CreatedAt:      testStart,
		UpdatedAt:      testStart,
	}
	ctx := context.Background()
	if _, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		store.QueueCreate(ctx, pipe, rec)
		return nil
	}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return rec
}

func readFacts(t *testing.T, rdb *redis.Client) []facts.Fact {
	t.Helper()
	all, err := facts.NewLog(rdb, "gp:facts").Range(context.Background(), "-", "+", 0)
	if err != nil {
		t.Fatalf("read facts: %v", err)
	}
	return all
}

func TestGetRoundTrip(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	want := seedProfile(t, store, rdb, "p1")

	got, err := store.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Owner != want.Owner || got.Nickname != want.Nickname || got.IdentityKey != want.IdentityKey {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Tier != TierFree || got.Verified || got.Avatar.Kind != AvatarNone {
		t.Fatalf("unexpected defaults %+v", got)
	}

	ids, err := store.IDsByOwner(context.Background(), testOwner)
	if err != nil || len(ids) != 1 || ids[0] != "p1" {
		t.Fatalf("owner index: %v %v", ids, err)
	}

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetNicknameOwnerGate(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")
	ctx := context.Background()

	if _, err := store.SetNickname(ctx, "p1", "0xintruder", "mallory", testStart+1); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if len(readFacts(t, rdb)) != 0 {
		t.Fatal("rejected update emitted a fact")
	}

	rec, err := store.SetNickname(ctx, "p1", testOwner, "bob", testStart+5)
	if err != nil {
		t.Fatalf("set nickname: %v", err)
	}
	if rec.Nickname != "bob" || rec.UpdatedAt != testStart+5 {
		t.Fatalf("unexpected record %+v", rec)
	}

	fs := readFacts(t, rdb)
	if len(fs) != 1 || fs[0].Type != facts.ProfileUpdated || fs[0].Attrs["field"] != FieldNickname {
		t.Fatalf("unexpected facts %+v", fs)
	}
}

func TestUpdatedAtNeverMovesBackwards(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")

	rec, err := store.SetBio(context.Background(), "p1", testOwner, "", testStart-1000)
	if err != nil {
		t.Fatalf("set bio: %v", err)
	}
	if rec.UpdatedAt != testStart {
		t.Fatalf("updated_at moved backwards: %d", rec.UpdatedAt)
	}
	if rec.Bio != "" {
		t.Fatalf("expected empty bio, got %q", rec.Bio)
	}
}

func TestAvatarVariantsAreExclusive(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")
	ctx := context.Background()

	rec, err := store.SetAvatarURL(ctx, "p1", testOwner, "https://img.example/a.png", testStart)
	if err != nil {
		t.Fatalf("set url: %v", err)
	}
	if url, ok := rec.Avatar.URL(); !ok || url != "https://img.example/a.png" {
		t.Fatalf("expected url avatar, got %+v", rec.Avatar)
	}

	rec, asset, err := store.MintAsset(ctx, "p1", testOwner, "asset-1", AssetMetadata{
		ImageURL: "https://img.example/nft.png",
		Name:     "Portrait",
	}, testStart+1)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if id, ok := rec.Avatar.AssetID(); !ok || id != "asset-1" {
		t.Fatalf("expected asset avatar, got %+v", rec.Avatar)
	}
	if _, ok := rec.Avatar.URL(); ok {
		t.Fatal("url variant survived mint")
	}
	if asset.Owner != testOwner || asset.Name != "Portrait" {
		t.Fatalf("unexpected asset %+v", asset)
	}

	rec, err = store.SetAvatarURL(ctx, "p1", testOwner, "https://img.example/b.png", testStart+2)
	if err != nil {
		t.Fatalf("set url again: %v", err)
	}
	if _, ok := rec.Avatar.AssetID(); ok {
		t.Fatal("asset variant survived url update")
	}

	var minted, updates int
	for _, f := range readFacts(t, rdb) {
		switch f.Type {
		case facts.AssetMinted:
			minted++
		case facts.ProfileUpdated:
			updates++
		}
	}
	if minted != 1 || updates != 3 {
		t.Fatalf("expected 1 mint and 3 updates, got %d and %d", minted, updates)
	}
}

func TestMintRejectsNonOwner(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")
	ctx := context.Background()

	if _, _, err := store.MintAsset(ctx, "p1", "0xintruder", "asset-1", AssetMetadata{ImageURL: "u", Name: "n"}, testStart); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := store.GetAsset(ctx, "asset-1"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("asset created by rejected mint: %v", err)
	}
}

func TestSetVerifiedCapabilityGate(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")
	ctx := context.Background()

	rec, err := store.SetVerified(ctx, "p1", CapabilityGate("0xadmin"), true, testStart+1)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !rec.Verified {
		t.Fatal("expected verified")
	}
	rec, err = store.SetVerified(ctx, "p1", CapabilityGate("0xadmin2"), false, testStart+2)
	if err != nil || rec.Verified {
		t.Fatalf("unverify: %+v %v", rec, err)
	}

	fs := readFacts(t, rdb)
	if len(fs) != 2 || fs[1].Attrs["actor"] != "0xadmin2" || fs[1].Attrs["verified"] != "false" {
		t.Fatalf("unexpected facts %+v", fs)
	}

	if _, err := store.SetVerified(ctx, "missing", CapabilityGate("0xadmin"), true, testStart); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetTierRecordsOldAndNew(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")

	rec, old, err := store.SetTier(context.Background(), "p1", CapabilityGate("0xadmin"), TierPremium, testStart+1)
	if err != nil {
		t.Fatalf("set tier: %v", err)
	}
	if old != TierFree || rec.Tier != TierPremium {
		t.Fatalf("unexpected tiers old=%v new=%v", old, rec.Tier)
	}

	fs := readFacts(t, rdb)
	if len(fs) != 1 || fs[0].Type != facts.MembershipChanged {
		t.Fatalf("unexpected facts %+v", fs)
	}
	if fs[0].Attrs["old_tier"] != "0" || fs[0].Attrs["new_tier"] != "1" {
		t.Fatalf("unexpected tier attrs %v", fs[0].Attrs)
	}
}

func TestTransferAssetLeavesProfile(t *testing.T) {
	store, rdb := newProfileStoreTest(t)
	seedProfile(t, store, rdb, "p1")
	ctx := context.Background()

	if _, _, err := store.MintAsset(ctx, "p1", testOwner, "asset-1", AssetMetadata{ImageURL: "u", Name: "n"}, testStart); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := store.TransferAsset(ctx, "asset-1", "0xintruder", "0xother", testStart); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	asset, err := store.TransferAsset(ctx, "asset-1", testOwner, "0xother", testStart+1)
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if asset.Owner != "0xother" {
		t.Fatalf("expected new owner, got %s", asset.Owner)
	}

	rec, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if id, ok := rec.Avatar.AssetID(); !ok || id != "asset-1" {
		t.Fatalf("profile avatar changed by transfer: %+v", rec.Avatar)
	}

	if _, err := store.TransferAsset(ctx, "missing", testOwner, "0xother", testStart); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}
