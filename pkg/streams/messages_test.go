package streams_test

import (
	"context"
	"testing"

	"github.com/iotaledger/streams-go/pkg/identity"
	"github.com/iotaledger/streams-go/pkg/message"
	"github.com/iotaledger/streams-go/pkg/streams"
	"github.com/iotaledger/streams-go/pkg/transport/memtransport"
	"github.com/iotaledger/streams-go/pkg/user"
)

func mustUser(t *testing.T, seed string, tr *memtransport.Transport) *user.User {
	t.Helper()
	u, err := user.New([]byte(seed), tr)
	if err != nil {
		t.Fatalf("New(%q): %v", seed, err)
	}
	return u
}

func TestMessagesBasicTraversalAndResume(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()
	author := mustUser(t, "author-seed", tr)
	subscriber := mustUser(t, "subscriber-seed", tr)

	annAddr, err := author.CreateStream(ctx, "root")
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if _, err := subscriber.ReceiveAnnouncement(ctx, annAddr, "root", author.X25519Public()); err != nil {
		t.Fatalf("ReceiveAnnouncement: %v", err)
	}

	if _, err := author.SendSignedPacket(ctx, "root", []byte("one"), nil); err != nil {
		t.Fatalf("SendSignedPacket 1: %v", err)
	}
	if _, err := author.SendSignedPacket(ctx, "root", []byte("two"), nil); err != nil {
		t.Fatalf("SendSignedPacket 2: %v", err)
	}

	it := streams.New(subscriber)

	var publics []string
	for i := 0; i < 2; i++ {
		item, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if item == nil || item.Message == nil {
			t.Fatalf("expected a message at step %d, got %+v", i, item)
		}
		if item.Message.Body.Kind != message.KindSignedPacket {
			t.Fatalf("unexpected body kind %v", item.Message.Body.Kind)
		}
		publics = append(publics, string(item.Message.Body.SignedPacket.PublicPayload))
	}
	if publics[0] != "one" || publics[1] != "two" {
		t.Fatalf("messages out of link order: %v", publics)
	}

	item, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("Next at exhaustion: %v", err)
	}
	if item != nil {
		t.Fatalf("expected (nil, nil) once drained, got %+v", item)
	}

	if _, err := author.SendSignedPacket(ctx, "root", []byte("three"), nil); err != nil {
		t.Fatalf("SendSignedPacket 3: %v", err)
	}
	item, err = it.Next(ctx)
	if err != nil {
		t.Fatalf("Next after resume: %v", err)
	}
	if item == nil || item.Message == nil {
		t.Fatalf("expected a resumed message, got %+v", item)
	}
	if string(item.Message.Body.SignedPacket.PublicPayload) != "three" {
		t.Fatalf("unexpected resumed payload %q", item.Message.Body.SignedPacket.PublicPayload)
	}
}

func TestMessagesYieldsOrphanForExcludedKeyload(t *testing.T) {
	ctx := context.Background()
	tr := memtransport.New()
	author := mustUser(t, "author-seed", tr)
	subA := mustUser(t, "sub-a-seed", tr)
	subB := mustUser(t, "sub-b-seed", tr)

	annAddr, err := author.CreateStream(ctx, "root")
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if _, err := subA.ReceiveAnnouncement(ctx, annAddr, "root", author.X25519Public()); err != nil {
		t.Fatalf("subA ReceiveAnnouncement: %v", err)
	}
	if _, err := subB.ReceiveAnnouncement(ctx, annAddr, "root", author.X25519Public()); err != nil {
		t.Fatalf("subB ReceiveAnnouncement: %v", err)
	}

	subAAddr, err := subA.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subA Subscribe: %v", err)
	}
	subBAddr, err := subB.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subB Subscribe: %v", err)
	}
	if _, err := author.ReceiveMessage(ctx, subAAddr, "root", subA.Identifier()); err != nil {
		t.Fatalf("author receive subA subscription: %v", err)
	}
	if _, err := author.ReceiveMessage(ctx, subBAddr, "root", subB.Identifier()); err != nil {
		t.Fatalf("author receive subB subscription: %v", err)
	}
	if err := author.GrantPermission(subA.Identifier(), identity.PermissionReadWrite); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}

	if _, _, err := author.SendKeyload(ctx, "root", []identity.Identifier{subA.Identifier()}, nil); err != nil {
		t.Fatalf("SendKeyload: %v", err)
	}
	if _, err := author.SendSignedPacket(ctx, "root", []byte("gated"), nil); err != nil {
		t.Fatalf("SendSignedPacket: %v", err)
	}

	it := streams.New(subB)

	klItem, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("Next (keyload): %v", err)
	}
	if klItem == nil || klItem.Message == nil || klItem.Message.Body.Kind != message.KindKeyload {
		t.Fatalf("expected a keyload message, got %+v", klItem)
	}

	spItem, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("Next (gated packet): %v", err)
	}
	if spItem == nil || spItem.Orphan == nil {
		t.Fatalf("expected an orphan item, got %+v", spItem)
	}
	if !spItem.Orphan.Publisher.Equal(author.Identifier()) {
		t.Fatalf("orphan publisher mismatch: got %v want %v", spItem.Orphan.Publisher, author.Identifier())
	}
}
