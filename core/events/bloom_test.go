package events

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestContentCreatedEvent(t *testing.T) {
	var hash [32]byte
	hash[0] = 0xab
	author := common.BytesToAddress([]byte{0x01})
	evt := ContentCreated{
		ContentID:   7,
		Author:      author,
		LikeAmount:  big.NewInt(10),
		CreatedAt:   1000,
		Deadline:    87400,
		ContentURI:  "ipfs://post",
		ContentHash: hash,
	}.Event()

	if evt.Type != TypeContentCreated {
		t.Fatalf("unexpected type %s", evt.Type)
	}
	if evt.Attributes["contentId"] != "7" {
		t.Fatalf("unexpected contentId %s", evt.Attributes["contentId"])
	}
	if evt.Attributes["likeAmount"] != "10" {
		t.Fatalf("unexpected likeAmount %s", evt.Attributes["likeAmount"])
	}
	if !strings.HasPrefix(evt.Attributes["contentHash"], "0xab") {
		t.Fatalf("unexpected contentHash %s", evt.Attributes["contentHash"])
	}

	parsed, err := ParseContentCreated(evt)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Author != author || parsed.Deadline != 87400 || parsed.ContentHash != hash {
		t.Fatalf("parsed event mismatch: %+v", parsed)
	}
	if parsed.ContentURI != "ipfs://post" {
		t.Fatalf("unexpected uri %q", parsed.ContentURI)
	}
}

func TestParseRejectsWrongType(t *testing.T) {
	evt := Followed{Follower: common.BytesToAddress([]byte{1}), Followee: common.BytesToAddress([]byte{2})}.Event()
	if _, err := ParseUnfollowed(evt); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}

func TestParseRejectsMissingAttribute(t *testing.T) {
	evt := ContentLiked{ContentID: 1, Liker: common.BytesToAddress([]byte{3}), LikeIndex: 1}.Event()
	delete(evt.Attributes, "weight")
	if _, err := ParseContentLiked(evt); err == nil {
		t.Fatalf("expected missing attribute error")
	}
}

func TestNilAmountFormatsAsZero(t *testing.T) {
	evt := LikerRewardClaimed{ContentID: 2}.Event()
	if evt.Attributes["amount"] != "0" {
		t.Fatalf("expected zero amount, got %s", evt.Attributes["amount"])
	}
}

func TestRecorderBuffersInOrder(t *testing.T) {
	var rec Recorder
	rec.Emit(Followed{})
	rec.Emit(nil)
	rec.Emit(Unfollowed{})
	got := rec.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventType() != TypeFollowed || got[1].EventType() != TypeUnfollowed {
		t.Fatalf("unexpected order: %s, %s", got[0].EventType(), got[1].EventType())
	}
	if ToTypes(got[1]).Type != TypeUnfollowed {
		t.Fatalf("ToTypes lost the event type")
	}
	rec.Reset()
	if rec.Len() != 0 {
		t.Fatalf("expected empty recorder after reset")
	}
}
