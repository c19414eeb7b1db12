package stage

import (
	"encoding/json"
	"testing"
)

func TestParseChannel(t *testing.T) {
	for _, raw := range []string{"chat", "sms", "email", "api"} {
		channel, err := ParseChannel(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if string(channel) != raw {
			t.Fatalf("parse %q got %q", raw, channel)
		}
	}
	if _, err := ParseChannel("fax"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestKindsForChatGetsFullChoreography(t *testing.T) {
	kinds := KindsFor(ChannelChat)
	want := []Kind{KindRead, KindTypingOn, KindTypingOff, KindFinal}
	if len(kinds) != len(want) {
		t.Fatalf("kinds got %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("kinds[%d] got %q want %q", i, kinds[i], want[i])
		}
	}
}

func TestKindsForNonChatIsFinalOnly(t *testing.T) {
	for _, channel := range []Channel{ChannelSMS, ChannelEmail, ChannelAPI} {
		kinds := KindsFor(channel)
		if len(kinds) != 1 || kinds[0] != KindFinal {
			t.Fatalf("%s kinds got %v", channel, kinds)
		}
	}
}

func TestActionKeys(t *testing.T) {
	action := Action{ReleaseEventID: "rel-1", TenantID: "t1", ThreadKey: "conv-1", Kind: KindFinal}
	if got := action.DedupKey(); got != "rel-1:FINAL" {
		t.Fatalf("dedup key got %q", got)
	}
	if got := action.GroupKey(); got != "t1#conv-1" {
		t.Fatalf("group key got %q", got)
	}
}

func TestActionWireFieldNames(t *testing.T) {
	action := Action{
		ReleaseEventID: "rel-1",
		TenantID:       "t1",
		ContactPK:      "contact-9",
		ConversationID: "conv-1",
		ThreadKey:      "conv-1",
		Channel:        ChannelChat,
		Kind:           KindFinal,
		Persona:        "carlos",
		ReplyText:      "Hey!",
		MessageID:      "m1",
		DueAtMS:        1700000000000,
	}
	raw, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, name := range []string{
		"releaseEventId", "tenantId", "contact_pk", "conversation_id",
		"threadKey", "channel", "kind", "persona", "replyText", "message_id", "dueAtMs",
	} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("wire field %q missing in %s", name, raw)
		}
	}
}
