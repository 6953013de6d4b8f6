package telegram

import "testing"

func groupMsg(text string, entities ...Entity) *Message {
	return &Message{
		MessageID: 1,
		Chat:      &Chat{ID: -100, Type: "supergroup"},
		From:      &User{ID: 9, Username: "ada"},
		Text:      text,
		Entities:  entities,
	}
}

func TestExtractPromptPrivateAlwaysAddressed(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Chat: &Chat{ID: 5, Type: "private"},
		Text: "  write a sort in go  ",
	}
	got := ExtractPrompt(msg, "devbot", 1)
	if !got.Addressed {
		t.Fatalf("private message not addressed")
	}
	if got.Prompt != "write a sort in go" {
		t.Fatalf("prompt mismatch: got %q", got.Prompt)
	}
}

func TestExtractPromptGroupMention(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		msg        *Message
		wantHit    bool
		wantPrompt string
	}{
		{
			name:       "leading mention",
			msg:        groupMsg("@devbot fix my loop", Entity{Type: "mention", Offset: 0, Length: 7}),
			wantHit:    true,
			wantPrompt: "fix my loop",
		},
		{
			name:       "case insensitive",
			msg:        groupMsg("@DevBot fix my loop", Entity{Type: "mention", Offset: 0, Length: 7}),
			wantHit:    true,
			wantPrompt: "fix my loop",
		},
		{
			name:       "mention mid sentence",
			msg:        groupMsg("hey @devbot what is a mutex", Entity{Type: "mention", Offset: 4, Length: 7}),
			wantHit:    true,
			wantPrompt: "hey what is a mutex",
		},
		{
			name: "emoji before mention shifts utf16 offsets",
			// "😀" is two UTF-16 code units.
			msg:        groupMsg("😀 @devbot help", Entity{Type: "mention", Offset: 3, Length: 7}),
			wantHit:    true,
			wantPrompt: "😀 help",
		},
		{
			name:       "mention of someone else",
			msg:        groupMsg("@otherbot do this", Entity{Type: "mention", Offset: 0, Length: 9}),
			wantHit:    false,
			wantPrompt: "",
		},
		{
			name:       "no entities at all",
			msg:        groupMsg("just chatting about @devbot"),
			wantHit:    false,
			wantPrompt: "",
		},
		{
			name:       "bare mention",
			msg:        groupMsg("@devbot", Entity{Type: "mention", Offset: 0, Length: 7}),
			wantHit:    true,
			wantPrompt: "",
		},
		{
			name:       "bare mention with trailing spaces",
			msg:        groupMsg("@devbot   ", Entity{Type: "mention", Offset: 0, Length: 7}),
			wantHit:    true,
			wantPrompt: "",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ExtractPrompt(tc.msg, "devbot", 1)
			if got.Addressed != tc.wantHit {
				t.Fatalf("addressed mismatch: got %v want %v", got.Addressed, tc.wantHit)
			}
			if got.Prompt != tc.wantPrompt {
				t.Fatalf("prompt mismatch: got %q want %q", got.Prompt, tc.wantPrompt)
			}
		})
	}
}

func TestExtractPromptReplyToBot(t *testing.T) {
	t.Parallel()

	msg := groupMsg("and what about generics?")
	msg.ReplyTo = &Message{From: &User{ID: 77, IsBot: true}}
	got := ExtractPrompt(msg, "devbot", 77)
	if !got.Addressed {
		t.Fatalf("reply to bot not addressed")
	}
	if got.Prompt != "and what about generics?" {
		t.Fatalf("prompt mismatch: got %q", got.Prompt)
	}

	// Replying to some other user does not trigger.
	msg.ReplyTo = &Message{From: &User{ID: 78}}
	if got := ExtractPrompt(msg, "devbot", 77); got.Addressed {
		t.Fatalf("reply to other user should not address the bot")
	}
}

func TestExtractPromptUsesCaption(t *testing.T) {
	t.Parallel()

	msg := &Message{
		Chat:            &Chat{ID: -100, Type: "group"},
		Caption:         "@devbot review this screenshot",
		CaptionEntities: []Entity{{Type: "mention", Offset: 0, Length: 7}},
	}
	got := ExtractPrompt(msg, "devbot", 1)
	if !got.Addressed {
		t.Fatalf("caption mention not addressed")
	}
	if got.Prompt != "review this screenshot" {
		t.Fatalf("prompt mismatch: got %q", got.Prompt)
	}
}

func TestSliceByUTF16(t *testing.T) {
	t.Parallel()

	cases := []struct {
		s      string
		offset int
		length int
		want   string
	}{
		{"@bot hello", 0, 4, "@bot"},
		{"😀 @bot", 3, 4, "@bot"},
		{"ascii", 0, 5, "ascii"},
		{"ascii", 2, 100, "cii"},
		{"ascii", -1, 2, "as"},
		{"", 0, 3, ""},
	}
	for _, tc := range cases {
		if got := sliceByUTF16(tc.s, tc.offset, tc.length); got != tc.want {
			t.Fatalf("sliceByUTF16(%q, %d, %d) mismatch: got %q want %q", tc.s, tc.offset, tc.length, got, tc.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		user *User
		want string
	}{
		{nil, ""},
		{&User{FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace"},
		{&User{FirstName: "Ada"}, "Ada"},
		{&User{LastName: "Lovelace"}, "Lovelace"},
		{&User{Username: "ada"}, "@ada"},
		{&User{}, ""},
	}
	for _, tc := range cases {
		if got := displayName(tc.user); got != tc.want {
			t.Fatalf("displayName mismatch: got %q want %q", got, tc.want)
		}
	}
}
