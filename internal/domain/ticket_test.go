package domain

import "testing"

func TestNewTextMessageRejectsEmptyBody(t *testing.T) {
	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := NewTextMessage("Alice", body); err == nil {
			t.Fatalf("NewTextMessage(%q): expected error", body)
		}
	}
	msg, err := NewTextMessage("Alice", "hello")
	if err != nil {
		t.Fatalf("NewTextMessage: %v", err)
	}
	if msg.Kind != KindText || msg.Timestamp.IsZero() {
		t.Fatalf("message = %+v", msg)
	}
}

func TestNewMediaMessageValidation(t *testing.T) {
	if _, err := NewMediaMessage("Alice", KindText, "x", &MediaRef{URL: "u"}); err == nil {
		t.Fatal("text kind accepted as media")
	}
	if _, err := NewMediaMessage("Alice", MessageKind("sticker"), "x", &MediaRef{URL: "u"}); err == nil {
		t.Fatal("unrecognized kind accepted")
	}
	if _, err := NewMediaMessage("Alice", KindImage, "x", nil); err == nil {
		t.Fatal("nil descriptor accepted")
	}
	msg, err := NewMediaMessage("Alice", KindImage, "[Image Message]", &MediaRef{URL: "u", FileName: "p.jpg"})
	if err != nil {
		t.Fatalf("NewMediaMessage: %v", err)
	}
	if msg.Media.FileName != "p.jpg" {
		t.Fatalf("media = %+v", msg.Media)
	}
}

func TestTicketClone(t *testing.T) {
	msg, err := NewTextMessage("Alice", "hello")
	if err != nil {
		t.Fatalf("NewTextMessage: %v", err)
	}
	ticket := &Ticket{ID: "T1", Status: TicketStatusOpen, Messages: []Message{msg}}

	cp := ticket.Clone()
	cp.Messages[0].Body = "mutated"
	cp.Status = TicketStatusClosed

	if ticket.Messages[0].Body != "hello" || ticket.Status != TicketStatusOpen {
		t.Fatal("Clone shares state with the original")
	}
}

func TestTicketHasKind(t *testing.T) {
	text, _ := NewTextMessage("Alice", "hi")
	audio, _ := NewMediaMessage("Alice", KindAudio, "[Voice Message - 3s]", &MediaRef{URL: "u"})
	ticket := &Ticket{Messages: []Message{text, audio}}

	if !ticket.HasKind(KindAudio) {
		t.Fatal("HasKind missed audio")
	}
	if ticket.HasKind(KindImage, KindVideo) {
		t.Fatal("HasKind reported absent kinds")
	}
}

func TestLastMessageEmptyTicket(t *testing.T) {
	ticket := &Ticket{}
	if ticket.LastMessage() != nil {
		t.Fatal("LastMessage on empty ticket not nil")
	}
}
