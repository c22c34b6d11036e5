package safety

import "testing"

func TestFilterApply(t *testing.T) {
	filter := NewFilter([]string{"傻逼", "fuck", "badword"})

	tests := []struct {
		name    string
		body    string
		want    string
		flagged bool
	}{
		{
			name:    "clean body untouched",
			body:    "你好，请问有什么可以帮您？",
			want:    "你好，请问有什么可以帮您？",
			flagged: false,
		},
		{
			name:    "cjk term masked",
			body:    "你这个傻逼客服",
			want:    "你这个**客服",
			flagged: true,
		},
		{
			name:    "ascii term masked",
			body:    "fuck this",
			want:    "**** this",
			flagged: true,
		},
		{
			name:    "multiple hits",
			body:    "傻逼 and fuck",
			want:    "** and ****",
			flagged: true,
		},
		{
			name:    "term at end of body",
			body:    "you badword",
			want:    "you *******",
			flagged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, flagged := filter.Apply(tt.body)
			if got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.body, got, tt.want)
			}
			if flagged != tt.flagged {
				t.Errorf("Apply(%q) flagged = %v, want %v", tt.body, flagged, tt.flagged)
			}
		})
	}
}

func TestFilterPrefersLongestMatch(t *testing.T) {
	filter := NewFilter([]string{"bad", "badword"})

	got, flagged := filter.Apply("a badword here")
	if !flagged {
		t.Fatal("expected a match")
	}
	// "badword" (7 runes) masks fully rather than stopping at "bad".
	if got != "a ******* here" {
		t.Fatalf("Apply = %q, want %q", got, "a ******* here")
	}
}

func TestDetectCardOrderLookup(t *testing.T) {
	card := DetectCard("请问如何查询订单", "user-42")
	if card == nil {
		t.Fatal("expected a card for the order lookup trigger")
	}
	if len(card.Options) != 1 {
		t.Fatalf("got %d card options, want 1", len(card.Options))
	}

	opt := card.Options[0]
	if opt.Label != "查询订单" {
		t.Errorf("label = %q, want %q", opt.Label, "查询订单")
	}
	if opt.Verb != "GET" {
		t.Errorf("verb = %q, want GET", opt.Verb)
	}
	if opt.Target != "/order/list?userId=user-42&token={token}" {
		t.Errorf("target = %q, sender id not templated or token placeholder lost", opt.Target)
	}
}

func TestDetectCardNoTrigger(t *testing.T) {
	if card := DetectCard("今天天气不错", "user-42"); card != nil {
		t.Fatalf("expected nil card, got %+v", card)
	}
}

func TestDetectCardMultipleTriggers(t *testing.T) {
	card := DetectCard("我想查询订单然后申请退款", "user-42")
	if card == nil {
		t.Fatal("expected a card")
	}
	if len(card.Options) != 2 {
		t.Fatalf("got %d options, want 2", len(card.Options))
	}
}
