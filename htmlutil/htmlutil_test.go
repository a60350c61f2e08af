package htmlutil

import (
	"testing"
	"time"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world ", "hello world"},
		{"\n\tLast Online\n", "Last Online"},
		{"", ""},
		{"one", "one"},
	}

	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInt(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"1,391", 1391, false},
		{" 42 ", 42, false},
		{"12,345,678", 12345678, false},
		{"?", 0, true},
		{"", 0, true},
		{"3.5", 0, true},
	}

	for _, tt := range tests {
		got, err := Int(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Int(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Int(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFloat(t *testing.T) {
	got, err := Float(" 152.1 ")
	if err != nil || got != 152.1 {
		t.Errorf("Float(152.1) = %v, %v", got, err)
	}
	if _, err := Float("Mean Score"); err == nil {
		t.Error("Float on non-numeric text should fail")
	}
}

func TestParseProfileDateAt(t *testing.T) {
	now := time.Date(2015, time.March, 10, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"Now", now},
		{"3 hours ago", now.Add(-3 * time.Hour)},
		{"1 minute ago", now.Add(-time.Minute)},
		{"45 seconds ago", now.Add(-45 * time.Second)},
		{"Today, 5:12 AM", time.Date(2015, time.March, 10, 5, 12, 0, 0, time.UTC)},
		{"Yesterday, 8:02 PM", time.Date(2015, time.March, 9, 20, 2, 0, 0, time.UTC)},
		{"Mar 2, 2015 5:32 PM", time.Date(2015, time.March, 2, 17, 32, 0, 0, time.UTC)},
		{"Feb 18, 2012", time.Date(2012, time.February, 18, 0, 0, 0, 0, time.UTC)},
		{"Mar 2, 1:20 AM", time.Date(2015, time.March, 2, 1, 20, 0, 0, time.UTC)},
		{"Jan 2008", time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{"2008", time.Date(2008, time.January, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseProfileDateAt(tt.in, now)
			if err != nil {
				t.Fatalf("ParseProfileDateAt(%q) error: %v", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseProfileDateAt(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "whenever", "13 fortnights ago"} {
		if _, err := ParseProfileDateAt(bad, now); err == nil {
			t.Errorf("ParseProfileDateAt(%q) should fail", bad)
		}
	}
}

func TestMediaPath(t *testing.T) {
	tests := []struct {
		href     string
		wantKind string
		wantID   int
		wantErr  bool
	}{
		{"/anime/467/Ghost_in_the_Shell:_Stand_Alone_Complex", "anime", 467, false},
		{"/manga/64/Rozen_Maiden", "manga", 64, false},
		{"/character/2055/Makise_Kurisu", "character", 2055, false},
		{"/people/118/Hanazawa_Kana", "people", 118, false},
		{"https://myanimelist.net/anime/9760/Hoshi_wo_Ou_Kodomo", "anime", 9760, false},
		{"/profile/satou", "", 0, true},
		{"", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			kind, id, err := MediaPath(tt.href)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MediaPath(%q) error = %v, wantErr %v", tt.href, err, tt.wantErr)
			}
			if kind != tt.wantKind || id != tt.wantID {
				t.Errorf("MediaPath(%q) = %q, %d; want %q, %d", tt.href, kind, id, tt.wantKind, tt.wantID)
			}
		})
	}
}

func TestClubID(t *testing.T) {
	id, err := ClubID("/clubs.php?cid=10178")
	if err != nil || id != 10178 {
		t.Errorf("ClubID = %d, %v; want 10178", id, err)
	}
	if _, err := ClubID("/clubs.php"); err == nil {
		t.Error("ClubID without cid should fail")
	}
}
