package stats

import (
	"encoding/json"
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolveWindow_presets(t *testing.T) {
	today := date("2024-06-10")

	tests := []struct {
		preset    string
		wantStart string
	}{
		{"4w", "2024-05-13"},
		{"8w", "2024-04-15"},
		{"12w", "2024-03-18"},
		{"26w", "2023-12-11"},
	}
	for _, tt := range tests {
		t.Run(tt.preset, func(t *testing.T) {
			win := ResolveWindow("", "", tt.preset, today)
			if !win.End.Equal(today) {
				t.Errorf("End = %v; want %v", win.End, today)
			}
			if got := win.Start.Format("2006-01-02"); got != tt.wantStart {
				t.Errorf("Start = %s; want %s", got, tt.wantStart)
			}
			wantSpan := time.Duration(presetWeeks[tt.preset]) * 7 * 24 * time.Hour
			if span := win.End.Sub(win.Start); span != wantSpan {
				t.Errorf("span = %v; want %v", span, wantSpan)
			}
		})
	}
}

func TestResolveWindow_fromTo(t *testing.T) {
	today := date("2024-06-10")

	tests := []struct {
		name      string
		from, to  string
		preset    string
		wantStart string
		wantEnd   string
	}{
		{name: "defaults", wantStart: "2024-03-18", wantEnd: "2024-06-10"},
		{name: "explicit", from: "2024-05-01", to: "2024-06-01", wantStart: "2024-05-01", wantEnd: "2024-06-01"},
		{name: "from only", from: "2024-05-01", wantStart: "2024-05-01", wantEnd: "2024-06-10"},
		{name: "to only", to: "2024-06-01", wantStart: "2024-03-18", wantEnd: "2024-06-01"},
		{name: "malformed from ignored", from: "lol", to: "2024-06-01", wantStart: "2024-03-18", wantEnd: "2024-06-01"},
		{name: "malformed both ignored", from: "2024-13-45", to: "nope", wantStart: "2024-03-18", wantEnd: "2024-06-10"},
		{name: "unknown preset falls through", from: "2024-05-01", to: "2024-06-01", preset: "99w", wantStart: "2024-05-01", wantEnd: "2024-06-01"},
		{name: "reversed bounds swapped", from: "2024-06-01", to: "2024-05-01", wantStart: "2024-05-01", wantEnd: "2024-06-01"},
		{name: "full year clamped to 26w", from: "2024-01-01", to: "2024-12-31", wantStart: "2024-07-02", wantEnd: "2024-12-31"},
		{name: "same day", from: "2024-06-01", to: "2024-06-01", wantStart: "2024-06-01", wantEnd: "2024-06-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			win := ResolveWindow(tt.from, tt.to, tt.preset, today)
			if got := win.Start.Format("2006-01-02"); got != tt.wantStart {
				t.Errorf("Start = %s; want %s", got, tt.wantStart)
			}
			if got := win.End.Format("2006-01-02"); got != tt.wantEnd {
				t.Errorf("End = %s; want %s", got, tt.wantEnd)
			}
			if win.Start.After(win.End) {
				t.Errorf("Start %v after End %v", win.Start, win.End)
			}
			if span := win.End.Sub(win.Start); span > MaxWindowWeeks*7*24*time.Hour {
				t.Errorf("span %v exceeds %d weeks", span, MaxWindowWeeks)
			}
		})
	}
}

func TestMondayOf(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-06-10", "2024-06-10"}, // Monday
		{"2024-06-12", "2024-06-10"}, // Wednesday
		{"2024-06-16", "2024-06-10"}, // Sunday
		{"2024-06-17", "2024-06-17"}, // next Monday
	}
	for _, tt := range tests {
		if got := MondayOf(date(tt.in)); got.Format("2006-01-02") != tt.want {
			t.Errorf("MondayOf(%s) = %v; want %s", tt.in, got, tt.want)
		}
	}
}

func TestWindowContains(t *testing.T) {
	win := Window{Start: date("2024-05-13"), End: date("2024-06-10")}

	if !win.Contains(date("2024-05-13")) || !win.Contains(date("2024-06-10")) {
		t.Error("window bounds must be inclusive")
	}
	if win.Contains(date("2024-05-12")) || win.Contains(date("2024-06-11")) {
		t.Error("window must exclude dates outside bounds")
	}
}

func TestWindowJSONRoundTrip(t *testing.T) {
	win := Window{Start: date("2024-06-03"), End: date("2024-06-10")}

	data, err := json.Marshal(win)
	if err != nil {
		t.Fatalf("Marshal() failed, %v", err)
	}
	want := `{"start_date":"2024-06-03","end_date":"2024-06-10"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s; want %s", data, want)
	}

	var got Window
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() failed, %v", err)
	}
	if !got.Start.Equal(win.Start) || !got.End.Equal(win.End) {
		t.Errorf("round trip = %v; want %v", got, win)
	}

	if err := json.Unmarshal([]byte(`{"start_date":"lol","end_date":"2024-06-10"}`), &got); err == nil {
		t.Error("Unmarshal() must reject malformed dates")
	}
}
