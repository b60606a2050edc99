package schema

import (
	"testing"
	"time"
)

func TestSignedVolume(t *testing.T) {
	cases := []struct {
		name      string
		direction Direction
		volume    int64
		want      int64
	}{
		{"buy fill adds", DirectionLong, 5, 5},
		{"sell fill subtracts", DirectionShort, 5, -5},
		{"closing buy still adds", DirectionLong, 3, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trade := TradeData{Direction: tc.direction, Volume: tc.volume}
			if got := trade.SignedVolume(); got != tc.want {
				t.Fatalf("SignedVolume() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestOrderStatusIsActive(t *testing.T) {
	active := []OrderStatus{StatusSubmitting, StatusNotTraded, StatusPartTraded}
	terminal := []OrderStatus{StatusAllTraded, StatusCancelled, StatusRejected}

	for _, s := range active {
		if !s.IsActive() {
			t.Fatalf("%s should be active", s)
		}
	}
	for _, s := range terminal {
		if s.IsActive() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestFlatBarCarriesCloseForward(t *testing.T) {
	prev := BarData{
		Instrument: "IF2406.CFFEX",
		Timestamp:  time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC),
		Interval:   IntervalMinute,
		Open:       3900,
		High:       3910,
		Low:        3895,
		Close:      3905,
		Volume:     120,
	}
	ts := prev.Timestamp.Add(time.Minute)
	flat := prev.FlatBar(ts)

	if flat.Open != prev.Close || flat.High != prev.Close || flat.Low != prev.Close || flat.Close != prev.Close {
		t.Fatalf("flat bar must be O=H=L=C=prev close, got %+v", flat)
	}
	if !flat.Timestamp.Equal(ts) {
		t.Fatalf("flat bar timestamp = %v, want %v", flat.Timestamp, ts)
	}
	if flat.Volume != 0 {
		t.Fatalf("flat bar volume = %d, want 0", flat.Volume)
	}
}
