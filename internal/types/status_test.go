package types

import "testing"

func TestStatusAdvance(t *testing.T) {
	tests := []struct {
		from, to Status
		want     Status
		moved    bool
	}{
		{StatusSent, StatusDelivered, StatusDelivered, true},
		{StatusSent, StatusRead, StatusRead, true},
		{StatusDelivered, StatusRead, StatusRead, true},
		{StatusRead, StatusDelivered, StatusRead, false},
		{StatusDelivered, StatusSent, StatusDelivered, false},
		{StatusRead, StatusRead, StatusRead, false},
		{"", StatusSent, StatusSent, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			got, moved := tt.from.Advance(tt.to)
			if got != tt.want || moved != tt.moved {
				t.Errorf("Advance = (%s, %v), want (%s, %v)", got, moved, tt.want, tt.moved)
			}
		})
	}
}

func TestTicks(t *testing.T) {
	if StatusSent.Ticks() != "✓" {
		t.Errorf("sent ticks = %q", StatusSent.Ticks())
	}
	if StatusRead.Ticks() != "✓✓" {
		t.Errorf("read ticks = %q", StatusRead.Ticks())
	}
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	if p.Name != "The Boss" {
		t.Errorf("name = %q, want The Boss", p.Name)
	}
}
