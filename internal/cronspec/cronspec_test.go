package cronspec

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"0 9 * * 1-5", false},
		{"*/30 * * * *", false},
		{"@hourly", false},
		{"", true},
		{"not a cron", true},
		{"61 * * * *", true},
	}

	for _, tt := range tests {
		err := Validate(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestDueAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{
			name: "weekday morning matches",
			expr: "0 9 * * 1-5",
			at:   time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), // a Monday
			want: true,
		},
		{
			name: "weekend morning does not match",
			expr: "0 9 * * 1-5",
			at:   time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), // a Sunday
			want: false,
		},
		{
			name: "every minute matches mid-minute",
			expr: "* * * * *",
			at:   time.Date(2025, 6, 2, 9, 0, 42, 0, time.UTC),
			want: true,
		},
		{
			name: "half-hour cadence off-minute",
			expr: "*/30 * * * *",
			at:   time.Date(2025, 6, 2, 9, 17, 0, 0, time.UTC),
			want: false,
		},
		{
			name: "half-hour cadence on-minute",
			expr: "*/30 * * * *",
			at:   time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
			want: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sched, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.expr, err)
			}
			if got := DueAt(sched, tt.at); got != tt.want {
				t.Errorf("DueAt(%q, %v) = %v, want %v", tt.expr, tt.at, got, tt.want)
			}
		})
	}
}
