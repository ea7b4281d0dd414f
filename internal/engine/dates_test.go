package engine

import (
	"testing"
	"time"

	"github.com/Gkrumbach07/team-status/internal/jiraapi"
)

func TestDateRange(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		start time.Time
		end   time.Time
		want  []string
	}{
		{
			name:  "single_day",
			start: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
			end:   time.Date(2026, time.March, 10, 17, 0, 0, 0, time.UTC),
			want:  []string{"2026-03-10"},
		},
		{
			name:  "inclusive_span",
			start: time.Date(2026, time.February, 27, 12, 0, 0, 0, time.UTC),
			end:   time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
			want:  []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"},
		},
		{
			name:  "inverted_range",
			start: time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2026, time.March, 9, 0, 0, 0, 0, time.UTC),
			want:  []string{},
		},
		{
			name: "zero_bounds",
			want: []string{},
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := DateRange(tc.start, tc.end)
			if len(got) != len(tc.want) {
				t.Fatalf("DateRange = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("DateRange = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestSprintDateSpan(t *testing.T) {
	t.Parallel()

	sprints := []jiraapi.Sprint{
		{
			ID:        2,
			StartDate: time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, time.March, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 3, // missing bounds must not shrink the span
		},
		{
			ID:        1,
			StartDate: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
		},
	}

	start, end := sprintDateSpan(sprints)
	if !start.Equal(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, time.March, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}
}

func TestSprintDateSpanAllUnbounded(t *testing.T) {
	t.Parallel()

	start, end := sprintDateSpan([]jiraapi.Sprint{{ID: 1}, {ID: 2}})
	if !start.IsZero() || !end.IsZero() {
		t.Fatalf("span = (%v, %v), want zero bounds", start, end)
	}
}
