package school

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalcLevel(t *testing.T) {
	tests := []struct {
		points        int
		wantLevel     int
		wantRemaining int
	}{
		{points: 0, wantLevel: 1, wantRemaining: 100},
		{points: 1, wantLevel: 1, wantRemaining: 99},
		{points: 99, wantLevel: 1, wantRemaining: 1},
		{points: 100, wantLevel: 2, wantRemaining: 100},
		{points: 250, wantLevel: 3, wantRemaining: 50},
	}
	for _, tc := range tests {
		level, remaining := CalcLevel(tc.points)
		assert.Equal(t, tc.wantLevel, level, "points %d", tc.points)
		assert.Equal(t, tc.wantRemaining, remaining, "points %d", tc.points)
	}
}

func TestGrade_Next(t *testing.T) {
	tests := []struct {
		grade  Grade
		want   Grade
		wantOk bool
	}{
		{grade: Grade10, want: Grade11, wantOk: true},
		{grade: Grade11, want: Grade12, wantOk: true},
		{grade: Grade12, want: Graduate, wantOk: true},
		{grade: Graduate, want: Graduate, wantOk: false},
		{grade: Grade("Grade 9"), want: Grade("Grade 9"), wantOk: false},
	}
	for _, tc := range tests {
		t.Run(string(tc.grade), func(t *testing.T) {
			next, ok := tc.grade.Next()
			assert.Equal(t, tc.wantOk, ok)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestParseGrade(t *testing.T) {
	g, err := ParseGrade("Grade 11")
	assert.NoError(t, err)
	assert.Equal(t, Grade11, g)

	_, err = ParseGrade("Grade 13")
	assert.ErrorIs(t, err, ErrInvalidGrade)

	assert.True(t, Grade10.Before(Grade12))
	assert.False(t, Graduate.Before(Grade12))
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		correct, answered, want int
	}{
		{correct: 0, answered: 0, want: 0},
		{correct: 1, answered: 3, want: 33},
		{correct: 2, answered: 3, want: 66},
		{correct: 4, answered: 4, want: 100},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Percentage(tc.correct, tc.answered))
	}
}

func TestSchool_GradeClassName(t *testing.T) {
	s := School{Name: "Kingsway High"}
	assert.Equal(t, "Kingsway High - Grade 11", s.GradeClassName(Grade11))
}
