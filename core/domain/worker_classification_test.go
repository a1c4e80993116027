package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractedDataMerge(t *testing.T) {
	tests := []struct {
		name  string
		base  ExtractedData
		other ExtractedData
		want  ExtractedData
	}{
		{
			name:  "present company is kept",
			base:  ExtractedData{Company: Str("Acme")},
			other: ExtractedData{Company: Str("Other"), JobTitle: Str("Eng")},
			want:  ExtractedData{Company: Str("Acme"), JobTitle: Str("Eng")},
		},
		{
			name:  "blank counts as absent",
			base:  ExtractedData{Company: new(string), Location: Str("Sydney")},
			other: ExtractedData{Company: Str("Globex"), Location: Str("Melbourne")},
			want:  ExtractedData{Company: Str("Globex"), Location: Str("Sydney")},
		},
		{
			name:  "absent value never clears",
			base:  ExtractedData{JobTitle: Str("Designer"), SalaryRange: Str("$100k")},
			other: ExtractedData{},
			want:  ExtractedData{JobTitle: Str("Designer"), SalaryRange: Str("$100k")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.base.Merge(tt.other))
		})
	}
}

func TestMergeDoesNotAlias(t *testing.T) {
	other := ExtractedData{JobTitle: Str("Eng")}
	got := ExtractedData{}.Merge(other)
	*other.JobTitle = "changed"
	assert.Equal(t, "Eng", Deref(got.JobTitle))
}

func TestIsComplete(t *testing.T) {
	assert.False(t, ExtractedData{Company: Str("Acme")}.IsComplete())
	assert.True(t, ExtractedData{Company: Str("Acme"), JobTitle: Str("Eng")}.IsComplete())
}
