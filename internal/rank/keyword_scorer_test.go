package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"jobaudit-engine/internal/domain"
)

func TestKeywordScorer(t *testing.T) {
	posted := time.Now()
	s := KeywordScorer{Keywords: []string{"Go", "kubernetes", " ", "go"}, RemoteOK: true}

	tests := []struct {
		name      string
		job       domain.JobLead
		wantScore int
		wantTags  []string
	}{
		{
			name:      "title beats description",
			job:       domain.JobLead{Title: "Go Developer", Description: "kubernetes at scale"},
			wantScore: 10 + 3 + 10,
			wantTags:  []string{"go", "kubernetes"},
		},
		{
			name:      "remote and recent bonus",
			job:       domain.JobLead{Title: "SRE", WorkMode: "Remote", PostedAt: &posted},
			wantScore: 2 + 1,
			wantTags:  []string{"remote"},
		},
		{
			name:      "nothing matches",
			job:       domain.JobLead{Title: "Designer"},
			wantScore: 0,
			wantTags:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, tags := s.Score(tt.job)
			assert.Equal(t, tt.wantScore, score)
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestRemoteBonusNeedsRemoteOK(t *testing.T) {
	var s Scorer = KeywordScorer{}
	score, tags := s.Score(domain.JobLead{Title: "SRE", WorkMode: "Remote"})
	assert.Equal(t, 0, score)
	assert.Empty(t, tags)
}
