package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobType_UnmarshalText(t *testing.T) {
	t.Parallel()

	var jt JobType
	require.NoError(t, jt.UnmarshalText([]byte("  Summary ")))
	assert.Equal(t, JobTypeSummary, jt)

	require.NoError(t, jt.UnmarshalText([]byte("decision-notice")))
	assert.Equal(t, JobTypeDecisionNotice, jt)

	require.Error(t, jt.UnmarshalText([]byte("newsletter")))
}

func TestEmailPayload_Validate(t *testing.T) {
	t.Parallel()

	valid := EmailPayload{
		To:      "applicant@example.com",
		Subject: "Your application",
		Text:    "hello",
		Type:    JobTypeSummary,
	}

	tests := []struct {
		name    string
		mutate  func(p *EmailPayload)
		wantErr string
	}{
		{name: "valid", mutate: func(*EmailPayload) {}},
		{
			name:    "missing recipient",
			mutate:  func(p *EmailPayload) { p.To = "  " },
			wantErr: "recipient",
		},
		{
			name:    "missing subject",
			mutate:  func(p *EmailPayload) { p.Subject = "" },
			wantErr: "subject",
		},
		{
			name:    "missing bodies",
			mutate:  func(p *EmailPayload) { p.Text = ""; p.HTML = "" },
			wantErr: "html or text",
		},
		{
			name: "html body alone is enough",
			mutate: func(p *EmailPayload) {
				p.Text = ""
				p.HTML = "<p>hello</p>"
			},
		},
		{
			name:    "invalid type",
			mutate:  func(p *EmailPayload) { p.Type = "newsletter" },
			wantErr: "job type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			payload := valid
			tt.mutate(&payload)

			err := payload.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
