package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/verification"
	id "docverify/pkg/domain"
	dErrors "docverify/pkg/domain-errors"
)

func TestParseFlags(t *testing.T) {
	t.Run("all references given", func(t *testing.T) {
		o, err := parseFlags([]string{"-front", "f.jpg", "-back", "b.jpg", "-selfie", "s.jpg", "-json"})
		require.NoError(t, err)
		assert.Equal(t, "f.jpg", o.front)
		assert.True(t, o.asJSON)
	})

	t.Run("missing selfie", func(t *testing.T) {
		_, err := parseFlags([]string{"-front", "f.jpg", "-back", "b.jpg"})
		assert.ErrorContains(t, err, "required")
	})
}

func TestOptions_Submission(t *testing.T) {
	t.Run("random IDs by default", func(t *testing.T) {
		sub, err := options{front: "f", back: "b", selfie: "s"}.submission()
		require.NoError(t, err)
		assert.False(t, sub.ID.IsNil())
		assert.False(t, sub.UserID.IsNil())
	})

	t.Run("explicit IDs", func(t *testing.T) {
		sid := id.NewSubmissionID()
		sub, err := options{front: "f", back: "b", selfie: "s", submissionID: sid.String()}.submission()
		require.NoError(t, err)
		assert.Equal(t, sid, sub.ID)
	})

	t.Run("malformed user ID", func(t *testing.T) {
		_, err := options{userID: "bob"}.submission()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestPrintOutcome(t *testing.T) {
	sub := verification.Submission{ID: id.NewSubmissionID()}
	outcome := verification.Outcome{Success: true, Message: verification.MsgReadyForReview, Stage: verification.StageDone}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printOutcome(&buf, sub, outcome, false))
		assert.Equal(t, "submission "+sub.ID.String()+": ready for review (done)\n", buf.String())
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printOutcome(&buf, sub, outcome, true))

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, sub.ID.String(), got["submission_id"])
		assert.Equal(t, true, got["success"])
		assert.Equal(t, "done", got["stage"])
	})
}
