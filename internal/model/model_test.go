package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		scale      int
		creativity int
		wantIs     error
	}{
		{"lower bounds", MinScaleFactor, MinCreativity, nil},
		{"upper bounds", MaxScaleFactor, MaxCreativity, nil},
		{"zero scale", 0, 5, ErrInvalidScale},
		{"huge scale", 1000, 5, ErrInvalidScale},
		{"negative creativity", 4, -1, ErrInvalidCreativity},
		{"creativity over max", 4, 11, ErrInvalidCreativity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&JobRequest{ScaleFactor: tt.scale, Creativity: tt.creativity}).Validate()
			if tt.wantIs == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantIs)
		})
	}
}

func TestJobResult_FirstImageURL(t *testing.T) {
	var nilRes *JobResult
	_, err := nilRes.FirstImageURL()
	require.ErrorIs(t, err, ErrNoOutputImage)

	_, err = (&JobResult{}).FirstImageURL()
	require.ErrorIs(t, err, ErrNoOutputImage)

	url, err := (&JobResult{Images: []ImageRef{{URL: "a"}, {URL: "b"}}}).FirstImageURL()
	require.NoError(t, err)
	require.Equal(t, "a", url)
}

func TestWrapAndKindOf(t *testing.T) {
	require.NoError(t, Wrap(KindInput, StageStart, nil))

	base := errors.New("boom")
	err := fmt.Errorf("outer: %w", Wrap(KindRemoteResult, StageJobComplete, base))
	require.ErrorIs(t, err, base)
	require.Equal(t, KindRemoteResult, KindOf(err))
	require.Equal(t, "outer: boom", err.Error())

	require.Equal(t, KindTransport, KindOf(errors.New("foreign")))
}

func TestBatchSummary_Message(t *testing.T) {
	tests := []struct {
		name    string
		summary BatchSummary
		want    string
	}{
		{"all ok", BatchSummary{Items: make([]BatchItem, 3), Completed: 3}, "Complete! 3 image(s) upscaled"},
		{"some failed", BatchSummary{Items: make([]BatchItem, 3), Completed: 1, Failed: 2}, "Done with 2 error(s). 1/3 succeeded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.summary.Message())
		})
	}
}

func TestBatchItem_ErrorMessage(t *testing.T) {
	require.Empty(t, BatchItem{}.ErrorMessage())
	require.Equal(t, "boom", BatchItem{Err: errors.New("boom")}.ErrorMessage())
}
