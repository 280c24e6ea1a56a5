package confidence

import (
	"testing"
	"time"

	"github.com/vikstrand/aqhistory/internal/core/model"
)

func TestWithDefaults_FillsMissingBounds(t *testing.T) {
	s := model.Series{
		{TS: time.Unix(0, 0), Value: 100},
		{TS: time.Unix(3600, 0), Value: -40},
	}
	got := WithDefaults(s)

	if *got[0].ConfidenceLow != 90 || *got[0].ConfidenceHigh != 110 {
		t.Fatalf("bounds for 100: [%v, %v]", *got[0].ConfidenceLow, *got[0].ConfidenceHigh)
	}
	// Margin is an absolute width even for negative values.
	if *got[1].ConfidenceLow != -44 || *got[1].ConfidenceHigh != -36 {
		t.Fatalf("bounds for -40: [%v, %v]", *got[1].ConfidenceLow, *got[1].ConfidenceHigh)
	}
}

func TestWithDefaults_KeepsExistingBounds(t *testing.T) {
	low, high := 1.0, 2.0
	s := model.Series{{Value: 100, ConfidenceLow: &low, ConfidenceHigh: &high}}
	got := WithDefaults(s)

	if *got[0].ConfidenceLow != 1.0 || *got[0].ConfidenceHigh != 2.0 {
		t.Fatalf("upstream bounds overwritten: [%v, %v]",
			*got[0].ConfidenceLow, *got[0].ConfidenceHigh)
	}
}

func TestWithDefaults_DoesNotMutateInput(t *testing.T) {
	s := model.Series{{Value: 50}}
	_ = WithDefaults(s)
	if s[0].ConfidenceLow != nil || s[0].ConfidenceHigh != nil {
		t.Fatalf("input series mutated: %+v", s[0])
	}
}
