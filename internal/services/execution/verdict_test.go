package execution

import (
	"testing"

	"MacroGate/internal/domain/models"

	"github.com/stretchr/testify/assert"
)

func TestScorePenaltiesAndClamp(t *testing.T) {
	pen := DefaultPolicy().Penalties

	clean := ScoreInputs{Stress: models.Clean, Event: models.EventNone, Fakeout: models.RiskLow, DXY: models.Expansion, DataQuality: models.QualityLive}
	assert.Equal(t, 100, Score(clean, pen))

	worst := ScoreInputs{Stress: models.Dirty, Event: models.EventHigh, Fakeout: models.RiskHigh, DXY: models.Compression, OffHours: true, DataQuality: models.QualityStale}
	assert.Equal(t, 0, Score(worst, pen))

	mid := ScoreInputs{Stress: models.Caution, Event: models.EventModerate, Fakeout: models.RiskModerate, DXY: models.Balanced, DataQuality: models.QualityUnknown}
	assert.Equal(t, 68, Score(mid, pen))

	// Heavier custom penalties still floor at zero.
	heavy := pen
	heavy.StressDirty = 500
	assert.Equal(t, 0, Score(ScoreInputs{Stress: models.Dirty}, heavy))
}

func TestGrades(t *testing.T) {
	b := DefaultPolicy().Bands
	tests := []struct {
		score                      int
		clarity, whipsaw, breakout models.Grade
	}{
		{100, models.GradeHigh, models.GradeLow, models.GradeGood},
		{80, models.GradeHigh, models.GradeLow, models.GradeGood},
		{79, models.GradeMedium, models.GradeMedium, models.GradeAcceptable},
		{60, models.GradeMedium, models.GradeMedium, models.GradeAcceptable},
		{59, models.GradeLow, models.GradeHigh, models.GradePoor},
		{0, models.GradeLow, models.GradeHigh, models.GradePoor},
	}
	for _, tt := range tests {
		c, w, br := Grades(tt.score, b)
		assert.Equal(t, tt.clarity, c, "score %d", tt.score)
		assert.Equal(t, tt.whipsaw, w, "score %d", tt.score)
		assert.Equal(t, tt.breakout, br, "score %d", tt.score)
	}
}

func TestDecideVerdict(t *testing.T) {
	l, _ := DecideVerdict(models.RiskLow, models.EventHigh, models.Clean)
	assert.Equal(t, models.VerdictAvoid, l)
	l, _ = DecideVerdict(models.RiskLow, models.EventNone, models.Dirty)
	assert.Equal(t, models.VerdictAvoid, l)
	l, _ = DecideVerdict(models.RiskHigh, models.EventNone, models.Caution)
	assert.Equal(t, models.VerdictCaution, l)
	l, _ = DecideVerdict(models.RiskModerate, models.EventModerate, models.Clean)
	assert.Equal(t, models.VerdictCaution, l)
	l, msg := DecideVerdict(models.RiskModerate, models.EventNone, models.Caution)
	assert.Equal(t, models.VerdictProceed, l)
	assert.NotEmpty(t, msg)
}

func TestApplyGatingOnlyDowngrades(t *testing.T) {
	labels := []models.VerdictLabel{models.VerdictAvoid, models.VerdictCaution, models.VerdictProceed}
	qualities := []models.DataQuality{models.QualityLive, models.QualityStale, models.QualityUnknown}
	for _, label := range labels {
		for _, offHours := range []bool{false, true} {
			for _, q := range qualities {
				in := models.ExecutionVerdict{Label: label, Message: "m"}
				out := ApplyGating(in, offHours, q)
				assert.LessOrEqual(t, out.Label.Rank(), in.Label.Rank())
				if label != models.VerdictProceed {
					assert.Equal(t, in, out, "%s offHours=%v quality=%s", label, offHours, q)
				}
			}
		}
	}
}

func TestApplyGatingNotes(t *testing.T) {
	proceed := models.ExecutionVerdict{Label: models.VerdictProceed, Message: "clean"}

	out := ApplyGating(proceed, true, models.QualityLive)
	assert.Equal(t, models.VerdictCaution, out.Label)
	assert.Equal(t, []string{"Off-hours gating: PROCEED → CAUTION"}, out.Gating)
	assert.NotEqual(t, "clean", out.Message)

	out = ApplyGating(proceed, false, models.QualityStale)
	assert.Equal(t, []string{"Data gating: PROCEED → CAUTION"}, out.Gating)

	out = ApplyGating(proceed, true, models.QualityStale)
	assert.Equal(t, []string{"Off-hours gating: PROCEED → CAUTION"}, out.Gating)

	out = ApplyGating(proceed, false, models.QualityUnknown)
	assert.Equal(t, proceed, out)
}

func TestBuildVerdictScoresBeforeGating(t *testing.T) {
	v := BuildVerdict(ScoreInputs{
		Stress: models.Clean, Event: models.EventNone, Fakeout: models.RiskLow,
		DXY: models.Expansion, OffHours: true, DataQuality: models.QualityLive,
	}, DefaultPolicy())
	assert.Equal(t, 88, v.Score)
	assert.Equal(t, models.VerdictCaution, v.Label)
	assert.Equal(t, models.GradeHigh, v.Clarity)
	assert.Len(t, v.Gating, 1)
}
