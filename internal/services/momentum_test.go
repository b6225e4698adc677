package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmalcolm/alpine-analytics/internal/analytics"
	"github.com/fmalcolm/alpine-analytics/internal/models"
	"github.com/fmalcolm/alpine-analytics/pkg/database"
)

func testMomentumConfig() analytics.MomentumConfig {
	return analytics.MomentumConfig{
		Lambda:          0.3,
		HotThreshold:    1.0,
		ColdThreshold:   -1.0,
		MinObservations: 2,
	}
}

func momentumSetup(t *testing.T) (*MomentumService, *ZScoreService, *database.DB) {
	t.Helper()
	db := newTestDB(t)
	seedSeason(t, db)

	zsvc := NewZScoreService(db, testLogger())
	ids, err := zsvc.RaceIDs(nil)
	require.NoError(t, err)
	for _, id := range ids {
		_, err := zsvc.ProcessRace(id)
		require.NoError(t, err)
	}

	return NewMomentumService(db, testLogger(), testMomentumConfig()), zsvc, db
}

func TestMomentumServicePartitions(t *testing.T) {
	svc, _, _ := momentumSetup(t)

	parts, err := svc.Partitions(nil)
	require.NoError(t, err)
	// Four athletes started at least one slalom, including the habitual DNF.
	require.Len(t, parts, 4)
	assert.Equal(t, AthleteDiscipline{AthleteID: "100", Discipline: models.DisciplineSlalom}, parts[0])

	// A window covering only the last race still returns every athlete who
	// started in it: their whole series is rebuilt.
	from := time.Date(2026, 1, 25, 0, 0, 0, 0, time.UTC)
	windowed, err := svc.Partitions(&from)
	require.NoError(t, err)
	assert.Len(t, windowed, 4)

	// A window after the season matches nobody.
	from = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	empty, err := svc.Partitions(&from)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMomentumServiceProcessPartition(t *testing.T) {
	svc, _, db := momentumSetup(t)
	part := AthleteDiscipline{AthleteID: "100", Discipline: models.DisciplineSlalom}

	rows, err := svc.ProcessPartition(part)
	require.NoError(t, err)
	assert.Equal(t, 4, rows)

	var stored []models.MomentumRecord
	require.NoError(t, db.Where("athlete_id = ?", "100").Order("seq").Find(&stored).Error)
	require.Len(t, stored, 4)

	for i, rec := range stored {
		assert.Equal(t, i+1, rec.Seq)
		assert.Equal(t, "A. Steiner", rec.Name)
		// Athlete 100 wins every race with identical points, so the
		// standardized score is constantly +1 and the smoothed mean
		// follows it exactly.
		assert.InDelta(t, 1.0, rec.ZScore, 1e-9)
		assert.InDelta(t, 1.0, rec.EwmaZ, 1e-9)
		assert.InDelta(t, 0.0, rec.EwstdZ, 1e-9)
		assert.Nil(t, rec.MomentumZ, "zero spread leaves momentum undefined")
	}
	assert.True(t, stored[0].RaceDate.Before(stored[3].RaceDate))
}

func TestMomentumServiceRerunReplacesSeries(t *testing.T) {
	svc, zsvc, db := momentumSetup(t)
	part := AthleteDiscipline{AthleteID: "100", Discipline: models.DisciplineSlalom}

	_, err := svc.ProcessPartition(part)
	require.NoError(t, err)

	// The athlete's last race gets corrected away and its z-scores rebuilt;
	// the momentum series must shrink accordingly.
	require.NoError(t, db.Where("race_id = ? AND athlete_id = ?", "2026SL004", "100").
		Delete(&models.RaceResult{}).Error)
	_, err = zsvc.ProcessRace("2026SL004")
	require.NoError(t, err)

	rows, err := svc.ProcessPartition(part)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)

	var count int64
	require.NoError(t, db.Model(&models.MomentumRecord{}).Where("athlete_id = ?", "100").Count(&count).Error)
	assert.EqualValues(t, 3, count)
}

func TestMomentumServiceNeverFinishedAthlete(t *testing.T) {
	svc, _, db := momentumSetup(t)
	part := AthleteDiscipline{AthleteID: "400", Discipline: models.DisciplineSlalom}

	rows, err := svc.ProcessPartition(part)
	require.NoError(t, err)
	assert.Equal(t, 0, rows)

	var count int64
	require.NoError(t, db.Model(&models.MomentumRecord{}).Where("athlete_id = ?", "400").Count(&count).Error)
	assert.EqualValues(t, 0, count)
}
