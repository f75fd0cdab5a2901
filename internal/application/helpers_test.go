package application

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stakewatch/cardano-rewards-service/internal/domain"
	"github.com/stakewatch/cardano-rewards-service/pkg/config"
	"github.com/stakewatch/cardano-rewards-service/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error", "development")
	require.NoError(t, err)
	return log
}

func testSyncConfig() *config.Sync {
	return &config.Sync{
		Schedule:      "0 6 * * *",
		FloorEpoch:    207,
		StakePageSize: 25,
		EpochPageSize: 100,
		StepTimeout:   time.Minute,
	}
}

// epochAt builds an epoch record with a five day window starting at a fixed
// origin, matching Cardano's epoch length.
func epochAt(number int32) *domain.Epoch {
	origin := time.Date(2020, 7, 29, 21, 44, 51, 0, time.UTC)
	start := origin.Add(time.Duration(number-208) * 5 * 24 * time.Hour)
	return &domain.Epoch{
		Number:    number,
		StartTime: start,
		EndTime:   start.Add(5 * 24 * time.Hour),
	}
}
