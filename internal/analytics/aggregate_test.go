package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

func testDonation() model.Donation {
	return model.Donation{
		ID:          "don-1",
		FoodKg:      5,
		CO2Saved:    12.5,
		WaterSaved:  2500,
		PeopleFed:   1,
		CollectedAt: time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC),
	}
}

func TestAggregate_Apply_FirstTime(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	agg := New(db)

	mock.ExpectEval(applyScript,
		[]string{appliedKey, summaryKey, "analytics:daily:2025-03-01"},
		"don-1", "5", "12.5", "2500", "1",
	).SetVal(int64(1))

	applied, err := agg.Apply(context.Background(), testDonation())

	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_Apply_Replay(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	agg := New(db)

	mock.ExpectEval(applyScript,
		[]string{appliedKey, summaryKey, "analytics:daily:2025-03-01"},
		"don-1", "5", "12.5", "2500", "1",
	).SetVal(int64(0))

	applied, err := agg.Apply(context.Background(), testDonation())

	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_Apply_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	agg := New(db)

	mock.ExpectEval(applyScript,
		[]string{appliedKey, summaryKey, "analytics:daily:2025-03-01"},
		"don-1", "5", "12.5", "2500", "1",
	).SetErr(errors.New("connection refused"))

	_, err := agg.Apply(context.Background(), testDonation())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAggregate_Apply_NoClient(t *testing.T) {
	var agg *Aggregate
	_, err := agg.Apply(context.Background(), testDonation())
	assert.Error(t, err)
}

func TestAggregate_Summary(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	agg := New(db)

	mock.ExpectHGetAll(summaryKey).SetVal(map[string]string{
		"totalCollections":     "3",
		"totalDonations":       "3",
		"totalFoodSaved":       "7.5",
		"totalPeopleServed":    "3",
		"carbonFootprintSaved": "18.75",
		"waterFootprintSaved":  "3750",
	})

	s, err := agg.Summary(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 3, s.TotalCollections)
	assert.InDelta(t, 7.5, s.TotalFoodSaved, 1e-9)
	assert.InDelta(t, 18.75, s.CarbonFootprintSaved, 1e-9)
	assert.EqualValues(t, 3750, s.WaterFootprintSaved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAggregate_Deliver(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()
	agg := New(db)

	mock.ExpectEval(applyScript,
		[]string{appliedKey, summaryKey, "analytics:daily:2025-03-01"},
		"don-1", "5", "12.5", "2500", "1",
	).SetVal(int64(1))

	payload := []byte(`{"id":"don-1","foodKg":5,"co2Saved":12.5,"waterSaved":2500,"peopleFed":1,"collectedAt":"2025-03-01T23:59:00Z"}`)
	require.NoError(t, agg.Deliver(context.Background(), payload))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Error(t, agg.Deliver(context.Background(), []byte("{")))
}
