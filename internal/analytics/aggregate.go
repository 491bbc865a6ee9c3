// Package analytics maintains the platform-wide impact counters in Redis.
// Updates are incremental: each donation is added once and the aggregate
// never re-reads the donations table.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/sumit010804/food-share-sub000/internal/model"
)

const (
	appliedKey  = "analytics:applied"
	summaryKey  = "analytics:summary"
	dailyPrefix = "analytics:daily:"
)

// applyScript adds one donation to the summary and daily hashes.  The SADD
// on the applied set makes a replayed donation a no-op.
//
// KEYS: applied set, summary hash, daily hash
// ARGV: donation id, food kg, co2 kg, water litres, people fed
const applyScript = `
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
    return 0
end
redis.call('HINCRBY', KEYS[2], 'totalCollections', 1)
redis.call('HINCRBY', KEYS[2], 'totalDonations', 1)
redis.call('HINCRBYFLOAT', KEYS[2], 'totalFoodSaved', ARGV[2])
redis.call('HINCRBY', KEYS[2], 'totalPeopleServed', ARGV[5])
redis.call('HINCRBYFLOAT', KEYS[2], 'carbonFootprintSaved', ARGV[3])
redis.call('HINCRBY', KEYS[2], 'waterFootprintSaved', ARGV[4])
redis.call('HINCRBY', KEYS[3], 'collections', 1)
redis.call('HINCRBY', KEYS[3], 'donations', 1)
redis.call('HINCRBYFLOAT', KEYS[3], 'foodSaved', ARGV[2])
redis.call('HINCRBYFLOAT', KEYS[3], 'carbon', ARGV[3])
redis.call('HINCRBY', KEYS[3], 'water', ARGV[4])
return 1
`

// Summary mirrors the summary hash.
type Summary struct {
	TotalCollections     int64   `json:"totalCollections"`
	TotalDonations       int64   `json:"totalDonations"`
	TotalFoodSaved       float64 `json:"totalFoodSaved"`
	TotalPeopleServed    int64   `json:"totalPeopleServed"`
	CarbonFootprintSaved float64 `json:"carbonFootprintSaved"`
	WaterFootprintSaved  int64   `json:"waterFootprintSaved"`
}

// Aggregate applies donations to the Redis counters.
type Aggregate struct {
	rdb *redis.Client
}

// New returns an Aggregate backed by rdb.
func New(rdb *redis.Client) *Aggregate {
	return &Aggregate{rdb: rdb}
}

// DailyKey is the hash holding the counters for the UTC day of d.
func DailyKey(d model.Donation) string {
	return dailyPrefix + d.CollectedAt.UTC().Format("2006-01-02")
}

// Apply adds d to the aggregate.  It returns false when d had already been
// applied.
func (a *Aggregate) Apply(ctx context.Context, d model.Donation) (bool, error) {
	if a == nil || a.rdb == nil {
		return false, fmt.Errorf("analytics: redis unavailable")
	}
	keys := []string{appliedKey, summaryKey, DailyKey(d)}
	n, err := a.rdb.Eval(ctx, applyScript, keys,
		d.ID,
		strconv.FormatFloat(d.FoodKg, 'f', -1, 64),
		strconv.FormatFloat(d.CO2Saved, 'f', -1, 64),
		strconv.FormatInt(d.WaterSaved, 10),
		strconv.Itoa(d.PeopleFed),
	).Int64()
	if err != nil {
		return false, fmt.Errorf("analytics apply %s: %w", d.ID, err)
	}
	return n == 1, nil
}

// Deliver is the outbox handler for donations whose first apply failed.
func (a *Aggregate) Deliver(ctx context.Context, payload []byte) error {
	var d model.Donation
	if err := json.Unmarshal(payload, &d); err != nil {
		return fmt.Errorf("decode donation: %w", err)
	}
	_, err := a.Apply(ctx, d)
	return err
}

// Summary reads the current totals.  Missing fields read as zero.
func (a *Aggregate) Summary(ctx context.Context) (Summary, error) {
	if a == nil || a.rdb == nil {
		return Summary{}, fmt.Errorf("analytics: redis unavailable")
	}
	m, err := a.rdb.HGetAll(ctx, summaryKey).Result()
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		TotalCollections:     parseInt(m["totalCollections"]),
		TotalDonations:       parseInt(m["totalDonations"]),
		TotalFoodSaved:       parseFloat(m["totalFoodSaved"]),
		TotalPeopleServed:    parseInt(m["totalPeopleServed"]),
		CarbonFootprintSaved: parseFloat(m["carbonFootprintSaved"]),
		WaterFootprintSaved:  parseInt(m["waterFootprintSaved"]),
	}, nil
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
