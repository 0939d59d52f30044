package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// AnonymousUser scopes cache entries of requests without a user id.
const AnonymousUser = "anonymous"

// BuildExactCacheKey builds the daily key of a fortune request from:
//   - userID (cache scoping, empty means anonymous),
//   - fortuneType,
//   - day (formatted in its own location),
//   - versionID (gateway version for invalidation),
//   - params, the request fields that change the answer.
//
// params are JSON encoded (map keys sorted) and hashed with SHA-256.
func BuildExactCacheKey(userID, fortuneType string, day time.Time, versionID string, params any) (ExactCacheKey, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return ExactCacheKey{}, err
	}

	normalized := "type:" + fortuneType + "|params:" + string(body)
	sum := sha256.Sum256([]byte(normalized))

	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = AnonymousUser
	}

	return ExactCacheKey{
		UserID:      sanitize(userID),
		FortuneType: fortuneType,
		Date:        day.Format(time.DateOnly),
		VersionID:   sanitize(strings.TrimSpace(versionID)),
		Hash:        hex.EncodeToString(sum[:]),
	}, nil
}

// sanitize keeps key segments free of the separator.
func sanitize(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// EndOfDay returns the TTL until the next midnight of day's location, at least one minute.
func EndOfDay(now time.Time) time.Duration {
	y, m, d := now.Date()
	next := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	ttl := next.Sub(now)
	if ttl < time.Minute {
		return time.Minute
	}
	return ttl
}
