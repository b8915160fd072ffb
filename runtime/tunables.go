package runtime

import (
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/KargJonas/sabus/shm"
)

// tunablesFile is the on-disk shape of the tunables surface spec §6
// calls for ("specify it as a tunable with a documented default",
// spec §9). Durations are expressed in milliseconds since TOML has no
// native duration type.
type tunablesFile struct {
	ReadRetryLimit       int `toml:"read_retry_limit"`
	NotifyPollIntervalMs int `toml:"notify_poll_interval_ms"`
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// LoadTunables reads path as TOML and returns the resulting
// shm.Tunables, falling back to shm.DefaultTunables for any field left
// at its zero value. Grounded on config.Load's read-then-unmarshal
// shape.
func LoadTunables(path string) (shm.Tunables, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return shm.Tunables{}, err
	}

	var f tunablesFile
	if err := toml.Unmarshal(b, &f); err != nil {
		return shm.Tunables{}, err
	}

	t := shm.DefaultTunables()
	if f.ReadRetryLimit > 0 {
		t.ReadRetryLimit = f.ReadRetryLimit
	}
	if f.NotifyPollIntervalMs > 0 {
		t.NotifyPollInterval = msToDuration(f.NotifyPollIntervalMs)
	}
	return t, nil
}
