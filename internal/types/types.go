package types

import (
	"fmt"
	"strconv"
	"time"
)

// Unix timestamp at millisecond resolution that serializes as a JSON number.
type UnixMilli int64

func (u UnixMilli) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(u), 10)), nil
}

func (u *UnixMilli) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("failed to parse unix milli timestamp: %w", err)
	}

	*u = UnixMilli(v)
	return nil
}

func NowUnixMilli() UnixMilli {
	return UnixMilli(time.Now().UTC().UnixMilli())
}
