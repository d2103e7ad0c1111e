package enums

import "fmt"

// StorageScheme selects how tracker writes reach the database.
type StorageScheme string

const (
	StorageSchemePostgresOnly StorageScheme = "postgres_only"
	StorageSchemeRedisKV      StorageScheme = "redis_kv"
)

var validStorageSchemes = []StorageScheme{
	StorageSchemePostgresOnly,
	StorageSchemeRedisKV,
}

// String implements fmt.Stringer.
func (s StorageScheme) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StorageScheme.
func (s StorageScheme) IsValid() bool {
	for _, candidate := range validStorageSchemes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStorageScheme converts raw input into a StorageScheme.
func ParseStorageScheme(value string) (StorageScheme, error) {
	for _, candidate := range validStorageSchemes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid storage scheme %q", value)
}
