package common

import (
	"os"
	"strings"
)

func IsProduction() bool {
	return os.Getenv(EnvKeyGoEnv) == "production"
}

func Mapper[T any, R any](items []T, mapFn func(T) R) []R {
	mapped := make([]R, len(items))
	for i := range len(items) {
		mapped[i] = mapFn(items[i])
	}
	return mapped
}

func Reducer[T any, R any](items []T, reduceFn func(R, T) R, initAcc R) R {
	finalAcc := initAcc
	for i := range len(items) {
		finalAcc = reduceFn(finalAcc, items[i])
	}
	return finalAcc
}

// NormalizeID returns the canonical upper-case hex form used for gateway and sensor IDs.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

func IsHexID(id string, length int) bool {
	if len(id) != length {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune("0123456789ABCDEFabcdef", c) {
			return false
		}
	}
	return true
}
