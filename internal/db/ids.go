package db

import (
	"crypto/rand"
	"encoding/hex"

	"coursehub/internal/constants"
)

// ID prefixes per record type.
const (
	PrefixUser     = "usr"
	PrefixCourse   = "crs"
	PrefixPurchase = "pur"
	PrefixMessage  = "msg"
)

func GenerateID(prefix string) (string, error) {
	b := make([]byte, constants.IDRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + "_" + hex.EncodeToString(b), nil
}
