package storage

import "errors"

const maxKeyAttempts = 5

var errKeyExhausted = errors.New("no free storage key")
