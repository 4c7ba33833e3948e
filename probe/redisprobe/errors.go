package redisprobe

import "errors"

var errClientRequired = errors.New("redisprobe: client is required")
