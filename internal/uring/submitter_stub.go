//go:build !linux

package uring

import "fmt"

// NewSubmitter is only available on Linux, where io_uring exists.
func NewSubmitter(config Config) (Submitter, error) {
	return nil, fmt.Errorf("io_uring submission requires linux")
}
