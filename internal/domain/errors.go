package domain

import "errors"

var (
	// ErrProductNotFound is returned when every resolution tier has been
	// exhausted without a confident hit
	ErrProductNotFound = errors.New("product not found in any source")

	// ErrSourceMiss is returned by a source adapter that responded but does
	// not know the barcode; the pipeline advances to the next tier
	ErrSourceMiss = errors.New("source does not know this barcode")

	// ErrSourceFailure is returned by a source adapter on timeout, network
	// failure, non-2xx status or malformed payload; also soft for the
	// pipeline, but kept distinct so a bug cannot hide behind a miss
	ErrSourceFailure = errors.New("source lookup failed")

	// ErrCacheMiss is returned when a barcode is not in the local cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrConsensusNotFound is returned when no consensus record exists yet
	// for an identity key
	ErrConsensusNotFound = errors.New("no consensus record for identity")

	// ErrScanNotFound is returned when a scan id does not exist in the ledger
	ErrScanNotFound = errors.New("scan event not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)
