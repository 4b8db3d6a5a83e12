package ui

import (
	"time"

	"github.com/fd1az/liquidity-engine/business/liquidity/app"
)

// EstimateMsg delivers a completed estimate.
type EstimateMsg struct {
	Estimate *app.Estimate
}

// ErrorMsg delivers a failed estimate.
type ErrorMsg struct {
	Err error
	At  time.Time
}
