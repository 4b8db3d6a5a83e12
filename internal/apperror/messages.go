package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:  "Invalid input provided",
	CodeInvalidFormat: "Invalid data format",
	CodeInvalidState:  "Invalid state for this operation",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:    "Service request timeout",
	CodeRateLimitExceeded: "Rate limit exceeded",

	CodeUnknownError: "An unknown error occurred",

	// XRPL ledger access
	CodeXRPLConnectionFailed: "Failed to connect to XRPL node",
	CodeXRPLRequestFailed:    "XRPL request failed",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Pools
	CodeInvalidPool:           "Invalid AMM pool snapshot",
	CodeUniswapReservesFailed: "Failed to read Uniswap reserves",
	CodeContractCallFailed:    "Smart contract call failed",

	// Estimation
	CodeInvalidTradeSize: "Invalid trade size",
	CodeInvalidSide:      "Invalid trade side",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
