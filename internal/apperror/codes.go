package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidFormat Code = "INVALID_FORMAT"
	CodeInvalidState  Code = "INVALID_STATE"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeServiceTimeout    Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"

	CodeUnknownError Code = "UNKNOWN_ERROR"
)

// Liquidity-specific error codes
const (
	// XRPL ledger access
	CodeXRPLConnectionFailed Code = "XRPL_CONNECTION_FAILED"
	CodeXRPLRequestFailed    Code = "XRPL_REQUEST_FAILED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Pools
	CodeInvalidPool           Code = "INVALID_POOL"
	CodeUniswapReservesFailed Code = "UNISWAP_RESERVES_FAILED"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"

	// Estimation
	CodeInvalidTradeSize Code = "INVALID_TRADE_SIZE"
	CodeInvalidSide      Code = "INVALID_SIDE"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)

// Kind groups codes by how a caller should react.
type Kind int

const (
	KindInternal   Kind = iota
	KindValidation      // bad request or config, retrying will not help
	KindUpstream        // node or network trouble, the next attempt may succeed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

var kinds = map[Code]Kind{
	CodeInvalidInput:       KindValidation,
	CodeInvalidTradeSize:   KindValidation,
	CodeInvalidSide:        KindValidation,
	CodeConfigurationError: KindValidation,

	CodeServiceTimeout:           KindUpstream,
	CodeRateLimitExceeded:        KindUpstream,
	CodeXRPLConnectionFailed:     KindUpstream,
	CodeXRPLRequestFailed:        KindUpstream,
	CodeWebSocketConnectionError: KindUpstream,
	CodeWebSocketClosed:          KindUpstream,
	CodeWebSocketSendError:       KindUpstream,
	CodeUniswapReservesFailed:    KindUpstream,
	CodeContractCallFailed:       KindUpstream,
	CodeCircuitOpen:              KindUpstream,
	CodeCircuitHalfOpen:          KindUpstream,
}
