package security

// ID identifies a tradable instrument by symbol and board code.
type ID struct {
	Symbol string
	Board  string
}

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool {
	return id.Symbol == "" && id.Board == ""
}

func (id ID) String() string {
	if id.Board == "" {
		return id.Symbol
	}
	return id.Symbol + "@" + id.Board
}

// Money is the pseudo-instrument used for cash-denominated position changes.
var Money = ID{Symbol: "MONEY"}

// DataType describes the kind of market data or state a subscription requests.
type DataType uint16

const (
	DataTypeUnknown DataType = iota
	DataTypeLevel1
	DataTypeMarketDepth
	DataTypeTrades
	DataTypeTransactions
	DataTypePositions
)

func (t DataType) String() string {
	switch t {
	case DataTypeLevel1:
		return "level1"
	case DataTypeMarketDepth:
		return "depth"
	case DataTypeTrades:
		return "trades"
	case DataTypeTransactions:
		return "transactions"
	case DataTypePositions:
		return "positions"
	default:
		return "unknown"
	}
}

// IsAvailable reports whether the data type is a known subscription kind.
func (t DataType) IsAvailable() bool {
	return t > DataTypeUnknown && t <= DataTypePositions
}
