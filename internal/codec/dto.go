package codec

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/message"
	"main/internal/security"
)

type securityDTO struct {
	Symbol string `json:"symbol"`
	Board  string `json:"board,omitempty"`
}

func toSecurityDTO(id security.ID) securityDTO {
	return securityDTO{Symbol: id.Symbol, Board: id.Board}
}

func (d securityDTO) id() security.ID {
	return security.ID{Symbol: d.Symbol, Board: d.Board}
}

type quoteDTO struct {
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func errValue(s string) error {
	if s == "" {
		return nil
	}
	return errors.New(s)
}

type connectDTO struct {
	Time          time.Time `json:"time"`
	TransactionID int64     `json:"transactionId,omitempty"`
}

type marketDataDTO struct {
	Time                  time.Time         `json:"time"`
	TransactionID         int64             `json:"transactionId"`
	OriginalTransactionID int64             `json:"originalTransactionId,omitempty"`
	Subscribe             bool              `json:"subscribe"`
	Security              securityDTO       `json:"security"`
	DataType              security.DataType `json:"dataType"`
	From                  *time.Time        `json:"from,omitempty"`
	To                    *time.Time        `json:"to,omitempty"`
}

type orderRegisterDTO struct {
	Time          time.Time       `json:"time"`
	TransactionID int64           `json:"transactionId"`
	Security      securityDTO     `json:"security"`
	Portfolio     string          `json:"portfolio"`
	Side          message.Side    `json:"side"`
	Price         decimal.Decimal `json:"price"`
	Volume        decimal.Decimal `json:"volume"`
}

type orderRefDTO struct {
	Time                  time.Time       `json:"time"`
	TransactionID         int64           `json:"transactionId"`
	OriginalTransactionID int64           `json:"originalTransactionId"`
	Security              securityDTO     `json:"security"`
	Portfolio             string          `json:"portfolio,omitempty"`
	Price                 decimal.Decimal `json:"price,omitempty"`
	Volume                decimal.Decimal `json:"volume,omitempty"`
}

type groupCancelDTO struct {
	Time          time.Time    `json:"time"`
	TransactionID int64        `json:"transactionId"`
	Portfolio     string       `json:"portfolio,omitempty"`
	Security      securityDTO  `json:"security,omitempty"`
	Side          message.Side `json:"side,omitempty"`
}

type portfolioLookupDTO struct {
	Time          time.Time `json:"time"`
	TransactionID int64     `json:"transactionId"`
	Portfolio     string    `json:"portfolio"`
}

type statusDTO struct {
	Time                  time.Time `json:"time"`
	TransactionID         int64     `json:"transactionId"`
	OriginalTransactionID int64     `json:"originalTransactionId,omitempty"`
}

type sessionEventDTO struct {
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
}

type subscriptionEventDTO struct {
	Time                  time.Time `json:"time"`
	OriginalTransactionID int64     `json:"originalTransactionId"`
	Error                 string    `json:"error,omitempty"`
}

type level1DTO struct {
	Time            time.Time                                   `json:"time"`
	SubscriptionIDs []int64                                     `json:"subscriptionIds,omitempty"`
	Security        securityDTO                                 `json:"security"`
	ServerTime      time.Time                                   `json:"serverTime"`
	Changes         map[message.Level1Field]decimal.Decimal     `json:"changes"`
}

type quoteChangeDTO struct {
	Time            time.Time   `json:"time"`
	SubscriptionIDs []int64     `json:"subscriptionIds,omitempty"`
	Security        securityDTO `json:"security"`
	ServerTime      time.Time   `json:"serverTime"`
	Bids            []quoteDTO  `json:"bids"`
	Asks            []quoteDTO  `json:"asks"`
}

type executionDTO struct {
	Time                  time.Time          `json:"time"`
	SubscriptionIDs       []int64            `json:"subscriptionIds,omitempty"`
	TransactionID         int64              `json:"transactionId,omitempty"`
	OriginalTransactionID int64              `json:"originalTransactionId,omitempty"`
	Security              securityDTO        `json:"security"`
	Portfolio             string             `json:"portfolio,omitempty"`
	Side                  message.Side       `json:"side,omitempty"`
	OrderState            message.OrderState `json:"orderState,omitempty"`
	OrderPrice            decimal.Decimal    `json:"orderPrice,omitempty"`
	OrderVolume           decimal.Decimal    `json:"orderVolume,omitempty"`
	Balance               decimal.Decimal    `json:"balance,omitempty"`
	TradeID               int64              `json:"tradeId,omitempty"`
	TradePrice            decimal.Decimal    `json:"tradePrice,omitempty"`
	TradeVolume           decimal.Decimal    `json:"tradeVolume,omitempty"`
	HasTrade              bool               `json:"hasTrade,omitempty"`
	PnL                   *decimal.Decimal   `json:"pnl,omitempty"`
	Commission            *decimal.Decimal   `json:"commission,omitempty"`
	Error                 string             `json:"error,omitempty"`
}

type positionChangeDTO struct {
	Time            time.Time                                 `json:"time"`
	SubscriptionIDs []int64                                   `json:"subscriptionIds,omitempty"`
	Security        securityDTO                               `json:"security"`
	Portfolio       string                                    `json:"portfolio"`
	ServerTime      time.Time                                 `json:"serverTime"`
	Changes         map[message.PositionField]decimal.Decimal `json:"changes"`
}

const (
	kindConnect              = "connect"
	kindDisconnect           = "disconnect"
	kindReset                = "reset"
	kindMarketData           = "marketData"
	kindOrderRegister        = "orderRegister"
	kindOrderCancel          = "orderCancel"
	kindOrderReplace         = "orderReplace"
	kindOrderGroupCancel     = "orderGroupCancel"
	kindPortfolioLookup      = "portfolioLookup"
	kindOrderStatus          = "orderStatus"
	kindConnected            = "connected"
	kindDisconnected         = "disconnected"
	kindError                = "error"
	kindSubscriptionResponse = "subscriptionResponse"
	kindSubscriptionFinished = "subscriptionFinished"
	kindSubscriptionOnline   = "subscriptionOnline"
	kindLevel1               = "level1"
	kindQuoteChange          = "quoteChange"
	kindExecution            = "execution"
	kindPositionChange       = "positionChange"
)

func toDTO(m message.Message) (string, any, error) {
	switch v := m.(type) {
	case *message.ConnectMessage:
		return kindConnect, connectDTO{Time: v.Time, TransactionID: v.TransactionID}, nil
	case *message.DisconnectMessage:
		return kindDisconnect, connectDTO{Time: v.Time, TransactionID: v.TransactionID}, nil
	case *message.ResetMessage:
		return kindReset, connectDTO{Time: v.Time}, nil
	case *message.MarketDataMessage:
		return kindMarketData, marketDataDTO{
			Time:                  v.Time,
			TransactionID:         v.TransactionID,
			OriginalTransactionID: v.OriginalTransactionID,
			Subscribe:             v.Subscribe,
			Security:              toSecurityDTO(v.Security),
			DataType:              v.DataType,
			From:                  v.From,
			To:                    v.To,
		}, nil
	case *message.OrderRegisterMessage:
		return kindOrderRegister, orderRegisterDTO{
			Time:          v.Time,
			TransactionID: v.TransactionID,
			Security:      toSecurityDTO(v.Security),
			Portfolio:     v.Portfolio,
			Side:          v.Side,
			Price:         v.Price,
			Volume:        v.Volume,
		}, nil
	case *message.OrderCancelMessage:
		return kindOrderCancel, orderRefDTO{
			Time:                  v.Time,
			TransactionID:         v.TransactionID,
			OriginalTransactionID: v.OriginalTransactionID,
			Security:              toSecurityDTO(v.Security),
			Portfolio:             v.Portfolio,
		}, nil
	case *message.OrderReplaceMessage:
		return kindOrderReplace, orderRefDTO{
			Time:                  v.Time,
			TransactionID:         v.TransactionID,
			OriginalTransactionID: v.OriginalTransactionID,
			Security:              toSecurityDTO(v.Security),
			Portfolio:             v.Portfolio,
			Price:                 v.Price,
			Volume:                v.Volume,
		}, nil
	case *message.OrderGroupCancelMessage:
		return kindOrderGroupCancel, groupCancelDTO{
			Time:          v.Time,
			TransactionID: v.TransactionID,
			Portfolio:     v.Portfolio,
			Security:      toSecurityDTO(v.Security),
			Side:          v.Side,
		}, nil
	case *message.PortfolioLookupMessage:
		return kindPortfolioLookup, portfolioLookupDTO{
			Time:          v.Time,
			TransactionID: v.TransactionID,
			Portfolio:     v.Portfolio,
		}, nil
	case *message.OrderStatusMessage:
		return kindOrderStatus, statusDTO{
			Time:                  v.Time,
			TransactionID:         v.TransactionID,
			OriginalTransactionID: v.OriginalTransactionID,
		}, nil
	case *message.ConnectedMessage:
		return kindConnected, sessionEventDTO{Time: v.Time, Error: errString(v.Err)}, nil
	case *message.DisconnectedMessage:
		return kindDisconnected, sessionEventDTO{Time: v.Time, Error: errString(v.Err)}, nil
	case *message.ErrorMessage:
		return kindError, subscriptionEventDTO{
			Time:                  v.Time,
			OriginalTransactionID: v.OriginalTransactionID,
			Error:                 errString(v.Err),
		}, nil
	case *message.SubscriptionResponseMessage:
		return kindSubscriptionResponse, subscriptionEventDTO{
			Time:                  v.Time,
			OriginalTransactionID: v.OriginalTransactionID,
			Error:                 errString(v.Err),
		}, nil
	case *message.SubscriptionFinishedMessage:
		return kindSubscriptionFinished, subscriptionEventDTO{
			Time:                  v.Time,
			OriginalTransactionID: v.OriginalTransactionID,
		}, nil
	case *message.SubscriptionOnlineMessage:
		return kindSubscriptionOnline, subscriptionEventDTO{
			Time:                  v.Time,
			OriginalTransactionID: v.OriginalTransactionID,
		}, nil
	case *message.Level1ChangeMessage:
		return kindLevel1, level1DTO{
			Time:            v.Time,
			SubscriptionIDs: v.SubscriptionIDs,
			Security:        toSecurityDTO(v.Security),
			ServerTime:      v.ServerTime,
			Changes:         v.Changes,
		}, nil
	case *message.QuoteChangeMessage:
		dto := quoteChangeDTO{
			Time:            v.Time,
			SubscriptionIDs: v.SubscriptionIDs,
			Security:        toSecurityDTO(v.Security),
			ServerTime:      v.ServerTime,
		}
		for _, q := range v.Bids {
			dto.Bids = append(dto.Bids, quoteDTO(q))
		}
		for _, q := range v.Asks {
			dto.Asks = append(dto.Asks, quoteDTO(q))
		}
		return kindQuoteChange, dto, nil
	case *message.ExecutionMessage:
		return kindExecution, executionDTO{
			Time:                  v.Time,
			SubscriptionIDs:       v.SubscriptionIDs,
			TransactionID:         v.TransactionID,
			OriginalTransactionID: v.OriginalTransactionID,
			Security:              toSecurityDTO(v.Security),
			Portfolio:             v.Portfolio,
			Side:                  v.Side,
			OrderState:            v.OrderState,
			OrderPrice:            v.OrderPrice,
			OrderVolume:           v.OrderVolume,
			Balance:               v.Balance,
			TradeID:               v.TradeID,
			TradePrice:            v.TradePrice,
			TradeVolume:           v.TradeVolume,
			HasTrade:              v.HasTrade,
			PnL:                   v.PnL,
			Commission:            v.Commission,
			Error:                 errString(v.Err),
		}, nil
	case *message.PositionChangeMessage:
		return kindPositionChange, positionChangeDTO{
			Time:            v.Time,
			SubscriptionIDs: v.SubscriptionIDs,
			Security:        toSecurityDTO(v.Security),
			Portfolio:       v.Portfolio,
			ServerTime:      v.ServerTime,
			Changes:         v.Changes,
		}, nil
	default:
		return "", nil, ErrUnsupportedMessage
	}
}

var decoders = map[string]func(json.RawMessage) (message.Message, error){
	kindConnect: func(data json.RawMessage) (message.Message, error) {
		var d connectDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.ConnectMessage{Header: message.Header{Time: d.Time}, TransactionID: d.TransactionID}, nil
	},
	kindDisconnect: func(data json.RawMessage) (message.Message, error) {
		var d connectDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.DisconnectMessage{Header: message.Header{Time: d.Time}, TransactionID: d.TransactionID}, nil
	},
	kindReset: func(data json.RawMessage) (message.Message, error) {
		var d connectDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.ResetMessage{Header: message.Header{Time: d.Time}}, nil
	},
	kindMarketData: func(data json.RawMessage) (message.Message, error) {
		var d marketDataDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.MarketDataMessage{
			Header:                message.Header{Time: d.Time},
			TransactionID:         d.TransactionID,
			OriginalTransactionID: d.OriginalTransactionID,
			Subscribe:             d.Subscribe,
			Security:              d.Security.id(),
			DataType:              d.DataType,
			From:                  d.From,
			To:                    d.To,
		}, nil
	},
	kindOrderRegister: func(data json.RawMessage) (message.Message, error) {
		var d orderRegisterDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.OrderRegisterMessage{
			Header:        message.Header{Time: d.Time},
			TransactionID: d.TransactionID,
			Security:      d.Security.id(),
			Portfolio:     d.Portfolio,
			Side:          d.Side,
			Price:         d.Price,
			Volume:        d.Volume,
		}, nil
	},
	kindOrderCancel: func(data json.RawMessage) (message.Message, error) {
		var d orderRefDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.OrderCancelMessage{
			Header:                message.Header{Time: d.Time},
			TransactionID:         d.TransactionID,
			OriginalTransactionID: d.OriginalTransactionID,
			Security:              d.Security.id(),
			Portfolio:             d.Portfolio,
		}, nil
	},
	kindOrderReplace: func(data json.RawMessage) (message.Message, error) {
		var d orderRefDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.OrderReplaceMessage{
			Header:                message.Header{Time: d.Time},
			TransactionID:         d.TransactionID,
			OriginalTransactionID: d.OriginalTransactionID,
			Security:              d.Security.id(),
			Portfolio:             d.Portfolio,
			Price:                 d.Price,
			Volume:                d.Volume,
		}, nil
	},
	kindOrderGroupCancel: func(data json.RawMessage) (message.Message, error) {
		var d groupCancelDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.OrderGroupCancelMessage{
			Header:        message.Header{Time: d.Time},
			TransactionID: d.TransactionID,
			Portfolio:     d.Portfolio,
			Security:      d.Security.id(),
			Side:          d.Side,
		}, nil
	},
	kindPortfolioLookup: func(data json.RawMessage) (message.Message, error) {
		var d portfolioLookupDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.PortfolioLookupMessage{
			Header:        message.Header{Time: d.Time},
			TransactionID: d.TransactionID,
			Portfolio:     d.Portfolio,
		}, nil
	},
	kindOrderStatus: func(data json.RawMessage) (message.Message, error) {
		var d statusDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.OrderStatusMessage{
			Header:                message.Header{Time: d.Time},
			TransactionID:         d.TransactionID,
			OriginalTransactionID: d.OriginalTransactionID,
		}, nil
	},
	kindConnected: func(data json.RawMessage) (message.Message, error) {
		var d sessionEventDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.ConnectedMessage{Header: message.Header{Time: d.Time}, Err: errValue(d.Error)}, nil
	},
	kindDisconnected: func(data json.RawMessage) (message.Message, error) {
		var d sessionEventDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.DisconnectedMessage{Header: message.Header{Time: d.Time}, Err: errValue(d.Error)}, nil
	},
	kindError: func(data json.RawMessage) (message.Message, error) {
		var d subscriptionEventDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.ErrorMessage{
			Header:                message.Header{Time: d.Time},
			OriginalTransactionID: d.OriginalTransactionID,
			Err:                   errValue(d.Error),
		}, nil
	},
	kindSubscriptionResponse: func(data json.RawMessage) (message.Message, error) {
		var d subscriptionEventDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.SubscriptionResponseMessage{
			Header:                message.Header{Time: d.Time},
			OriginalTransactionID: d.OriginalTransactionID,
			Err:                   errValue(d.Error),
		}, nil
	},
	kindSubscriptionFinished: func(data json.RawMessage) (message.Message, error) {
		var d subscriptionEventDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.SubscriptionFinishedMessage{
			Header:                message.Header{Time: d.Time},
			OriginalTransactionID: d.OriginalTransactionID,
		}, nil
	},
	kindSubscriptionOnline: func(data json.RawMessage) (message.Message, error) {
		var d subscriptionEventDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.SubscriptionOnlineMessage{
			Header:                message.Header{Time: d.Time},
			OriginalTransactionID: d.OriginalTransactionID,
		}, nil
	},
	kindLevel1: func(data json.RawMessage) (message.Message, error) {
		var d level1DTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.Level1ChangeMessage{
			Header:          message.Header{Time: d.Time},
			SubscriptionIDs: d.SubscriptionIDs,
			Security:        d.Security.id(),
			ServerTime:      d.ServerTime,
			Changes:         d.Changes,
		}, nil
	},
	kindQuoteChange: func(data json.RawMessage) (message.Message, error) {
		var d quoteChangeDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		m := &message.QuoteChangeMessage{
			Header:          message.Header{Time: d.Time},
			SubscriptionIDs: d.SubscriptionIDs,
			Security:        d.Security.id(),
			ServerTime:      d.ServerTime,
		}
		for _, q := range d.Bids {
			m.Bids = append(m.Bids, message.Quote(q))
		}
		for _, q := range d.Asks {
			m.Asks = append(m.Asks, message.Quote(q))
		}
		return m, nil
	},
	kindExecution: func(data json.RawMessage) (message.Message, error) {
		var d executionDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.ExecutionMessage{
			Header:                message.Header{Time: d.Time},
			SubscriptionIDs:       d.SubscriptionIDs,
			TransactionID:         d.TransactionID,
			OriginalTransactionID: d.OriginalTransactionID,
			Security:              d.Security.id(),
			Portfolio:             d.Portfolio,
			Side:                  d.Side,
			OrderState:            d.OrderState,
			OrderPrice:            d.OrderPrice,
			OrderVolume:           d.OrderVolume,
			Balance:               d.Balance,
			TradeID:               d.TradeID,
			TradePrice:            d.TradePrice,
			TradeVolume:           d.TradeVolume,
			HasTrade:              d.HasTrade,
			PnL:                   d.PnL,
			Commission:            d.Commission,
			Err:                   errValue(d.Error),
		}, nil
	},
	kindPositionChange: func(data json.RawMessage) (message.Message, error) {
		var d positionChangeDTO
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &message.PositionChangeMessage{
			Header:          message.Header{Time: d.Time},
			SubscriptionIDs: d.SubscriptionIDs,
			Security:        d.Security.id(),
			Portfolio:       d.Portfolio,
			ServerTime:      d.ServerTime,
			Changes:         d.Changes,
		}, nil
	},
}
